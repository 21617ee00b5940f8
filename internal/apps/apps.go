// Package apps groups process records into applications and fans lifecycle
// actions out to their member processes.
package apps

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/process"
)

var logger = logging.New("apps")

const (
	SystemName   = "System Processes"
	SystemIcon   = "system-processes"
	FallbackIcon = "application-x-executable"
)

var (
	ErrUnknownApplication = errors.New("unknown application")
	ErrSystemBucket       = errors.New("lifecycle actions are not available for system processes")
)

// Executor applies one action to one pid.
type Executor interface {
	Apply(a action.Action, pid int32) error
}

// DisplaySummary is the per-cycle projection of an Application handed to the
// presentation layer. An empty ID is the system bucket.
type DisplaySummary struct {
	ID              string  `json:"id,omitempty"`
	System          bool    `json:"system"`
	DisplayName     string  `json:"display_name"`
	Icon            string  `json:"icon"`
	MemoryUsage     uint64  `json:"memory_usage"`
	CPUTimeRatio    float64 `json:"cpu_time_ratio"`
	ProcessesAmount int     `json:"processes_amount"`
	GPUUsage        float64 `json:"gpu_usage"`
	GPUMemUsage     uint64  `json:"gpu_mem_usage"`
	ReadSpeed       float64 `json:"read_speed"`
	WriteSpeed      float64 `json:"write_speed"`
}

// Application is one refresh cycle's view of an application. Processes holds
// copies of the member records in pid order; it is never updated in place.
type Application struct {
	ID          string
	DisplayName string
	Icon        string
	Processes   []process.Record

	executor Executor
}

func (a *Application) IsSystem() bool { return a.ID == "" }

func (a *Application) PIDs() []int32 {
	pids := make([]int32, len(a.Processes))
	for i, p := range a.Processes {
		pids[i] = p.PID()
	}
	return pids
}

func (a *Application) MemoryUsage() uint64 {
	var total uint64
	for _, p := range a.Processes {
		total += p.MemoryUsage()
	}
	return total
}

func (a *Application) CPUTimeRatio() float64 {
	var total float64
	for _, p := range a.Processes {
		total += p.CPUTimeRatio()
	}
	return total
}

// GPUUsage is the busiest member's graphics usage.
func (a *Application) GPUUsage() float64 {
	var usage float64
	for _, p := range a.Processes {
		usage = max(usage, p.GPUUsage())
	}
	return usage
}

func (a *Application) GPUMemUsage() uint64 {
	var total uint64
	for _, p := range a.Processes {
		total += p.GPUMemUsage()
	}
	return total
}

// ReadSpeed sums the members that support I/O accounting.
func (a *Application) ReadSpeed() float64 {
	var total float64
	for _, p := range a.Processes {
		if s, ok := p.ReadSpeed(); ok {
			total += s
		}
	}
	return total
}

func (a *Application) WriteSpeed() float64 {
	var total float64
	for _, p := range a.Processes {
		if s, ok := p.WriteSpeed(); ok {
			total += s
		}
	}
	return total
}

func (a *Application) Summary() DisplaySummary {
	return DisplaySummary{
		ID:              a.ID,
		System:          a.IsSystem(),
		DisplayName:     a.DisplayName,
		Icon:            a.Icon,
		MemoryUsage:     a.MemoryUsage(),
		CPUTimeRatio:    a.CPUTimeRatio(),
		ProcessesAmount: len(a.Processes),
		GPUUsage:        a.GPUUsage(),
		GPUMemUsage:     a.GPUMemUsage(),
		ReadSpeed:       a.ReadSpeed(),
		WriteSpeed:      a.WriteSpeed(),
	}
}

// Do applies act to every member and returns one result per member, in
// member order. A nil entry is a success.
func (a *Application) Do(act action.Action) []error {
	results := make([]error, len(a.Processes))
	if a.IsSystem() {
		for i := range results {
			results[i] = ErrSystemBucket
		}
		return results
	}
	for i, p := range a.Processes {
		if a.executor == nil {
			results[i] = fmt.Errorf("no executor for %s", a.ID)
			continue
		}
		results[i] = a.executor.Apply(act, p.PID())
	}
	logger.Debugf("%s %s: %d processes", act.Progressive(), a.ID, len(results))
	return results
}

func (a *Application) Term() []error { return a.Do(action.Terminate) }
func (a *Application) Kill() []error { return a.Do(action.Kill) }
func (a *Application) Stop() []error { return a.Do(action.Stop) }
func (a *Application) Cont() []error { return a.Do(action.Continue) }

// Aggregator builds applications from process records and keeps the last
// built set for Resolve.
type Aggregator struct {
	metadata Metadata
	executor Executor

	mu   sync.RWMutex
	apps map[string]*Application
}

func NewAggregator(metadata Metadata, executor Executor) *Aggregator {
	return &Aggregator{metadata: metadata, executor: executor, apps: make(map[string]*Application)}
}

// Build groups records by application identity. Records without one go to
// the system bucket, which is always present.
func (g *Aggregator) Build(records []process.Record) map[string]*Application {
	built := map[string]*Application{
		"": {DisplayName: SystemName, Icon: SystemIcon, executor: g.executor},
	}
	for _, r := range records {
		app, ok := built[r.AppID]
		if !ok {
			app = g.newApplication(r.AppID)
			built[r.AppID] = app
		}
		app.Processes = append(app.Processes, r)
	}
	for _, app := range built {
		sort.SliceStable(app.Processes, func(i, j int) bool { return app.Processes[i].PID() < app.Processes[j].PID() })
	}
	return built
}

func (g *Aggregator) newApplication(id string) *Application {
	app := &Application{ID: id, DisplayName: id, Icon: FallbackIcon, executor: g.executor}
	if g.metadata == nil {
		return app
	}
	if e, ok := g.metadata.Lookup(id); ok {
		app.DisplayName = e.Name
		if e.Icon != "" {
			app.Icon = e.Icon
		}
	}
	return app
}

// Summarize rebuilds the application set from records, replacing the one
// Resolve answers from, and returns its summaries sorted for display.
func (g *Aggregator) Summarize(records []process.Record) []DisplaySummary {
	built := g.Build(records)

	g.mu.Lock()
	g.apps = built
	g.mu.Unlock()

	summaries := make([]DisplaySummary, 0, len(built))
	for _, app := range built {
		summaries = append(summaries, app.Summary())
	}
	SortSummaries(summaries)
	return summaries
}

// Resolve returns the application with the given identity from the last
// Summarize. "" is the system bucket.
func (g *Aggregator) Resolve(id string) (*Application, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	app, ok := g.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApplication, id)
	}
	return app, nil
}

// SortSummaries orders by display name, case-insensitively, then identity.
func SortSummaries(s []DisplaySummary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := strings.ToLower(s[i].DisplayName), strings.ToLower(s[j].DisplayName)
		if a != b {
			return a < b
		}
		return s[i].ID < s[j].ID
	})
}

// IndexOf finds the summary with the given identity, or -1. Positions change
// between refreshes, so a selection must be looked up again every cycle.
func IndexOf(summaries []DisplaySummary, id string) int {
	for i, s := range summaries {
		if s.ID == id {
			return i
		}
	}
	return -1
}
