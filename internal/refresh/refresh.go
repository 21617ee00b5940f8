// Package refresh drives the periodic snapshot, merge and aggregate cycle.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/process"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

var logger = logging.New("refresh")

// ErrBusy is returned by Refresh when another refresh is still running.
var ErrBusy = errors.New("refresh already in progress")

// Snapshotter is the collector side of a refresh.
type Snapshotter interface {
	Request() ([]snapshot.Sample, error)
	Reset() error
}

// Event reports the end of one refresh cycle. When Err is set the cycle
// failed and Summaries still holds the last successful result.
type Event struct {
	ID        uuid.UUID
	Time      time.Time
	Summaries []apps.DisplaySummary
	Err       error
}

func (e Event) Failed() bool { return e.Err != nil }

// Orchestrator runs refresh cycles, never more than one at a time.
type Orchestrator struct {
	source     Snapshotter
	store      *process.Store
	aggregator *apps.Aggregator
	events     *Broadcaster[Event]
	now        func() time.Time

	busy atomic.Bool

	mu   sync.RWMutex
	last Event
}

func New(source Snapshotter, store *process.Store, aggregator *apps.Aggregator) *Orchestrator {
	return &Orchestrator{
		source:     source,
		store:      store,
		aggregator: aggregator,
		events:     NewBroadcaster[Event](),
		now:        time.Now,
	}
}

// Refresh runs one cycle: snapshot, merge into the store, summarize. It
// returns ErrBusy without doing anything if a cycle is already running.
// A collector failure is returned and also published as a failed Event;
// after a channel failure the collector connection is reset so the next
// cycle starts on a fresh stream.
func (o *Orchestrator) Refresh() (Event, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Event{}, ErrBusy
	}
	defer o.busy.Store(false)

	ev := Event{ID: uuid.New(), Time: o.now()}

	samples, err := o.source.Request()
	if err != nil {
		if errors.Is(err, snapshot.ErrChannelFailure) {
			if rerr := o.source.Reset(); rerr != nil {
				logger.Debugf("refresh %s: closing collector: %v", ev.ID, rerr)
			}
		}
		logger.Warnf("refresh %s failed: %v", ev.ID, err)

		o.mu.RLock()
		ev.Summaries = o.last.Summaries
		o.mu.RUnlock()
		ev.Err = err
		o.events.Publish(ev)
		return ev, err
	}

	records := o.store.Merge(samples)
	ev.Summaries = o.aggregator.Summarize(records)
	logger.Debugf("refresh %s: %d processes in %d applications", ev.ID, len(records), len(ev.Summaries))

	o.mu.Lock()
	o.last = ev
	o.mu.Unlock()
	o.events.Publish(ev)
	return ev, nil
}

// Run refreshes immediately and then on every tick of interval until ctx is
// done. A tick that fires while a cycle is still running is skipped.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Refresh(); errors.Is(err, ErrBusy) {
				logger.Debugf("previous refresh still running, skipping tick")
			}
		}()
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}

// Summaries returns the last successful cycle's summaries.
func (o *Orchestrator) Summaries() []apps.DisplaySummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]apps.DisplaySummary(nil), o.last.Summaries...)
}

// Last returns the last successful Event; its ID is the zero UUID before the
// first successful refresh.
func (o *Orchestrator) Last() Event {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Resolve looks up an application from the last successful cycle.
func (o *Orchestrator) Resolve(id string) (*apps.Application, error) {
	return o.aggregator.Resolve(id)
}

// Processes returns every process tracked after the last successful cycle,
// ordered by pid.
func (o *Orchestrator) Processes() []process.Record {
	return o.store.Records()
}

// Process looks up one tracked process.
func (o *Orchestrator) Process(pid int32) (process.Record, bool) {
	return o.store.Get(pid)
}

// Subscribe returns a channel receiving the latest Event after every cycle.
// A slow reader only ever sees the most recent one.
func (o *Orchestrator) Subscribe() chan Event {
	return o.events.Subscribe()
}

func (o *Orchestrator) Unsubscribe(ch chan Event) {
	o.events.Unsubscribe(ch)
}

func (o *Orchestrator) Subscribers() int {
	return o.events.Len()
}

// Close ends all subscriptions.
func (o *Orchestrator) Close() {
	o.events.Stop()
}
