package apps

import (
	"time"

	"github.com/jeffypooo/apptop/internal/process"
)

// ProcessInfo is one member process as shown in an application's detail view.
// ReadSpeed and WriteSpeed are nil when the kernel does not account I/O for
// the process.
type ProcessInfo struct {
	PID          int32     `json:"pid"`
	Name         string    `json:"name"`
	Path         string    `json:"path,omitempty"`
	Cmdline      string    `json:"cmdline,omitempty"`
	Icon         string    `json:"icon"`
	RunningSince time.Time `json:"running_since"`
	MemoryUsage  uint64    `json:"memory_usage"`
	CPUTimeRatio float64   `json:"cpu_time_ratio"`
	GPUUsage     float64   `json:"gpu_usage"`
	EncUsage     float64   `json:"enc_usage"`
	DecUsage     float64   `json:"dec_usage"`
	GPUMemUsage  uint64    `json:"gpu_mem_usage"`
	ReadSpeed    *float64  `json:"read_speed,omitempty"`
	WriteSpeed   *float64  `json:"write_speed,omitempty"`
}

// NewProcessInfo projects r for display. bootTime anchors the start tick count.
func NewProcessInfo(r process.Record, bootTime time.Time) ProcessInfo {
	info := ProcessInfo{
		PID:          r.PID(),
		Name:         r.ExecutableName,
		Path:         r.ExecutablePath,
		Icon:         r.Icon,
		RunningSince: r.StartTime(bootTime),
		MemoryUsage:  r.MemoryUsage(),
		CPUTimeRatio: r.CPUTimeRatio(),
		GPUUsage:     r.GPUUsage(),
		EncUsage:     r.EncUsage(),
		DecUsage:     r.DecUsage(),
		GPUMemUsage:  r.GPUMemUsage(),
	}
	if cmdline, ok := r.SanitizedCmdline(); ok {
		info.Cmdline = cmdline
	}
	if speed, ok := r.ReadSpeed(); ok {
		info.ReadSpeed = &speed
	}
	if speed, ok := r.WriteSpeed(); ok {
		info.WriteSpeed = &speed
	}
	return info
}

// Info is the detail view of one application: its summary plus every member.
type Info struct {
	DisplaySummary
	Processes []ProcessInfo `json:"processes"`
}

// Info describes the application and its members in pid order.
func (a *Application) Info(bootTime time.Time) Info {
	info := Info{DisplaySummary: a.Summary(), Processes: make([]ProcessInfo, 0, len(a.Processes))}
	for _, p := range a.Processes {
		info.Processes = append(info.Processes, NewProcessInfo(p, bootTime))
	}
	return info
}
