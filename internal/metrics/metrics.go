// Package metrics reads the host-wide numbers shown above the application
// table.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

type CpuUsage struct {
	UsagePct float64 `json:"usage"`
}

type MemUsage struct {
	Used     uint64  `json:"used"`
	Free     uint64  `json:"free"`
	Total    uint64  `json:"total"`
	UsagePct float64 `json:"usage"`
}

type NetUsage struct {
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
	TxRate    uint64 `json:"tx_rate"` // Bytes/sec
	RxRate    uint64 `json:"rx_rate"` // Bytes/sec
}

type DiskUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type Host struct {
	CpuUsage  CpuUsage      `json:"cpu"`
	MemUsage  MemUsage      `json:"mem"`
	NetUsage  NetUsage      `json:"net"`
	DiskUsage DiskUsage     `json:"disk"`
	Uptime    time.Duration `json:"uptime"`
}

// sources are the gopsutil calls behind Host, swapped out in tests.
type sources struct {
	cpuPercent func(ctx context.Context) ([]float64, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	netIO      func(ctx context.Context) ([]net.IOCountersStat, error)
	uptime     func(ctx context.Context) (uint64, error)
	bootTime   func(ctx context.Context) (uint64, error)
}

var gopsutilSources = sources{
	cpuPercent: func(ctx context.Context) ([]float64, error) { return cpu.PercentWithContext(ctx, 0, false) },
	memory:     mem.VirtualMemoryWithContext,
	diskUsage:  disk.UsageWithContext,
	netIO:      func(ctx context.Context) ([]net.IOCountersStat, error) { return net.IOCountersWithContext(ctx, false) },
	uptime:     host.UptimeWithContext,
	bootTime:   host.BootTimeWithContext,
}

// HostCollector keeps the previous network counters to report rates.
type HostCollector struct {
	DiskPath string

	mu           sync.Mutex
	src          sources
	now          func() time.Time
	lastNetStats *net.IOCountersStat
	lastNetTime  time.Time
}

func NewHostCollector() *HostCollector {
	return &HostCollector{DiskPath: "/", src: gopsutilSources, now: time.Now}
}

// Host gets the metrics for the system. It is thread-safe.
func (hc *HostCollector) Host(ctx context.Context) (Host, error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	cpuUsage, err := hc.src.cpuPercent(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("error getting CPU usage: %w", err)
	}
	if len(cpuUsage) == 0 {
		cpuUsage = []float64{0}
	}

	memUsage, err := hc.src.memory(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("error getting memory usage: %w", err)
	}

	diskUsage, err := hc.src.diskUsage(ctx, hc.DiskPath)
	if err != nil {
		return Host{}, fmt.Errorf("error getting disk usage: %w", err)
	}

	netStats, err := hc.src.netIO(ctx) // aggregated
	if err != nil {
		return Host{}, fmt.Errorf("error getting network usage: %w", err)
	}
	if len(netStats) == 0 {
		return Host{}, fmt.Errorf("error getting network usage: no counters")
	}

	uptime, err := hc.src.uptime(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("error getting uptime: %w", err)
	}

	currentNetStats := &netStats[0]
	currentTime := hc.now()

	var txRate, rxRate uint64
	if hc.lastNetStats != nil {
		duration := currentTime.Sub(hc.lastNetTime).Seconds()
		if duration > 0 {
			txRate = uint64(float64(counterDelta(currentNetStats.BytesSent, hc.lastNetStats.BytesSent)) / duration)
			rxRate = uint64(float64(counterDelta(currentNetStats.BytesRecv, hc.lastNetStats.BytesRecv)) / duration)
		}
	}
	hc.lastNetStats = currentNetStats
	hc.lastNetTime = currentTime

	var memPct float64
	if memUsage.Total > 0 {
		memPct = float64(memUsage.Used) / float64(memUsage.Total) * 100
	}

	return Host{
		CpuUsage: CpuUsage{
			UsagePct: cpuUsage[0],
		},
		MemUsage: MemUsage{
			Used:     memUsage.Used,
			Free:     memUsage.Free,
			Total:    memUsage.Total,
			UsagePct: memPct,
		},
		NetUsage: NetUsage{
			BytesSent: currentNetStats.BytesSent,
			BytesRecv: currentNetStats.BytesRecv,
			TxRate:    txRate,
			RxRate:    rxRate,
		},
		DiskUsage: DiskUsage{
			Path:        diskUsage.Path,
			Total:       diskUsage.Total,
			Free:        diskUsage.Free,
			Used:        diskUsage.Used,
			UsedPercent: diskUsage.UsedPercent,
		},
		Uptime: time.Duration(uptime) * time.Second,
	}, nil
}

// BootTime is the wall-clock time the host booted, the origin of process
// start times.
func (hc *HostCollector) BootTime(ctx context.Context) (time.Time, error) {
	secs, err := hc.src.bootTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("error getting boot time: %w", err)
	}
	return time.Unix(int64(secs), 0), nil
}

// counterDelta treats a counter that went backwards (interface reset) as 0.
func counterDelta(current, last uint64) uint64 {
	if current < last {
		return 0
	}
	return current - last
}
