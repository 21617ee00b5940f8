//go:build linux

package collector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"

	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

var logger = logging.New("collector")

const defaultProcRoot = "/proc"

// Collector samples every process on the host. It is meant to run with enough
// privilege to read other users' I/O counters and DRM fdinfo.
type Collector struct {
	procRoot string
	tickRate uint64
	now      func() (uint64, error)
}

// New returns a collector converting CPU seconds back to ticks at tickRate.
func New(tickRate uint64) *Collector {
	if tickRate == 0 {
		tickRate = 100
	}
	return &Collector{procRoot: defaultProcRoot, tickRate: tickRate, now: bootClockMillis}
}

// bootClockMillis reads CLOCK_BOOTTIME, which keeps counting across suspend.
func bootClockMillis() (uint64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return 0, err
	}
	return uint64(ts.Sec)*1000 + uint64(ts.Nsec)/1e6, nil
}

// Sample gathers one snapshot. Processes that exit while being read are left
// out; missing optional counters are left at their zero value.
func (c *Collector) Sample(ctx context.Context) ([]snapshot.Sample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	bootTime, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	timestamp, err := c.now()
	if err != nil {
		return nil, err
	}

	samples := make([]snapshot.Sample, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok := c.sampleProcess(ctx, p, bootTime)
		if !ok {
			continue
		}
		s.Timestamp = timestamp
		samples = append(samples, s)
	}
	logger.Debugf("sampled %d of %d processes", len(samples), len(procs))
	return samples, nil
}

func (c *Collector) sampleProcess(ctx context.Context, p *process.Process, bootTime uint64) (snapshot.Sample, bool) {
	ppid, err := p.PpidWithContext(ctx)
	if err != nil {
		// gone
		return snapshot.Sample{}, false
	}

	s := snapshot.Sample{PID: p.Pid, PPID: ppid}

	if args, err := p.CmdlineSliceWithContext(ctx); err == nil {
		s.Cmdline = strings.Join(args, "\x00")
	}
	if name, err := p.NameWithContext(ctx); err == nil {
		s.Comm = name
	}
	if uids, err := p.UidsWithContext(ctx); err == nil && len(uids) > 0 {
		s.UID = uids[0]
	}
	if times, err := p.TimesWithContext(ctx); err == nil {
		s.UserCPUTime = c.ticks(times.User)
		s.SystemCPUTime = c.ticks(times.System)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
		s.MemoryUsage = mem.RSS
	}
	if io, err := p.IOCountersWithContext(ctx); err == nil {
		read, written := io.ReadBytes, io.WriteBytes
		s.ReadBytes = &read
		s.WriteBytes = &written
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		s.StartTime = startTicks(created, bootTime, c.tickRate)
	}
	if cgroup, err := os.ReadFile(filepath.Join(c.procRoot, strconv.Itoa(int(p.Pid)), "cgroup")); err == nil {
		s.Cgroup = string(cgroup)
	}
	s.GPUUsage = gpuUsage(c.procRoot, p.Pid)
	return s, true
}

func (c *Collector) ticks(seconds float64) uint64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return uint64(math.Round(seconds * float64(c.tickRate)))
}

// startTicks converts a creation time in unix milliseconds to ticks since
// boot.
func startTicks(createdMillis int64, bootSeconds, tickRate uint64) uint64 {
	sinceBoot := createdMillis - int64(bootSeconds)*1000
	if sinceBoot <= 0 {
		return 0
	}
	return uint64(sinceBoot) * tickRate / 1000
}
