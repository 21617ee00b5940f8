package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

func fakeCollector(sent, recv *uint64, now *time.Time) *HostCollector {
	return &HostCollector{
		DiskPath: "/",
		now:      func() time.Time { return *now },
		src: sources{
			cpuPercent: func(context.Context) ([]float64, error) { return []float64{12.5}, nil },
			memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
				return &mem.VirtualMemoryStat{Total: 400, Used: 100, Free: 300}, nil
			},
			diskUsage: func(_ context.Context, path string) (*disk.UsageStat, error) {
				return &disk.UsageStat{Path: path, Total: 10, Used: 4, Free: 6, UsedPercent: 40}, nil
			},
			netIO: func(context.Context) ([]net.IOCountersStat, error) {
				return []net.IOCountersStat{{Name: "all", BytesSent: *sent, BytesRecv: *recv}}, nil
			},
			uptime:   func(context.Context) (uint64, error) { return 90, nil },
			bootTime: func(context.Context) (uint64, error) { return 1_700_000_000, nil },
		},
	}
}

func TestHostRates(t *testing.T) {
	sent, recv := uint64(1000), uint64(5000)
	now := time.Unix(100, 0)
	hc := fakeCollector(&sent, &recv, &now)

	first, err := hc.Host(context.Background())
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	if first.NetUsage.TxRate != 0 || first.NetUsage.RxRate != 0 {
		t.Fatalf("first sample must not report rates, got %+v", first.NetUsage)
	}
	if first.CpuUsage.UsagePct != 12.5 || first.MemUsage.UsagePct != 25 || first.DiskUsage.Path != "/" {
		t.Fatalf("unexpected host %+v", first)
	}
	if first.Uptime != 90*time.Second {
		t.Fatalf("expected 90s uptime, got %s", first.Uptime)
	}

	sent, recv = 3000, 4000 // recv counter reset
	now = now.Add(2 * time.Second)
	second, err := hc.Host(context.Background())
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	if second.NetUsage.TxRate != 1000 {
		t.Fatalf("expected 1000 B/s tx, got %d", second.NetUsage.TxRate)
	}
	if second.NetUsage.RxRate != 0 {
		t.Fatalf("a reset counter must report 0, got %d", second.NetUsage.RxRate)
	}
}

func TestHostErrors(t *testing.T) {
	sent, recv := uint64(0), uint64(0)
	now := time.Unix(0, 0)
	hc := fakeCollector(&sent, &recv, &now)
	hc.src.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no meminfo") }

	_, err := hc.Host(context.Background())
	if err == nil || !strings.Contains(err.Error(), "memory usage") {
		t.Fatalf("expected wrapped memory error, got %v", err)
	}

	hc = fakeCollector(&sent, &recv, &now)
	hc.src.netIO = func(context.Context) ([]net.IOCountersStat, error) { return nil, nil }
	if _, err := hc.Host(context.Background()); err == nil {
		t.Fatalf("expected an error without network counters")
	}
}

func TestBootTime(t *testing.T) {
	sent, recv := uint64(0), uint64(0)
	now := time.Unix(0, 0)
	hc := fakeCollector(&sent, &recv, &now)

	boot, err := hc.BootTime(context.Background())
	if err != nil || !boot.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected boot time %v (%v)", boot, err)
	}

	hc.src.bootTime = func(context.Context) (uint64, error) { return 0, errors.New("no /proc/stat") }
	if _, err := hc.BootTime(context.Background()); err == nil || !strings.Contains(err.Error(), "boot time") {
		t.Fatalf("expected wrapped boot time error, got %v", err)
	}
}
