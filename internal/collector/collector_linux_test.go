//go:build linux

package collector

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestSampleIncludesCurrentProcess(t *testing.T) {
	c := New(100)
	c.now = func() (uint64, error) { return 123456, nil }

	samples, err := c.Sample(context.Background())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}

	pid := int32(os.Getpid())
	for _, s := range samples {
		if s.PID != pid {
			continue
		}
		if s.PPID != int32(os.Getppid()) {
			t.Fatalf("expected ppid %d, got %d", os.Getppid(), s.PPID)
		}
		if s.UID != uint32(os.Getuid()) {
			t.Fatalf("expected uid %d, got %d", os.Getuid(), s.UID)
		}
		if s.Comm == "" || s.Cmdline == "" {
			t.Fatalf("expected comm and cmdline, got %q / %q", s.Comm, s.Cmdline)
		}
		if s.Timestamp != 123456 {
			t.Fatalf("expected injected timestamp, got %d", s.Timestamp)
		}
		if s.MemoryUsage == 0 {
			t.Fatalf("expected resident memory for the test binary")
		}
		return
	}
	t.Fatalf("pid %d missing from %d samples", pid, len(samples))
}

func TestSampleHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(100).Sample(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBootClockIsMonotonic(t *testing.T) {
	a, err := bootClockMillis()
	if err != nil {
		t.Fatalf("boot clock: %v", err)
	}
	b, err := bootClockMillis()
	if err != nil {
		t.Fatalf("boot clock: %v", err)
	}
	if a == 0 || b < a {
		t.Fatalf("expected non-decreasing boot clock, got %d then %d", a, b)
	}
}

func TestStartTicks(t *testing.T) {
	cases := []struct {
		created int64
		boot    uint64
		rate    uint64
		want    uint64
	}{
		{1_700_000_012_340, 1_700_000_000, 100, 1234},
		{1_700_000_012_340, 1_700_000_000, 250, 3085},
		{1_699_999_999_000, 1_700_000_000, 100, 0},
	}
	for _, tc := range cases {
		if got := startTicks(tc.created, tc.boot, tc.rate); got != tc.want {
			t.Fatalf("startTicks(%d, %d, %d): expected %d, got %d", tc.created, tc.boot, tc.rate, tc.want, got)
		}
	}
}
