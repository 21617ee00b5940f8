package process

import (
	"runtime"
	"sync"

	"github.com/tklauser/go-sysconf"
	"github.com/tklauser/numcpus"
)

const fallbackTickRate = 100

// Clock carries the host constants needed to turn tick counters into ratios.
type Clock struct {
	TickRate uint64 // ticks per second (SC_CLK_TCK)
	NumCPUs  uint64 // logical CPUs online
}

var (
	systemClockOnce sync.Once
	systemClock     Clock
)

// SystemClock returns the host's tick rate and online CPU count, read once.
func SystemClock() Clock {
	systemClockOnce.Do(func() {
		systemClock = Clock{TickRate: fallbackTickRate, NumCPUs: uint64(runtime.NumCPU())}
		if tck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && tck > 0 {
			systemClock.TickRate = uint64(tck)
		} else if err != nil {
			logger.Warnf("unable to read clock tick rate, assuming %d: %v", fallbackTickRate, err)
		}
		if n, err := numcpus.GetOnline(); err == nil && n > 0 {
			systemClock.NumCPUs = uint64(n)
		}
	})
	return systemClock
}
