package snapshot

// GPUUsage holds one process's counters on one GPU.
//
// Gfx, Enc and Dec are cumulative engine nanoseconds for tick-based drivers.
// When Nvidia is set they are instantaneous percentages (0-100) reported by the vendor.
type GPUUsage struct {
	Gfx    uint64 `msgpack:"gfx"`
	Mem    uint64 `msgpack:"mem"`
	Enc    uint64 `msgpack:"enc"`
	Dec    uint64 `msgpack:"dec"`
	Nvidia bool   `msgpack:"nvidia"`
}

// Sample is one process's raw counters at a point in time, as produced by the
// privileged collector. Timestamp is milliseconds on the boot clock; CPU times
// and StartTime are in clock ticks.
type Sample struct {
	PID           int32               `msgpack:"pid"`
	PPID          int32               `msgpack:"ppid"`
	UID           uint32              `msgpack:"uid"`
	Cmdline       string              `msgpack:"cmdline"`
	Comm          string              `msgpack:"comm"`
	Cgroup        string              `msgpack:"cgroup"`
	UserCPUTime   uint64              `msgpack:"user_cpu_time"`
	SystemCPUTime uint64              `msgpack:"system_cpu_time"`
	MemoryUsage   uint64              `msgpack:"memory_usage"`
	ReadBytes     *uint64             `msgpack:"read_bytes"`
	WriteBytes    *uint64             `msgpack:"write_bytes"`
	GPUUsage      map[string]GPUUsage `msgpack:"gpu_usage_stats"`
	StartTime     uint64              `msgpack:"starttime"`
	Timestamp     uint64              `msgpack:"timestamp"`
}

// CPUTime is the cumulative user plus system ticks, saturating on overflow.
func (s Sample) CPUTime() uint64 {
	total := s.UserCPUTime + s.SystemCPUTime
	if total < s.UserCPUTime {
		return ^uint64(0)
	}
	return total
}
