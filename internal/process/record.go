package process

import (
	"math"
	"strings"
	"time"

	"github.com/jeffypooo/apptop/internal/snapshot"
)

// DefaultIcon is the icon name shown for individual processes.
const DefaultIcon = "generic-process"

// Record is a process as tracked across refresh cycles: the latest sample plus
// a mirror of the previous sample's counters used to derive rates.
// TimestampLast == 0 means there is no previous sample.
type Record struct {
	Sample         snapshot.Sample
	AppID          string
	ExecutablePath string
	ExecutableName string
	Icon           string

	CPUTimeLast    uint64
	TimestampLast  uint64
	ReadBytesLast  *uint64
	WriteBytesLast *uint64
	GPUUsageLast   map[string]snapshot.GPUUsage

	clock Clock
}

// NewRecord wraps a newly observed process. Its mirror starts in the
// "no prior sample" state.
func NewRecord(sample snapshot.Sample, clock Clock) Record {
	path := ExecutablePath(sample.Cmdline)
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	if name == "" {
		name = sample.Comm
	}

	r := Record{
		Sample:         sample,
		AppID:          AppIDFromCgroup(sample.Cgroup),
		ExecutablePath: path,
		ExecutableName: name,
		Icon:           DefaultIcon,
		clock:          clock,
	}
	if sample.ReadBytes != nil {
		r.ReadBytesLast = new(uint64)
	}
	if sample.WriteBytes != nil {
		r.WriteBytesLast = new(uint64)
	}
	return r
}

// advance installs next as the current sample and mirrors the old one.
func (r Record) advance(next snapshot.Sample) Record {
	r.CPUTimeLast = r.Sample.CPUTime()
	r.TimestampLast = r.Sample.Timestamp
	r.ReadBytesLast = r.Sample.ReadBytes
	r.WriteBytesLast = r.Sample.WriteBytes
	r.GPUUsageLast = r.Sample.GPUUsage
	r.Sample = next
	r.AppID = AppIDFromCgroup(next.Cgroup)
	return r
}

// ExecutablePath extracts argv[0] from a raw command line. Arguments are
// normally NUL separated, but chromium-based programs rewrite their command
// line with spaces, so the first " --" also ends the path.
func ExecutablePath(cmdline string) string {
	path, _, _ := strings.Cut(cmdline, "\x00")
	path, _, _ = strings.Cut(path, " --")
	return path
}

// SanitizedCmdline returns the command line with NULs replaced by spaces.
func (r Record) SanitizedCmdline() (string, bool) {
	if r.Sample.Cmdline == "" {
		return "", false
	}
	return strings.TrimRight(strings.ReplaceAll(r.Sample.Cmdline, "\x00", " "), " "), true
}

func (r Record) PID() int32 { return r.Sample.PID }

func (r Record) MemoryUsage() uint64 { return r.Sample.MemoryUsage }

// CPUTimeRatio is the fraction of the host's total CPU capacity (all logical
// CPUs) used since the previous sample.
func (r Record) CPUTimeRatio() float64 {
	if r.TimestampLast == 0 {
		return 0
	}
	deltaCPU := float64(satSub(r.Sample.CPUTime(), r.CPUTimeLast)) * 1000
	deltaTime := float64(satSub(r.Sample.Timestamp, r.TimestampLast))
	return finiteOrZero(deltaCPU / (deltaTime * float64(r.clock.TickRate) * float64(r.clock.NumCPUs)))
}

// ReadSpeed is bytes read per second. ok is false when the kernel does not
// expose I/O accounting for the process.
func (r Record) ReadSpeed() (speed float64, ok bool) {
	return ioSpeed(r.Sample.ReadBytes, r.ReadBytesLast, r.Sample.Timestamp, r.TimestampLast)
}

// WriteSpeed is bytes written per second, see ReadSpeed.
func (r Record) WriteSpeed() (speed float64, ok bool) {
	return ioSpeed(r.Sample.WriteBytes, r.WriteBytesLast, r.Sample.Timestamp, r.TimestampLast)
}

func ioSpeed(current, last *uint64, ts, tsLast uint64) (float64, bool) {
	if current == nil || last == nil {
		return 0, false
	}
	if tsLast == 0 {
		return 0, true
	}
	deltaBytes := float64(satSub(*current, *last))
	deltaTime := float64(satSub(ts, tsLast))
	return finiteOrZero(deltaBytes / deltaTime * 1000), true
}

// GPUUsage is the graphics engine usage, the maximum over all GPUs.
func (r Record) GPUUsage() float64 {
	return r.engineUsage(func(u snapshot.GPUUsage) uint64 { return u.Gfx })
}

// EncUsage is the video encode engine usage, the maximum over all GPUs.
func (r Record) EncUsage() float64 {
	return r.engineUsage(func(u snapshot.GPUUsage) uint64 { return u.Enc })
}

// DecUsage is the video decode engine usage, the maximum over all GPUs.
func (r Record) DecUsage() float64 {
	return r.engineUsage(func(u snapshot.GPUUsage) uint64 { return u.Dec })
}

func (r Record) engineUsage(counter func(snapshot.GPUUsage) uint64) float64 {
	if r.TimestampLast == 0 {
		return 0
	}
	var usage float64
	for gpu, current := range r.Sample.GPUUsage {
		last, seen := r.GPUUsageLast[gpu]

		var this float64
		switch {
		case current.Nvidia:
			this = finiteOrZero(float64(counter(current)) / 100)
		case !seen, counter(last) == 0:
			this = 0
		default:
			// engine nanoseconds over elapsed milliseconds
			delta := float64(satSub(counter(current), counter(last)))
			elapsed := float64(satSub(r.Sample.Timestamp, r.TimestampLast))
			this = finiteOrZero(delta / elapsed / 1_000_000)
		}
		if this > usage {
			usage = this
		}
	}
	return usage
}

// GPUMemUsage is the resident memory summed over all GPUs.
func (r Record) GPUMemUsage() uint64 {
	var total uint64
	for _, u := range r.Sample.GPUUsage {
		total += u.Mem
	}
	return total
}

// StartTime converts the start tick count into wall-clock time.
func (r Record) StartTime(bootTime time.Time) time.Time {
	if r.clock.TickRate == 0 {
		return bootTime
	}
	seconds := float64(r.Sample.StartTime) / float64(r.clock.TickRate)
	return bootTime.Add(time.Duration(seconds * float64(time.Second)))
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
