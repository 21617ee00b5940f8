package process

import (
	"sort"
	"sync"

	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

var logger = logging.New("process")

// Merge is the pure diff step: it carries previous records forward into the
// new snapshot and returns the resulting pid index together with the records
// in snapshot order. Pids missing from samples are dropped. A pid whose start
// time changed belongs to a new process and starts over without a prior
// sample.
func Merge(previous map[int32]Record, samples []snapshot.Sample, clock Clock) (map[int32]Record, []Record) {
	next := make(map[int32]Record, len(samples))
	records := make([]Record, 0, len(samples))
	for _, sample := range samples {
		if _, dup := next[sample.PID]; dup {
			continue
		}
		var rec Record
		if old, ok := previous[sample.PID]; ok && old.Sample.StartTime == sample.StartTime {
			rec = old.advance(sample)
			rec.clock = clock
		} else {
			rec = NewRecord(sample, clock)
		}
		next[sample.PID] = rec
		records = append(records, rec)
	}
	return next, records
}

// Store owns the process records between refresh cycles.
type Store struct {
	mu      sync.RWMutex
	clock   Clock
	records map[int32]Record
}

func NewStore(clock Clock) *Store {
	return &Store{clock: clock, records: make(map[int32]Record)}
}

// Merge folds a new snapshot into the store and returns the current records.
func (s *Store) Merge(samples []snapshot.Sample) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, records := Merge(s.records, samples, s.clock)
	logger.Debugf("merged %d samples: %d tracked before, %d after", len(samples), len(s.records), len(next))
	s.records = next
	return records
}

// Records returns a copy of the current records ordered by pid.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Sample.PID < records[j].Sample.PID })
	return records
}

// Get returns the record for pid as of the last Merge.
func (s *Store) Get(pid int32) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[pid]
	return r, ok
}
