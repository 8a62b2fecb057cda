package pipeline

import "sync"

// RunStats tracks aggregate counters and byte totals across a batch
// run. Workers update it concurrently.
type RunStats struct {
	mu sync.Mutex

	Total     int // files discovered
	Converted int // passed verification via stream copy
	Reencoded int // passed verification after audio re-encode
	Skipped   int // existing output, too small, or not convertible
	Failed    int // verification failed, no output produced
	Errored   int // aborted by a probe/decode/encode error

	TotalInputBytes  int64
	TotalOutputBytes int64
}

// SpaceSaved returns the aggregate byte difference between inputs and
// outputs. Positive means outputs are smaller.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// OK reports whether every discovered file either converted or was
// deliberately skipped.
func (s *RunStats) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

func (s *RunStats) update(fn func(*RunStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
