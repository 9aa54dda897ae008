package stats

import (
	"sync"
	"time"
)

// Bucket holds the requests completed within one interval of a test.
type Bucket struct {
	// Offset is the start of the interval relative to the test start.
	Offset    time.Duration `json:"offset"`
	Requests  int64         `json:"requests"`
	Successes int64         `json:"successes"`
	Failures  int64         `json:"failures"`
	Bytes     int64         `json:"bytes"`
}

// RPS returns the request rate of the bucket.
func (b Bucket) RPS(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(b.Requests) / interval.Seconds()
}

type slot struct {
	index int64
	used  bool
	Bucket
}

// Series stores time-bucketed request counts in a ring buffer.
//
// Requests are bucketed by completion time, so late responses land in the
// interval they finished in. Once the ring is full the oldest buckets are
// discarded.
type Series struct {
	interval time.Duration

	mu    sync.Mutex
	start time.Time
	ring  []slot
	first int64 // lowest retained slot index
	last  int64 // highest slot index seen
	any   bool
}

// NewSeries creates a series of maxBuckets buckets, each interval wide.
func NewSeries(interval time.Duration, maxBuckets int) *Series {
	if interval <= 0 {
		interval = time.Second
	}
	if maxBuckets <= 0 {
		maxBuckets = 3600 // Default: 1 hour of data
	}
	return &Series{
		interval: interval,
		ring:     make([]slot, maxBuckets),
	}
}

// Interval returns the bucket width.
func (s *Series) Interval() time.Duration {
	return s.interval
}

// SetStart sets the time offsets are measured from.
func (s *Series) SetStart(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = t
}

// Record adds a request that completed at t.
func (s *Series) Record(t time.Time, success bool, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.start.IsZero() {
		s.start = t
	}
	idx := int64(t.Sub(s.start) / s.interval)
	if idx < 0 {
		idx = 0
	}

	size := int64(len(s.ring))
	switch {
	case !s.any:
		s.first, s.last, s.any = idx, idx, true
	case idx > s.last:
		s.last = idx
		if s.last-s.first >= size {
			s.first = s.last - size + 1
		}
	case idx < s.first:
		if s.last-idx >= size {
			return // too old to retain
		}
		s.first = idx
	}

	sl := &s.ring[idx%size]
	if !sl.used || sl.index != idx {
		*sl = slot{index: idx, used: true, Bucket: Bucket{Offset: time.Duration(idx) * s.interval}}
	}
	sl.Requests++
	sl.Bytes += bytes
	if success {
		sl.Successes++
	} else {
		sl.Failures++
	}
}

// Buckets returns a copy of the retained buckets in chronological order.
// Intervals without completions are included as empty buckets.
func (s *Series) Buckets() []Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.any {
		return nil
	}

	size := int64(len(s.ring))
	result := make([]Bucket, 0, s.last-s.first+1)
	for idx := s.first; idx <= s.last; idx++ {
		sl := s.ring[idx%size]
		if sl.used && sl.index == idx {
			result = append(result, sl.Bucket)
			continue
		}
		result = append(result, Bucket{Offset: time.Duration(idx) * s.interval})
	}
	return result
}
