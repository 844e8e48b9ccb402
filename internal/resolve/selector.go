package resolve

import "sync/atomic"

// HostSelector picks the index of the first host to try for a call.
type HostSelector interface {
	Next(n int) int
}

// RoundRobin cycles through hosts. Concurrent callers share one cursor; the
// atomic add keeps the rotation fair without a lock.
type RoundRobin struct {
	cursor atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Next(n int) int {
	if n <= 0 {
		return 0
	}
	return int((r.cursor.Add(1) - 1) % uint64(n))
}
