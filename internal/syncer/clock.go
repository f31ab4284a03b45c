package syncer

import (
	"sync"
	"time"
)

// Clock hands out unix-millisecond timestamps for outgoing messages. Two
// messages from the same sender in the same millisecond would collide on the
// (sender, receiver, timestamp) dedupe key, so Now never repeats a value
// within a process.
type Clock struct {
	mu   sync.Mutex
	last int64
}

func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}
