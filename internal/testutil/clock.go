package testutil

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// StubClock is a filestore.Clock that only moves when told to.
// Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. past a token expiry.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator is a filestore.IDGenerator returning "id-1", "id-2", ...
// in call order. The storage root is always the first id issued by a fresh
// service.
type StubIDGenerator struct {
	n atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	return "id-" + strconv.FormatInt(g.n.Add(1), 10)
}
