package vchan

import (
	"fmt"
	"sync/atomic"
)

// Stats is a snapshot of a channel's counters
type Stats struct {
	BytesSent     uint64 // Bytes written to the socket from the write ring
	BytesReceived uint64 // Bytes read from the socket into the read ring
	Iterations    uint64 // Pump iterations
	Notifications uint64 // Progress notifications written to the socket event pipe
	Wakeups       uint64 // Pump wakeups caused by the user event pipe
	StateChanges  uint64 // State transitions
}

// Statistics tracks channel counters
type Statistics struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	iterations    atomic.Uint64
	notifications atomic.Uint64
	wakeups       atomic.Uint64
	stateChanges  atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Snapshot returns the current counter values
func (s *Statistics) Snapshot() Stats {
	return Stats{
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		Iterations:    s.iterations.Load(),
		Notifications: s.notifications.Load(),
		Wakeups:       s.wakeups.Load(),
		StateChanges:  s.stateChanges.Load(),
	}
}

// ConnStats keeps track of both currently open and total channel counts
type ConnStats struct {
	count atomic.Int32
	open  atomic.Int32
}

// New adds one to the total count and returns it
func (c *ConnStats) New() int32 {
	return c.count.Add(1)
}

// Open adds one to the current open count
func (c *ConnStats) Open() {
	c.open.Add(1)
}

// Close subtracts one from the current open count
func (c *ConnStats) Close() {
	c.open.Add(-1)
}

// Counts returns the open and total counts
func (c *ConnStats) Counts() (open, total int32) {
	return c.open.Load(), c.count.Load()
}

func (c *ConnStats) String() string {
	return fmt.Sprintf("[%d/%d]", c.open.Load(), c.count.Load())
}
