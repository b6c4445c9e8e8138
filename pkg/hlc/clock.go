package hlc

import (
	"fmt"
	"sync"

	"github.com/tidalsync/core/pkg/errs"
)

// MaxDriftMS bounds how far a wall-clock reading (send) or a remote
// timestamp (recv) may diverge from the clock's own physical time.
const MaxDriftMS int64 = 60_000

// Clock is the per-process HLC state: the most recently emitted
// Timestamp. It is safe for concurrent use; every mutation runs under an
// internal mutex, per §5's single-writer requirement.
type Clock struct {
	mu  sync.Mutex
	cur Timestamp
}

// NewClock returns a Clock initialized to (0, 0, nodeID), as required at
// process start.
func NewClock(nodeID string) *Clock {
	return &Clock{cur: Timestamp{PhysicalMS: 0, Counter: 0, NodeID: nodeID}}
}

// Current returns the most recently emitted Timestamp.
func (c *Clock) Current() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Send advances the clock for a locally originated mutation observed at
// wall-clock nowMS, implementing the Kulkarni-Demirbas HLC send rule.
func (c *Clock) Send(nowMS int64) (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.cur.PhysicalMS
	if nowMS > p {
		p = nowMS
	}

	if p-nowMS > MaxDriftMS {
		return Timestamp{}, errs.New(errs.ClockDrift, "hlc.send", fmt.Sprintf("now=%d drifts from p=%d beyond %dms", nowMS, p, MaxDriftMS))
	}

	var counter uint32
	if p == c.cur.PhysicalMS {
		counter = uint32(c.cur.Counter) + 1
	} else {
		counter = 0
	}
	if counter > MaxCounter {
		return Timestamp{}, errs.New(errs.Overflow, "hlc.send", "counter exceeds 16 bits")
	}

	c.cur = Timestamp{PhysicalMS: p, Counter: uint16(counter), NodeID: c.cur.NodeID}
	return c.cur, nil
}

// Recv merges an observed remote Timestamp into the clock for a remote
// mutation observed at wall-clock nowMS, implementing the HLC recv rule.
func (c *Clock) Recv(nowMS int64, remote Timestamp) (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote.NodeID == c.cur.NodeID {
		return Timestamp{}, errs.New(errs.DuplicateNode, "hlc.recv", "remote node_id matches local node_id")
	}
	if remote.PhysicalMS-nowMS > MaxDriftMS {
		return Timestamp{}, errs.New(errs.ClockDrift, "hlc.recv", fmt.Sprintf("remote physical_ms=%d exceeds now=%d by more than %dms", remote.PhysicalMS, nowMS, MaxDriftMS))
	}

	p := c.cur.PhysicalMS
	if nowMS > p {
		p = nowMS
	}
	if remote.PhysicalMS > p {
		p = remote.PhysicalMS
	}

	var counter uint32
	switch {
	case p == c.cur.PhysicalMS && p == remote.PhysicalMS:
		counter = uint32(maxUint16(c.cur.Counter, remote.Counter)) + 1
	case p == c.cur.PhysicalMS:
		counter = uint32(c.cur.Counter) + 1
	case p == remote.PhysicalMS:
		counter = uint32(remote.Counter) + 1
	default:
		counter = 0
	}
	if counter > MaxCounter {
		return Timestamp{}, errs.New(errs.Overflow, "hlc.recv", "counter exceeds 16 bits")
	}

	c.cur = Timestamp{PhysicalMS: p, Counter: uint16(counter), NodeID: c.cur.NodeID}
	return c.cur, nil
}

func maxUint16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}
