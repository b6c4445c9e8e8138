// Package hlc implements the Hybrid Logical Clock timestamps and
// per-process Clock that order every mutation the convergence engine
// produces or observes.
package hlc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidalsync/core/pkg/errs"
)

const (
	// MaxPhysical is the last millisecond of year 9999, the largest
	// physical_ms whose canonical rendering keeps a four-digit year (and
	// so the fixed CanonicalLen). It fits in 48 bits.
	MaxPhysical = 253_402_300_799_999
	// MaxCounter bounds counter to 16 bits.
	MaxCounter = (1 << 16) - 1
	// NodeIDLen is the fixed length of a node identifier.
	NodeIDLen = 16
	// CanonicalLen is the fixed length of a rendered Timestamp.
	CanonicalLen = 46
)

// Timestamp is the immutable HLC triple. Zero value is NOT a valid
// Timestamp for wire purposes but is used as the empty-clock starting
// point in Clock.
type Timestamp struct {
	PhysicalMS int64
	Counter    uint16
	NodeID     string
}

// Compare orders two Timestamps lexicographically over their canonical
// string form, equivalent to (physical_ms, counter, node_id) tuple order.
func Compare(a, b Timestamp) int {
	if a.PhysicalMS != b.PhysicalMS {
		if a.PhysicalMS < b.PhysicalMS {
			return -1
		}
		return 1
	}
	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return -1
		}
		return 1
	}
	return strings.Compare(a.NodeID, b.NodeID)
}

// Less reports whether a orders strictly before b.
func Less(a, b Timestamp) bool { return Compare(a, b) < 0 }

// String renders t in the canonical 46-character sortable form:
// YYYY-MM-DDTHH:MM:SS.sssZ-CCCC-NNNNNNNNNNNNNNNN.
func (t Timestamp) String() string {
	sec := t.PhysicalMS / 1000
	ms := t.PhysicalMS % 1000
	wall := time.Unix(sec, 0).UTC()
	return fmt.Sprintf("%s.%03dZ-%04x-%s",
		wall.Format("2006-01-02T15:04:05"), ms, t.Counter, t.NodeID)
}

// Parse decodes the canonical string form, failing with errs.Format on
// any structural mismatch and errs.Overflow if the counter exceeds 16 bits.
func Parse(s string) (Timestamp, error) {
	if len(s) != CanonicalLen {
		return Timestamp{}, errs.New(errs.Format, "hlc.parse", fmt.Sprintf("want length %d, got %d", CanonicalLen, len(s)))
	}
	// YYYY-MM-DDTHH:MM:SS.sssZ is 24 chars, then "-CCCC-" then 16 node chars.
	const tsLen = 24
	if s[tsLen] != '-' || s[tsLen+5] != '-' {
		return Timestamp{}, errs.New(errs.Format, "hlc.parse", "missing field separators")
	}
	wallPart := s[:tsLen]
	counterPart := s[tsLen+1 : tsLen+5]
	nodePart := s[tsLen+6:]

	if len(nodePart) != NodeIDLen {
		return Timestamp{}, errs.New(errs.Format, "hlc.parse", "node id must be 16 characters")
	}
	if !isHex(nodePart) {
		return Timestamp{}, errs.New(errs.Format, "hlc.parse", "node id must be hexadecimal")
	}

	wall, err := time.Parse("2006-01-02T15:04:05.000Z", wallPart)
	if err != nil {
		return Timestamp{}, errs.Wrap(errs.Format, "hlc.parse", "malformed timestamp", err)
	}

	counter64, err := strconv.ParseUint(counterPart, 16, 32)
	if err != nil {
		return Timestamp{}, errs.Wrap(errs.Format, "hlc.parse", "malformed counter", err)
	}
	if counter64 > MaxCounter {
		return Timestamp{}, errs.New(errs.Overflow, "hlc.parse", "counter exceeds 16 bits")
	}

	physMS := wall.UnixMilli()
	if physMS < 0 || physMS > MaxPhysical {
		return Timestamp{}, errs.New(errs.Format, "hlc.parse", "physical_ms out of range")
	}

	return Timestamp{PhysicalMS: physMS, Counter: uint16(counter64), NodeID: nodePart}, nil
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// Hash returns the MurmurHash3 32-bit (seed 0) digest of t's canonical
// string, used exclusively for Merkle leaf hashing. Byte-exact
// compatibility with other implementations is required by spec, so this
// hashes the UTF-8 bytes of String() with no additional canonicalization.
func (t Timestamp) Hash() int32 {
	return int32(murmur3_32([]byte(t.String()), 0))
}
