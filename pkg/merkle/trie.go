// Package merkle implements the base-3 Merkle trie that indexes every
// Timestamp a node has ever seen, keyed by minute-of-epoch, giving O(depth)
// discovery of the earliest point at which two peers' known-entry sets
// diverge.
//
// Nodes are immutable: every insert returns a new root sharing every
// subtree unaffected by the insert (a persistent, structurally-shared
// trie), mirroring how a Go GC-backed tree avoids the need for explicit
// reference counting.
package merkle

import (
	"fmt"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
)

// Depth is the fixed path length: the base-3 representation of minutes
// since epoch is rendered to exactly this many digits.
const Depth = 16

// MaxMinutes is the exclusive upper bound on minutes-since-epoch this
// trie can address: 3^16.
const MaxMinutes = 43046721 // 3^16

// Node is one position in the trie. The zero Node (hash 0, no children)
// is the canonical "empty node" used for keys no one has inserted.
type Node struct {
	Hash     int32
	Children [3]*Node // indexed by digit 0, 1, 2; nil means absent
}

// Empty is the shared empty-trie root.
var Empty = &Node{}

// child returns n's child at digit d, or the shared empty node if absent.
// Safe on a nil n (an absent branch).
func (n *Node) child(d int) *Node {
	if n == nil || n.Children[d] == nil {
		return Empty
	}
	return n.Children[d]
}

// hashOf returns n's hash, treating nil as the empty node's hash (0).
func (n *Node) hashOf() int32 {
	if n == nil {
		return 0
	}
	return n.Hash
}

// PathOfMinute renders m (minutes since epoch) as a base-3 string of
// exactly Depth digits, most-significant first.
func PathOfMinute(m int64) (string, error) {
	if m < 0 {
		return "", errs.New(errs.MinTimeError, "merkle.path_of_minute", "minute is negative")
	}
	if m >= MaxMinutes {
		return "", errs.New(errs.MaxTimeError, "merkle.path_of_minute", fmt.Sprintf("minute %d exceeds 3^%d", m, Depth))
	}
	digits := make([]byte, Depth)
	v := m
	for i := Depth - 1; i >= 0; i-- {
		digits[i] = byte('0' + v%3)
		v /= 3
	}
	return string(digits), nil
}

// PathOf renders the base-3 path for a Timestamp's minute-of-epoch.
func PathOf(t hlc.Timestamp) (string, error) {
	return PathOfMinute(t.PhysicalMS / 60_000)
}

// MinuteOfPath parses a (possibly short) base-3 digit path back into a
// minute value, right-padding with '0' to Depth digits before parsing —
// the inverse used by diff to convert an accumulated divergence path
// back into a timestamp boundary.
func MinuteOfPath(path string) (int64, error) {
	if len(path) == 0 {
		return 0, errs.New(errs.MinPathLengthError, "merkle.minute_of_path", "path is empty")
	}
	if len(path) > Depth {
		return 0, errs.New(errs.MaxTimeError, "merkle.minute_of_path", "path longer than trie depth")
	}
	var m int64
	for i := 0; i < Depth; i++ {
		var digit int64
		if i < len(path) {
			d := path[i]
			if d < '0' || d > '2' {
				return 0, errs.New(errs.Format, "merkle.minute_of_path", "path digit out of range")
			}
			digit = int64(d - '0')
		}
		m = m*3 + digit
	}
	return m, nil
}

// InsertHash returns a new trie where every node along path has its hash
// XORed with h and a leaf created at the terminal position. Unaffected
// subtrees are shared by reference with root.
func InsertHash(root *Node, path string, h int32) *Node {
	if path == "" {
		return &Node{Hash: root.hashOf() ^ h}
	}
	digit := int(path[0] - '0')
	newChild := InsertHash(root.child(digit), path[1:], h)

	next := &Node{Hash: root.hashOf() ^ h}
	for d := 0; d < 3; d++ {
		if d == digit {
			next.Children[d] = newChild
		} else {
			next.Children[d] = root.child(d)
			if next.Children[d] == Empty {
				next.Children[d] = nil
			}
		}
	}
	return next
}

// Insert folds Timestamp t into root via its minute-of-epoch hash path.
// Callers must dedupe before calling Insert — reinserting an already-seen
// Timestamp XORs its hash back out and corrupts the index.
func Insert(root *Node, t hlc.Timestamp) (*Node, error) {
	path, err := PathOf(t)
	if err != nil {
		return nil, err
	}
	return InsertHash(root, path, t.Hash()), nil
}

// Diff finds the earliest divergence, in epoch milliseconds, between two
// tries' known-timestamp sets. It returns (0, false) when the roots carry
// identical hashes (no known divergence).
func Diff(a, b *Node) (int64, bool) {
	if a.hashOf() == b.hashOf() {
		return 0, false
	}

	path := make([]byte, 0, Depth)
	for {
		found := -1
		for d := 0; d < 3; d++ {
			if a.child(d).hashOf() != b.child(d).hashOf() {
				found = d
				break
			}
		}
		if found == -1 {
			break
		}
		path = append(path, byte('0'+found))
		a = a.child(found)
		b = b.child(found)
	}

	m, err := MinuteOfPath(string(path))
	if err != nil {
		// path is always well-formed and within Depth by construction.
		panic(fmt.Sprintf("merkle: invariant violated converting diff path: %v", err))
	}
	return m * 60_000, true
}

// Prune returns a trie retaining at most n children per node (n in
// sorted digit order), bounding wire size at the cost of losing the
// ability to diff against divergences inside a dropped branch. Optional
// per spec; both peers must prune consistently or divergences older
// than the pruned horizon will not be found.
func Prune(root *Node, n int) *Node {
	if root == nil {
		return nil
	}
	pruned := &Node{Hash: root.Hash}
	kept := 0
	for d := 0; d < 3 && kept < n; d++ {
		if root.Children[d] != nil {
			pruned.Children[d] = Prune(root.Children[d], n)
			kept++
		}
	}
	return pruned
}
