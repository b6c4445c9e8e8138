// Package idgen mints the two identifiers the convergence engine needs
// at process start: a node id for the HLC clock and a group id naming
// the sync group a node exchanges entries within.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewNodeID returns a fresh 16-hex-character node identifier. It is
// generated from crypto/rand rather than uuid.New(): the HLC node_id
// slot is a flat 16-hex-digit token (§3), not a UUID's hyphenated,
// version-tagged shape.
func NewNodeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewGroupID mints a random UUID used as the group_id of the sync
// envelope. Op-log entries carry no group id, so it does not tie field
// mutations together; LWW resolves each field independently.
func NewGroupID() string {
	return uuid.New().String()
}
