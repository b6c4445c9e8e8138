// Package protover negotiates compatibility between the sync protocol
// version this node speaks and the version a peer advertises, using
// semantic-version constraints.
package protover

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the sync protocol version this build implements. It
// advances on wire-incompatible changes to the Entry or sync envelope
// shapes (see the schema-versioning design note).
const Version = "1.0.0"

// Negotiator checks a peer-advertised protocol version against a
// constraint this node is willing to interoperate with.
type Negotiator struct {
	constraint *semver.Constraints
}

// NewNegotiator builds a Negotiator from a semver constraint expression,
// e.g. "^1.0.0" or ">=1.0.0, <2.0.0".
func NewNegotiator(constraintExpr string) (*Negotiator, error) {
	c, err := semver.NewConstraint(constraintExpr)
	if err != nil {
		return nil, fmt.Errorf("protover: invalid constraint %q: %w", constraintExpr, err)
	}
	return &Negotiator{constraint: c}, nil
}

// Accepts reports whether peerVersion satisfies this node's constraint.
func (n *Negotiator) Accepts(peerVersion string) (bool, error) {
	v, err := semver.NewVersion(peerVersion)
	if err != nil {
		return false, fmt.Errorf("protover: invalid peer version %q: %w", peerVersion, err)
	}
	return n.constraint.Check(v), nil
}

// Compare orders two protocol version strings, returning -1, 0, or 1.
func Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("protover: invalid version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("protover: invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}
