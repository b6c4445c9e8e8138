package merkle

import (
	"encoding/json"
)

// wireNode mirrors the wire format's digit-keyed recursive object:
// { "hash": int32, "0"?: Merkle, "1"?: Merkle, "2"?: Merkle }.
type wireNode struct {
	Hash int32      `json:"hash"`
	C0   *wireNode  `json:"0,omitempty"`
	C1   *wireNode  `json:"1,omitempty"`
	C2   *wireNode  `json:"2,omitempty"`
}

func toWire(n *Node) *wireNode {
	if n == nil {
		return &wireNode{Hash: 0}
	}
	w := &wireNode{Hash: n.Hash}
	if n.Children[0] != nil {
		w.C0 = toWire(n.Children[0])
	}
	if n.Children[1] != nil {
		w.C1 = toWire(n.Children[1])
	}
	if n.Children[2] != nil {
		w.C2 = toWire(n.Children[2])
	}
	return w
}

func fromWire(w *wireNode) *Node {
	if w == nil {
		return nil
	}
	n := &Node{Hash: w.Hash}
	if w.C0 != nil {
		n.Children[0] = fromWire(w.C0)
	}
	if w.C1 != nil {
		n.Children[1] = fromWire(w.C1)
	}
	if w.C2 != nil {
		n.Children[2] = fromWire(w.C2)
	}
	return n
}

// MarshalJSON renders n in the spec's recursive digit-keyed wire format.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(n))
}

// UnmarshalJSON parses the spec's recursive digit-keyed wire format.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed := fromWire(&w)
	*n = *parsed
	return nil
}
