package topology

import (
	"fmt"
	"sort"
)

type Node struct {
	Identifier string      `json:"id" toml:"id" yaml:"id"`
	Address    HostAddress `json:"address" toml:"address" yaml:"address"`
}

func NewNode(id string, addr HostAddress) Node {
	return Node{
		Identifier: id,
		Address:    addr,
	}
}

// NodeSnapshot is an immutable index of worker nodes by identifier.
// It is safe for concurrent reads.
type NodeSnapshot struct {
	byID map[string]Node
}

func NewNodeSnapshot(nodes []Node) (*NodeSnapshot, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, ok := byID[n.Identifier]; ok {
			return nil, fmt.Errorf("duplicate node identifier %q", n.Identifier)
		}
		byID[n.Identifier] = n
	}
	return &NodeSnapshot{byID: byID}, nil
}

func (s *NodeSnapshot) Lookup(id string) (Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// Addresses resolves ids in order. Unknown ids are skipped.
func (s *NodeSnapshot) Addresses(ids []string) []HostAddress {
	ret := make([]HostAddress, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.byID[id]; ok {
			ret = append(ret, n.Address)
		}
	}
	return ret
}

func (s *NodeSnapshot) Len() int {
	return len(s.byID)
}

// Nodes returns the snapshot content sorted by identifier.
func (s *NodeSnapshot) Nodes() []Node {
	ret := make([]Node, 0, len(s.byID))
	for _, n := range s.byID {
		ret = append(ret, n)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Identifier < ret[j].Identifier
	})
	return ret
}
