package splitmgr

import (
	"math/rand/v2"

	"github.com/kwonwoo078/presto/pkg/models/topology"
)

// NodeSelector picks the node that restores an orphaned shard from backup.
// nodes is never empty.
type NodeSelector interface {
	Select(nodes []topology.Node) topology.Node
}

// NodeSelectorFunc adapts a function to NodeSelector.
type NodeSelectorFunc func(nodes []topology.Node) topology.Node

func (f NodeSelectorFunc) Select(nodes []topology.Node) topology.Node {
	return f(nodes)
}

type uniformSelector struct{}

// UniformSelector picks uniformly at random. It is safe for concurrent use.
func UniformSelector() NodeSelector {
	return uniformSelector{}
}

func (uniformSelector) Select(nodes []topology.Node) topology.Node {
	return nodes[rand.IntN(len(nodes))]
}
