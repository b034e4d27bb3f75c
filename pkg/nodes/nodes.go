package nodes

import (
	"context"

	"github.com/kwonwoo078/presto/pkg/models/topology"
)

// Supplier reports the worker nodes currently alive in the cluster.
type Supplier interface {
	WorkerNodes(ctx context.Context) ([]topology.Node, error)
}

// Static is a fixed membership list, used when the cluster has no
// membership service.
type Static struct {
	nodes []topology.Node
}

var _ Supplier = &Static{}

func NewStatic(nodes []topology.Node) *Static {
	cp := make([]topology.Node, len(nodes))
	copy(cp, nodes)
	return &Static{nodes: cp}
}

func (s *Static) WorkerNodes(_ context.Context) ([]topology.Node, error) {
	ret := make([]topology.Node, len(s.nodes))
	copy(ret, s.nodes)
	return ret, nil
}
