package splitmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mocknodes "github.com/kwonwoo078/presto/pkg/mock/nodes"
	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
	mockqdb "github.com/kwonwoo078/presto/qdb/mock"
)

var (
	nodeA = topology.NewNode("a", topology.NewHostAddress("10.0.0.1", 8080))
	nodeB = topology.NewNode("b", topology.NewHostAddress("10.0.0.2", 8080))
	nodeC = topology.NewNode("c", topology.NewHostAddress("10.0.0.3", 8080))
)

func pickNode(i int) NodeSelector {
	return NodeSelectorFunc(func(nodes []topology.Node) topology.Node {
		return nodes[i%len(nodes)]
	})
}

func testTarget() *scanTarget {
	tx := int64(99)
	return &scanTarget{
		connectorID:   "warehouse",
		tableID:       7,
		predicate:     predicate.All[shards.ColumnHandle](),
		transactionID: &tx,
	}
}

func mustSnapshot(t *testing.T, nodes ...topology.Node) *topology.NodeSnapshot {
	t.Helper()
	s, err := topology.NewNodeSnapshot(nodes)
	require.NoError(t, err)
	return s
}

func TestAssignBucketed(t *testing.T) {
	ctrl := gomock.NewController(t)
	for _, backup := range []bool{false, true} {
		p := &assignPolicy{
			nodes:           mocknodes.NewMockSupplier(ctrl),
			assigner:        mockqdb.NewMockQDB(ctrl),
			selector:        pickNode(0),
			backupAvailable: backup,
		}
		ids := []uuid.UUID{uuid.New(), uuid.New()}

		split, err := p.assign(context.Background(), testTarget(),
			shards.NewBucketShardNodes(ids, 3, []string{"gone", "b"}), mustSnapshot(t, nodeA, nodeB))
		require.NoError(t, err)
		require.NotNil(t, split.BucketNumber)
		assert.Equal(t, 3, *split.BucketNumber)
		assert.Equal(t, ids, split.ShardUUIDs)
		assert.Equal(t, []topology.HostAddress{nodeB.Address}, split.Addresses())
		assert.Equal(t, int64(99), *split.TransactionID)
		assert.Equal(t, "warehouse", split.ConnectorID)

		// bucketed shards are never reassigned
		_, err = p.assign(context.Background(), testTarget(),
			shards.NewBucketShardNodes(ids, 2, []string{"gone"}), mustSnapshot(t, nodeA, nodeB))
		assert.True(t, storeerror.HasCode(err, storeerror.STORE_NO_HOST_FOR_BUCKETED_SHARD), "backup=%t: %v", backup, err)
	}
}

func TestAssignResolvable(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := &assignPolicy{
		nodes:    mocknodes.NewMockSupplier(ctrl),
		assigner: mockqdb.NewMockQDB(ctrl),
		selector: pickNode(0),
	}
	id := uuid.New()

	split, err := p.assign(context.Background(), testTarget(),
		shards.NewShardNodes(id, []string{"c", "a"}), mustSnapshot(t, nodeA, nodeB, nodeC))
	require.NoError(t, err)
	assert.Nil(t, split.BucketNumber)
	assert.Equal(t, []uuid.UUID{id}, split.ShardUUIDs)
	assert.Equal(t, []topology.HostAddress{nodeC.Address, nodeA.Address}, split.Addresses())
	assert.False(t, split.IsRemotelyAccessible())
}

func TestAssignMultipleShardsWithoutBucket(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := &assignPolicy{
		nodes:           mocknodes.NewMockSupplier(ctrl),
		assigner:        mockqdb.NewMockQDB(ctrl),
		selector:        pickNode(0),
		backupAvailable: true,
	}
	rec := &shards.ShardNodes{ShardUUIDs: []uuid.UUID{uuid.New(), uuid.New()}, NodeIdentifiers: []string{"a"}}

	_, err := p.assign(context.Background(), testTarget(), rec, mustSnapshot(t, nodeA))
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_INTERNAL), "%v", err)
}

func TestAssignNoHostWithoutBackup(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := &assignPolicy{
		nodes:    mocknodes.NewMockSupplier(ctrl),
		assigner: mockqdb.NewMockQDB(ctrl),
		selector: pickNode(0),
	}

	for _, ids := range [][]string{nil, {"gone"}} {
		_, err := p.assign(context.Background(), testTarget(),
			shards.NewShardNodes(uuid.New(), ids), mustSnapshot(t, nodeA))
		assert.True(t, storeerror.HasCode(err, storeerror.STORE_NO_HOST_FOR_SHARD), "%v", err)
	}
}

func TestAssignRestoreFromBackup(t *testing.T) {
	ctrl := gomock.NewController(t)
	supplier := mocknodes.NewMockSupplier(ctrl)
	assigner := mockqdb.NewMockQDB(ctrl)
	p := &assignPolicy{
		nodes:           supplier,
		assigner:        assigner,
		selector:        pickNode(2),
		backupAvailable: true,
	}
	id := uuid.New()
	ctx := context.Background()

	// the live set is queried again, not the snapshot
	supplier.EXPECT().WorkerNodes(gomock.Any()).Return([]topology.Node{nodeA, nodeB, nodeC}, nil)
	assigner.EXPECT().AssignShard(gomock.Any(), int64(7), id, "c").Return(nil).Times(1)

	split, err := p.assign(ctx, testTarget(), shards.NewShardNodes(id, []string{"gone"}), mustSnapshot(t, nodeA))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, split.ShardUUIDs)
	assert.Equal(t, []topology.HostAddress{nodeC.Address}, split.Addresses())
}

func TestAssignRestoreFailures(t *testing.T) {
	id := uuid.New()
	writeErr := errors.New("connection reset")

	for _, tt := range []struct {
		name   string
		live   []topology.Node
		liveFn error
		write  error
		check  func(t *testing.T, err error)
	}{
		{
			name: "no live nodes",
			check: func(t *testing.T, err error) {
				assert.True(t, storeerror.HasCode(err, storeerror.STORE_NO_NODES_AVAILABLE), "%v", err)
			},
		},
		{
			name:   "node listing fails",
			liveFn: errors.New("etcd unavailable"),
			check: func(t *testing.T, err error) {
				assert.True(t, storeerror.HasCode(err, storeerror.STORE_METADATA_ERROR), "%v", err)
			},
		},
		{
			name:  "assignment write fails",
			live:  []topology.Node{nodeB},
			write: writeErr,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, writeErr)
				assert.True(t, storeerror.HasCode(err, storeerror.STORE_METADATA_ERROR), "%v", err)
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			supplier := mocknodes.NewMockSupplier(ctrl)
			assigner := mockqdb.NewMockQDB(ctrl)
			p := &assignPolicy{
				nodes:           supplier,
				assigner:        assigner,
				selector:        pickNode(0),
				backupAvailable: true,
			}

			supplier.EXPECT().WorkerNodes(gomock.Any()).Return(tt.live, tt.liveFn)
			if len(tt.live) > 0 {
				assigner.EXPECT().AssignShard(gomock.Any(), int64(7), id, tt.live[0].Identifier).Return(tt.write).Times(1)
			}

			split, err := p.assign(context.Background(), testTarget(), shards.NewShardNodes(id, nil), mustSnapshot(t))
			assert.Nil(t, split)
			tt.check(t, err)
		})
	}
}

func TestUniformSelector(t *testing.T) {
	live := []topology.Node{nodeA, nodeB, nodeC}
	seen := map[string]bool{}
	s := UniformSelector()
	for i := 0; i < 300; i++ {
		n := s.Select(live)
		assert.Contains(t, live, n)
		seen[n.Identifier] = true
	}
	assert.Len(t, seen, 3)
}
