package splitmgr

import (
	"context"

	"github.com/google/uuid"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/kwonwoo078/presto/pkg/nodes"
	"github.com/kwonwoo078/presto/pkg/statistics"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

// ShardAssigner records that a node holds a shard.
type ShardAssigner interface {
	AssignShard(ctx context.Context, tableID int64, shardUUID uuid.UUID, nodeID string) error
}

// scanTarget is what every split of one source carries besides its shards.
type scanTarget struct {
	connectorID   string
	tableID       int64
	predicate     shards.Predicate
	transactionID *int64
}

// assignPolicy maps one shard record onto addresses of the node snapshot.
// Only a non-bucketed shard without a live host and with backup available
// has side effects: it is assigned to a live node, which restores it.
type assignPolicy struct {
	nodes           nodes.Supplier
	assigner        ShardAssigner
	selector        NodeSelector
	backupAvailable bool
}

func (p *assignPolicy) assign(ctx context.Context, target *scanTarget, rec *shards.ShardNodes, snapshot *topology.NodeSnapshot) (*shards.Split, error) {
	addresses := snapshot.Addresses(rec.NodeIdentifiers)

	if rec.BucketNumber != nil {
		if len(addresses) == 0 {
			return nil, storeerror.Newf(storeerror.STORE_NO_HOST_FOR_BUCKETED_SHARD,
				"no host for bucket %d of table %d", *rec.BucketNumber, target.tableID)
		}
		return shards.NewBucketSplit(target.connectorID, rec.ShardUUIDs, *rec.BucketNumber, addresses, target.predicate, target.transactionID), nil
	}

	if len(rec.ShardUUIDs) != 1 {
		return nil, storeerror.Newf(storeerror.STORE_INTERNAL,
			"expected one shard for non-bucketed record of table %d, got %d", target.tableID, len(rec.ShardUUIDs))
	}
	shardUUID := rec.ShardUUIDs[0]

	if len(addresses) == 0 {
		if !p.backupAvailable {
			return nil, storeerror.Newf(storeerror.STORE_NO_HOST_FOR_SHARD, "no host for shard %s found", shardUUID)
		}

		node, err := p.reassign(ctx, target, shardUUID)
		if err != nil {
			return nil, err
		}
		addresses = []topology.HostAddress{node.Address}
	}

	return shards.NewSplit(target.connectorID, shardUUID, addresses, target.predicate, target.transactionID), nil
}

// reassign picks a live node to restore shardUUID from backup and persists
// the assignment. The write is not retried.
func (p *assignPolicy) reassign(ctx context.Context, target *scanTarget, shardUUID uuid.UUID) (topology.Node, error) {
	live, err := p.nodes.WorkerNodes(ctx)
	if err != nil {
		return topology.Node{}, storeerror.Wrap(storeerror.STORE_METADATA_ERROR, err)
	}
	if len(live) == 0 {
		return topology.Node{}, storeerror.New(storeerror.STORE_NO_NODES_AVAILABLE, "no nodes available to run query")
	}

	node := p.selector.Select(live)
	if err := p.assigner.AssignShard(ctx, target.tableID, shardUUID, node.Identifier); err != nil {
		storelog.Zero.Error().
			Err(err).
			Int64("table-id", target.tableID).
			Str("shard", shardUUID.String()).
			Str("node", node.Identifier).
			Msg("failed to assign shard for restore")
		return topology.Node{}, metadataErr(err)
	}

	storelog.Zero.Info().
		Int64("table-id", target.tableID).
		Str("shard", shardUUID.String()).
		Str("node", node.Identifier).
		Msg("assigned orphaned shard for restore from backup")
	statistics.RecordReassignment(target.connectorID)
	return node, nil
}
