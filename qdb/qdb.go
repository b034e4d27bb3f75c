package qdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/resultiter"
)

// ShardNodesIterator is a cursor over shard metadata records.
type ShardNodesIterator = resultiter.ResultIterator[*shards.ShardNodes]

// QDB persists tables, shards and their node assignments.
type QDB interface {
	CreateTable(ctx context.Context, table *Table) error
	GetTable(ctx context.Context, id int64) (*Table, error)

	AddShard(ctx context.Context, shard *Shard) error
	GetShard(ctx context.Context, id uuid.UUID) (*Shard, error)

	AssignBuckets(ctx context.Context, tableID int64, nodes map[int]string) error

	// ShardNodes streams the shards of a table that may satisfy pred. For
	// bucketed streams nodes come from the bucket assignment; merged streams
	// group all shards of one bucket into a single record.
	ShardNodes(ctx context.Context, tableID int64, bucketed, merged bool, pred shards.Predicate) (ShardNodesIterator, error)

	// AssignShard adds nodeID to the nodes of a non-bucketed shard. It is
	// idempotent.
	AssignShard(ctx context.Context, tableID int64, shardUUID uuid.UUID, nodeID string) error

	Close() error
}
