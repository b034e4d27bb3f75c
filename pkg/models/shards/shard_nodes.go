package shards

import (
	"github.com/google/uuid"
)

// ShardNodes is one record of the shard metadata stream: the shards to be
// read together and the nodes believed to host them. Several shards share a
// record only when they share a bucket.
type ShardNodes struct {
	ShardUUIDs      []uuid.UUID `json:"shard_uuids"`
	BucketNumber    *int        `json:"bucket_number,omitempty"`
	NodeIdentifiers []string    `json:"nodes"`
}

func NewShardNodes(shardUUID uuid.UUID, nodes []string) *ShardNodes {
	return &ShardNodes{
		ShardUUIDs:      []uuid.UUID{shardUUID},
		NodeIdentifiers: nodes,
	}
}

func NewBucketShardNodes(shardUUIDs []uuid.UUID, bucket int, nodes []string) *ShardNodes {
	return &ShardNodes{
		ShardUUIDs:      shardUUIDs,
		BucketNumber:    &bucket,
		NodeIdentifiers: nodes,
	}
}

func (s *ShardNodes) IsBucketed() bool {
	return s.BucketNumber != nil
}
