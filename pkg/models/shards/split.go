package shards

import (
	"github.com/google/uuid"

	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/kwonwoo078/presto/pkg/spi"
)

type Split struct {
	ConnectorID        string                 `json:"connector_id"`
	ShardUUIDs         []uuid.UUID            `json:"shard_uuids"`
	BucketNumber       *int                   `json:"bucket_number,omitempty"`
	HostAddresses      []topology.HostAddress `json:"addresses"`
	EffectivePredicate Predicate              `json:"effective_predicate"`
	TransactionID      *int64                 `json:"transaction_id,omitempty"`
}

var _ spi.Split = &Split{}

func NewSplit(connectorID string, shardUUID uuid.UUID, addresses []topology.HostAddress, pred Predicate, txID *int64) *Split {
	return &Split{
		ConnectorID:        connectorID,
		ShardUUIDs:         []uuid.UUID{shardUUID},
		HostAddresses:      addresses,
		EffectivePredicate: pred,
		TransactionID:      txID,
	}
}

func NewBucketSplit(connectorID string, shardUUIDs []uuid.UUID, bucket int, addresses []topology.HostAddress, pred Predicate, txID *int64) *Split {
	return &Split{
		ConnectorID:        connectorID,
		ShardUUIDs:         shardUUIDs,
		BucketNumber:       &bucket,
		HostAddresses:      addresses,
		EffectivePredicate: pred,
		TransactionID:      txID,
	}
}

func (s *Split) Addresses() []topology.HostAddress {
	return s.HostAddresses
}

// IsRemotelyAccessible is false: shards live on worker local storage.
func (s *Split) IsRemotelyAccessible() bool {
	return false
}
