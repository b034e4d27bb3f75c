// Package spi holds the contracts between the query engine and a storage
// connector's split generation.
package spi

import (
	"context"

	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/topology"
)

// ColumnHandle identifies a column for the connector that created it.
type ColumnHandle interface {
	ColumnName() string
}

// TableLayoutHandle is an opaque scan description produced by the
// connector's metadata layer.
type TableLayoutHandle interface {
	LayoutConnectorID() string
}

type TransactionHandle interface {
	TransactionID() string
}

type Session struct {
	QueryID string
	User    string
}

type Split interface {
	Addresses() []topology.HostAddress
	IsRemotelyAccessible() bool
}

// SplitBatch is a pending result of SplitSource.GetNextBatch.
type SplitBatch interface {
	// Wait blocks until the batch resolves or ctx is done.
	Wait(ctx context.Context) ([]Split, error)
	Done() <-chan struct{}
	Cancel()
}

type SplitSource interface {
	DataSourceName() string
	GetNextBatch(ctx context.Context, maxSize int) (SplitBatch, error)
	IsFinished() bool
	Close()
}

type SplitManager interface {
	GetSplits(ctx context.Context, tx TransactionHandle, session Session, layout TableLayoutHandle) (SplitSource, error)
}

// Constraint is the pushed-down predicate expressed over engine column handles.
type Constraint = predicate.TupleDomain[ColumnHandle]
