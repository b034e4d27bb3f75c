// Package splitmgr turns table scans over shard storage into streams of
// splits located on the worker nodes that hold the shards.
package splitmgr

import (
	"context"
	"fmt"

	"github.com/kwonwoo078/presto/pkg/backup"
	"github.com/kwonwoo078/presto/pkg/executor"
	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/nodes"
	"github.com/kwonwoo078/presto/pkg/spi"
	"github.com/kwonwoo078/presto/pkg/statistics"
	"github.com/kwonwoo078/presto/pkg/storelog"
	"github.com/kwonwoo078/presto/qdb"
)

// Manager creates split sources for one connector. All of its sources run
// their batches on one executor, which Destroy shuts down.
type Manager struct {
	connectorID string
	nodes       nodes.Supplier
	store       qdb.QDB
	exec        *executor.Executor
	policy      *assignPolicy
}

var _ spi.SplitManager = &Manager{}

type Option func(*managerOptions)

type managerOptions struct {
	selector NodeSelector
}

// WithNodeSelector replaces the uniform random choice of the node that
// restores an orphaned shard.
func WithNodeSelector(s NodeSelector) Option {
	return func(o *managerOptions) {
		o.selector = s
	}
}

// NewManager asks svc for backup availability once; the answer holds for
// the manager lifetime.
func NewManager(connectorID string, supplier nodes.Supplier, store qdb.QDB, svc backup.Service, opts ...Option) (*Manager, error) {
	o := managerOptions{selector: UniformSelector()}
	for _, opt := range opts {
		opt(&o)
	}

	exec, err := executor.New("split-" + connectorID)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		connectorID: connectorID,
		nodes:       supplier,
		store:       store,
		exec:        exec,
		policy: &assignPolicy{
			nodes:           supplier,
			assigner:        store,
			selector:        o.selector,
			backupAvailable: svc.IsBackupAvailable(),
		},
	}

	storelog.Zero.Debug().
		Str("connector", connectorID).
		Bool("backup", m.policy.backupAvailable).
		Msg("split manager: created")
	return m, nil
}

func (m *Manager) ConnectorID() string {
	return m.connectorID
}

// GetSplits opens a split source for the scan described by layout, which
// must come from this connector.
func (m *Manager) GetSplits(ctx context.Context, _ spi.TransactionHandle, session spi.Session, layout spi.TableLayoutHandle) (spi.SplitSource, error) {
	return m.OpenSplitSource(ctx, session, layout)
}

// OpenSplitSource is GetSplits returning the concrete source.
func (m *Manager) OpenSplitSource(ctx context.Context, session spi.Session, layout spi.TableLayoutHandle) (*SplitSource, error) {
	if m.exec.IsShutdown() {
		return nil, storeerror.Newf(storeerror.STORE_SOURCE_CLOSED, "split manager %s is destroyed", m.connectorID)
	}

	handle, ok := layout.(*shards.TableLayoutHandle)
	if !ok || handle == nil || handle.Table == nil {
		return nil, storeerror.Newf(storeerror.STORE_INTERNAL, "unexpected table layout %T", layout)
	}
	table := handle.Table

	pred, err := predicate.Transform(handle.Constraint, toShardColumn)
	if err != nil {
		return nil, err
	}

	bucketed := table.IsBucketed()
	merged := bucketed && !table.Delete

	storelog.Zero.Debug().
		Str("connector", m.connectorID).
		Str("query", session.QueryID).
		Int64("table-id", table.TableID).
		Bool("bucketed", bucketed).
		Bool("merged", merged).
		Msg("split manager: get splits")

	live, err := m.nodes.WorkerNodes(ctx)
	if err != nil {
		return nil, storeerror.Wrap(storeerror.STORE_METADATA_ERROR, err)
	}

	src, err := newSplitSource(ctx, sourceParams{
		target: scanTarget{
			connectorID:   m.connectorID,
			tableID:       table.TableID,
			predicate:     pred,
			transactionID: table.TransactionID,
		},
		bucketed: bucketed,
		merged:   merged,
		live:     live,
		store:    m.store,
		policy:   m.policy,
		exec:     m.exec,
	})
	if err != nil {
		return nil, err
	}
	statistics.SplitSourceOpened(m.connectorID)
	return src, nil
}

func toShardColumn(c spi.ColumnHandle) (shards.ColumnHandle, error) {
	h, ok := c.(shards.ColumnHandle)
	if !ok {
		return shards.ColumnHandle{}, storeerror.New(storeerror.STORE_FOREIGN_COLUMN_HANDLE,
			fmt.Sprintf("column handle %s of type %T does not belong to this connector", c.ColumnName(), c))
	}
	return h, nil
}

// Destroy stops every batch of every source of the manager. Pending work
// is dropped and further batches fail.
func (m *Manager) Destroy() {
	storelog.Zero.Debug().
		Str("connector", m.connectorID).
		Int("running", m.exec.Running()).
		Msg("split manager: destroy")
	m.exec.Shutdown()
}
