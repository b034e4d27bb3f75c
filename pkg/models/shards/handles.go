package shards

import (
	"strconv"

	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/spi"
)

type ColumnHandle struct {
	ConnectorID string `json:"connector_id"`
	Name        string `json:"name"`
	ID          int64  `json:"id"`
	Type        string `json:"type"`
}

var _ spi.ColumnHandle = ColumnHandle{}

func NewColumnHandle(connectorID, name string, id int64, typ string) ColumnHandle {
	return ColumnHandle{
		ConnectorID: connectorID,
		Name:        name,
		ID:          id,
		Type:        typ,
	}
}

func (c ColumnHandle) ColumnName() string {
	return c.Name
}

func (c ColumnHandle) String() string {
	return c.Name + "#" + strconv.FormatInt(c.ID, 10)
}

type TableHandle struct {
	ConnectorID   string `json:"connector_id"`
	SchemaName    string `json:"schema"`
	TableName     string `json:"table"`
	TableID       int64  `json:"table_id"`
	BucketCount   *int   `json:"bucket_count,omitempty"`
	Delete        bool   `json:"delete"`
	TransactionID *int64 `json:"transaction_id,omitempty"`
}

func (t *TableHandle) IsBucketed() bool {
	return t.BucketCount != nil
}

type TableLayoutHandle struct {
	Table      *TableHandle
	Constraint spi.Constraint
}

var _ spi.TableLayoutHandle = &TableLayoutHandle{}

func NewTableLayoutHandle(table *TableHandle, constraint spi.Constraint) *TableLayoutHandle {
	return &TableLayoutHandle{
		Table:      table,
		Constraint: constraint,
	}
}

func (l *TableLayoutHandle) LayoutConnectorID() string {
	return l.Table.ConnectorID
}

// Predicate is a shard-level predicate over this connector's columns.
type Predicate = predicate.TupleDomain[ColumnHandle]
