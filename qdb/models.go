package qdb

import (
	"github.com/google/uuid"
)

type Column struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	ID          int64    `json:"id"`
	BucketCount *int     `json:"bucket_count,omitempty"`
	Columns     []Column `json:"columns,omitempty"`
}

func NewTable(id int64, bucketCount *int, columns ...Column) *Table {
	return &Table{
		ID:          id,
		BucketCount: bucketCount,
		Columns:     columns,
	}
}

func (t *Table) IsBucketed() bool {
	return t.BucketCount != nil
}

// ColumnStats bound the values of one column inside one shard. Nil Min or
// Max means the bound is unknown.
type ColumnStats struct {
	Min      any  `json:"min,omitempty"`
	Max      any  `json:"max,omitempty"`
	HasNulls bool `json:"has_nulls,omitempty"`
}

type Shard struct {
	UUID         uuid.UUID             `json:"uuid"`
	TableID      int64                 `json:"table_id"`
	BucketNumber *int                  `json:"bucket_number,omitempty"`
	Nodes        []string              `json:"nodes,omitempty"`
	RowCount     int64                 `json:"row_count"`
	Stats        map[int64]ColumnStats `json:"stats,omitempty"`
}

func NewShard(id uuid.UUID, tableID int64, nodes ...string) *Shard {
	return &Shard{
		UUID:    id,
		TableID: tableID,
		Nodes:   nodes,
	}
}

func NewBucketShard(id uuid.UUID, tableID int64, bucket int) *Shard {
	return &Shard{
		UUID:         id,
		TableID:      tableID,
		BucketNumber: &bucket,
	}
}

func (s *Shard) WithStats(columnID int64, stats ColumnStats) *Shard {
	if s.Stats == nil {
		s.Stats = map[int64]ColumnStats{}
	}
	s.Stats[columnID] = stats
	return s
}

func (s *Shard) copy() *Shard {
	cp := *s
	cp.Nodes = append([]string(nil), s.Nodes...)
	if s.BucketNumber != nil {
		b := *s.BucketNumber
		cp.BucketNumber = &b
	}
	if s.Stats != nil {
		cp.Stats = make(map[int64]ColumnStats, len(s.Stats))
		for k, v := range s.Stats {
			cp.Stats[k] = v
		}
	}
	return &cp
}
