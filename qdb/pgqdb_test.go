package qdb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/shards"
)

var (
	pgColA = shards.NewColumnHandle("warehouse", "a", 1, "bigint")
	pgColB = shards.NewColumnHandle("warehouse", "b", 2, "varchar")
)

func TestRenderShardNodesQueryNoPredicate(t *testing.T) {
	sql, args := renderShardNodesQuery(7, predicate.All[shards.ColumnHandle]())

	assert.Equal(t, []any{int64(7)}, args)
	assert.NotContains(t, sql, "NOT EXISTS")
	assert.Contains(t, sql, "WHERE s.table_id = $1")
	assert.Contains(t, sql, "ORDER BY s.bucket_number NULLS FIRST, s.shard_uuid")
}

func TestRenderShardNodesQueryRanges(t *testing.T) {
	pred := predicate.WithColumnDomains(map[shards.ColumnHandle]predicate.Domain{
		pgColB: predicate.SingleValue("x"),
		pgColA: predicate.GreaterThan(10, false),
	})
	sql, args := renderShardNodesQuery(7, pred)

	// columns render in id order
	assert.Equal(t, []any{int64(7), float64(10), int64(1), "x", "x", int64(2)}, args)
	assert.Contains(t, sql, "NOT ((cs.min_num IS NULL OR cs.max_num IS NULL OR (cs.max_num > $2)))")
	assert.Contains(t, sql, "cs.column_id = $3")
	assert.Contains(t, sql, "(cs.min_str <= $4 AND cs.max_str >= $5)")
	assert.Contains(t, sql, "cs.column_id = $6")
}

func TestRenderOverlap(t *testing.T) {
	for _, tt := range []struct {
		name string
		d    predicate.Domain
		want string
		ok   bool
	}{
		{
			name: "only null",
			d:    predicate.OnlyNull(),
			want: "cs.has_nulls",
			ok:   true,
		},
		{
			name: "empty range",
			d:    predicate.Between(5, 1),
			want: "FALSE",
			ok:   true,
		},
		{
			name: "range or null",
			d:    predicate.Domain{High: &predicate.Bound{Value: 3, Inclusive: true}, NullAllowed: true},
			want: "cs.has_nulls OR (cs.min_num IS NULL OR cs.max_num IS NULL OR (cs.min_num <= $1))",
			ok:   true,
		},
		{
			name: "mixed bound kinds",
			d:    predicate.Between(1, "z"),
		},
		{
			name: "unsupported kind",
			d:    predicate.SingleValue(true),
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var args []any
			got, ok := renderOverlap(tt.d, &args)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRecordGrouperMergesContiguousBuckets(t *testing.T) {
	assert := assert.New(t)
	g := recordGrouper{
		bucketed:    true,
		merged:      true,
		bucketNodes: map[int]string{0: "n1"},
	}
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, g.add(NewBucketShard(a, 1, 0)))
	require.NoError(t, g.add(NewBucketShard(b, 1, 0)))
	require.NoError(t, g.add(NewBucketShard(c, 1, 2)))

	first, ok := g.pop()
	require.True(t, ok)
	assert.Equal([]uuid.UUID{a, b}, first.ShardUUIDs)
	assert.Equal([]string{"n1"}, first.NodeIdentifiers)

	_, ok = g.pop()
	assert.False(ok, "last group is pending until flush")

	g.flush()
	last, ok := g.pop()
	require.True(t, ok)
	assert.Equal([]uuid.UUID{c}, last.ShardUUIDs)
	assert.Empty(last.NodeIdentifiers)

	assert.Error(g.add(NewShard(uuid.New(), 1)))
}

// TestPgQDB runs against a live database named by QDB_POSTGRES_DSN.
func TestPgQDB(t *testing.T) {
	dsn := os.Getenv("QDB_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QDB_POSTGRES_DSN is not set")
	}
	assert := assert.New(t)
	ctx := context.Background()

	db, err := NewPgQDB(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tableID := int64(uuid.New().ID())
	require.NoError(t, db.CreateTable(ctx, NewTable(tableID, nil)))

	a, b := uuid.New(), uuid.New()
	require.NoError(t, db.AddShard(ctx, NewShard(a, tableID, "n1").WithStats(1, ColumnStats{Min: 0, Max: 10})))
	require.NoError(t, db.AddShard(ctx, NewShard(b, tableID)))
	require.NoError(t, db.AssignShard(ctx, tableID, b, "n2"))
	require.NoError(t, db.AssignShard(ctx, tableID, b, "n2"))

	it, err := db.ShardNodes(ctx, tableID, false, false, predicate.WithColumnDomains(map[shards.ColumnHandle]predicate.Domain{
		pgColA: predicate.GreaterThan(50, true),
	}))
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	rec, err := it.Next()
	require.NoError(t, err)
	assert.Equal([]uuid.UUID{b}, rec.ShardUUIDs)
	assert.Equal([]string{"n2"}, rec.NodeIdentifiers)

	ok, err = it.HasNext()
	require.NoError(t, err)
	assert.False(ok)
}
