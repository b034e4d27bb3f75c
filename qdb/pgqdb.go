package qdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/resultiter"
	"github.com/kwonwoo078/presto/pkg/statistics"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS tables (
	table_id     BIGINT PRIMARY KEY,
	bucket_count INT,
	columns      JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS shards (
	shard_uuid    UUID PRIMARY KEY,
	table_id      BIGINT NOT NULL REFERENCES tables (table_id),
	bucket_number INT,
	row_count     BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS shards_table_bucket_idx ON shards (table_id, bucket_number, shard_uuid);
CREATE TABLE IF NOT EXISTS shard_nodes (
	shard_uuid UUID NOT NULL REFERENCES shards (shard_uuid),
	node_id    TEXT NOT NULL,
	PRIMARY KEY (shard_uuid, node_id)
);
CREATE TABLE IF NOT EXISTS buckets (
	table_id      BIGINT NOT NULL REFERENCES tables (table_id),
	bucket_number INT NOT NULL,
	node_id       TEXT NOT NULL,
	PRIMARY KEY (table_id, bucket_number)
);
CREATE TABLE IF NOT EXISTS shard_column_stats (
	shard_uuid UUID NOT NULL REFERENCES shards (shard_uuid),
	column_id  BIGINT NOT NULL,
	min_num    DOUBLE PRECISION,
	max_num    DOUBLE PRECISION,
	min_str    TEXT,
	max_str    TEXT,
	has_nulls  BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (shard_uuid, column_id)
);
`

// pgPool is the part of pgxpool.Pool the store needs.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgQDB struct {
	pool  pgPool
	close func()
}

var _ QDB = &PgQDB{}

func NewPgQDB(ctx context.Context, dsn string) (*PgQDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, storeerror.Wrap(storeerror.STORE_INVALID_CONFIG, errors.Wrap(err, "pgqdb: parse dsn"))
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgqdb: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgqdb: ping")
	}

	storelog.Zero.Debug().
		Str("host", cfg.ConnConfig.Host).
		Msg("pgqdb: connected")

	q := &PgQDB{pool: pool, close: pool.Close}
	if err := q.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return q, nil
}

func (q *PgQDB) InitSchema(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, pgSchema); err != nil {
		return errors.Wrap(err, "pgqdb: init schema")
	}
	return nil
}

func (q *PgQDB) Close() error {
	if q.close != nil {
		q.close()
	}
	return nil
}

func (q *PgQDB) CreateTable(ctx context.Context, table *Table) error {
	storelog.Zero.Debug().
		Int64("table-id", table.ID).
		Msg("pgqdb: create table")
	t := time.Now()

	cols, err := json.Marshal(table.Columns)
	if err != nil {
		return err
	}
	_, err = q.pool.Exec(ctx, `
		INSERT INTO tables (table_id, bucket_count, columns) VALUES ($1, $2, $3)
		ON CONFLICT (table_id) DO UPDATE SET bucket_count = EXCLUDED.bucket_count, columns = EXCLUDED.columns`,
		table.ID, table.BucketCount, cols)
	if err != nil {
		return errors.Wrap(err, "pgqdb: create table")
	}

	statistics.RecordQDBOperation("CreateTable", time.Since(t))
	return nil
}

func (q *PgQDB) GetTable(ctx context.Context, id int64) (*Table, error) {
	storelog.Zero.Debug().
		Int64("table-id", id).
		Msg("pgqdb: get table")
	t := time.Now()

	var (
		bucketCount *int32
		cols        []byte
	)
	err := q.pool.QueryRow(ctx, `SELECT bucket_count, columns FROM tables WHERE table_id = $1`, id).Scan(&bucketCount, &cols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tableNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "pgqdb: get table")
	}

	table := &Table{ID: id, BucketCount: intPtr(bucketCount)}
	if err := json.Unmarshal(cols, &table.Columns); err != nil {
		return nil, err
	}

	statistics.RecordQDBOperation("GetTable", time.Since(t))
	return table, nil
}

func (q *PgQDB) AssignBuckets(ctx context.Context, tableID int64, nodes map[int]string) error {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Int("buckets", len(nodes)).
		Msg("pgqdb: assign buckets")
	t := time.Now()

	table, err := q.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	for b := range nodes {
		if err := validateBucket(table, b); err != nil {
			return err
		}
	}

	err = pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		for b, n := range nodes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO buckets (table_id, bucket_number, node_id) VALUES ($1, $2, $3)
				ON CONFLICT (table_id, bucket_number) DO UPDATE SET node_id = EXCLUDED.node_id`,
				tableID, b, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "pgqdb: assign buckets")
	}

	statistics.RecordQDBOperation("AssignBuckets", time.Since(t))
	return nil
}

func (q *PgQDB) AddShard(ctx context.Context, shard *Shard) error {
	storelog.Zero.Debug().
		Str("shard", shard.UUID.String()).
		Int64("table-id", shard.TableID).
		Msg("pgqdb: add shard")
	t := time.Now()

	table, err := q.GetTable(ctx, shard.TableID)
	if err != nil {
		return err
	}
	if err := validateShard(table, shard); err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO shards (shard_uuid, table_id, bucket_number, row_count) VALUES ($1, $2, $3, $4)`,
			shard.UUID.String(), shard.TableID, shard.BucketNumber, shard.RowCount); err != nil {
			return err
		}
		for _, n := range shard.Nodes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO shard_nodes (shard_uuid, node_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				shard.UUID.String(), n); err != nil {
				return err
			}
		}
		for col, st := range shard.Stats {
			minNum, minStr := splitStat(st.Min)
			maxNum, maxStr := splitStat(st.Max)
			if _, err := tx.Exec(ctx, `
				INSERT INTO shard_column_stats (shard_uuid, column_id, min_num, max_num, min_str, max_str, has_nulls)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				shard.UUID.String(), col, minNum, maxNum, minStr, maxStr, st.HasNulls); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "pgqdb: add shard")
	}

	statistics.RecordQDBOperation("AddShard", time.Since(t))
	return nil
}

func (q *PgQDB) GetShard(ctx context.Context, id uuid.UUID) (*Shard, error) {
	storelog.Zero.Debug().
		Str("shard", id.String()).
		Msg("pgqdb: get shard")
	t := time.Now()

	shard := &Shard{UUID: id}
	var bucket *int32
	err := q.pool.QueryRow(ctx, `
		SELECT s.table_id, s.bucket_number, s.row_count,
		       COALESCE(array_agg(n.node_id ORDER BY n.node_id) FILTER (WHERE n.node_id IS NOT NULL), '{}')
		FROM shards s LEFT JOIN shard_nodes n ON n.shard_uuid = s.shard_uuid
		WHERE s.shard_uuid = $1
		GROUP BY s.shard_uuid`, id.String()).Scan(&shard.TableID, &bucket, &shard.RowCount, &shard.Nodes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shardNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "pgqdb: get shard")
	}
	shard.BucketNumber = intPtr(bucket)

	rows, err := q.pool.Query(ctx, `
		SELECT column_id, min_num, max_num, min_str, max_str, has_nulls
		FROM shard_column_stats WHERE shard_uuid = $1`, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "pgqdb: get shard stats")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			col            int64
			minNum, maxNum *float64
			minStr, maxStr *string
			st             ColumnStats
		)
		if err := rows.Scan(&col, &minNum, &maxNum, &minStr, &maxStr, &st.HasNulls); err != nil {
			return nil, errors.Wrap(err, "pgqdb: scan shard stats")
		}
		st.Min = joinStat(minNum, minStr)
		st.Max = joinStat(maxNum, maxStr)
		shard.WithStats(col, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pgqdb: get shard stats")
	}

	statistics.RecordQDBOperation("GetShard", time.Since(t))
	return shard, nil
}

func (q *PgQDB) AssignShard(ctx context.Context, tableID int64, shardUUID uuid.UUID, nodeID string) error {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Str("shard", shardUUID.String()).
		Str("node", nodeID).
		Msg("pgqdb: assign shard")
	t := time.Now()

	shard := &Shard{UUID: shardUUID}
	var bucket *int32
	err := q.pool.QueryRow(ctx, `SELECT table_id, bucket_number FROM shards WHERE shard_uuid = $1`,
		shardUUID.String()).Scan(&shard.TableID, &bucket)
	if errors.Is(err, pgx.ErrNoRows) {
		return shardNotFound(shardUUID)
	}
	if err != nil {
		return errors.Wrap(err, "pgqdb: assign shard")
	}
	shard.BucketNumber = intPtr(bucket)
	if err := validateAssignment(shard, tableID); err != nil {
		return err
	}

	if _, err := q.pool.Exec(ctx, `
		INSERT INTO shard_nodes (shard_uuid, node_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		shardUUID.String(), nodeID); err != nil {
		return errors.Wrap(err, "pgqdb: assign shard")
	}

	statistics.RecordQDBOperation("AssignShard", time.Since(t))
	return nil
}

func (q *PgQDB) bucketNodes(ctx context.Context, tableID int64) (map[int]string, error) {
	rows, err := q.pool.Query(ctx, `SELECT bucket_number, node_id FROM buckets WHERE table_id = $1`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "pgqdb: list buckets")
	}
	defer rows.Close()

	ret := map[int]string{}
	for rows.Next() {
		var (
			b    int32
			node string
		)
		if err := rows.Scan(&b, &node); err != nil {
			return nil, errors.Wrap(err, "pgqdb: scan bucket")
		}
		ret[int(b)] = node
	}
	return ret, rows.Err()
}

func (q *PgQDB) ShardNodes(ctx context.Context, tableID int64, bucketed, merged bool, pred shards.Predicate) (ShardNodesIterator, error) {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Bool("bucketed", bucketed).
		Bool("merged", merged).
		Msg("pgqdb: stream shard nodes")

	if _, err := q.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	if pred.IsNone() {
		return resultiter.NewSlice[*shards.ShardNodes](nil), nil
	}

	var (
		bucketNodes map[int]string
		err         error
	)
	if bucketed {
		if bucketNodes, err = q.bucketNodes(ctx, tableID); err != nil {
			return nil, err
		}
	}

	sql, args := renderShardNodesQuery(tableID, pred)
	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeerror.Wrap(storeerror.STORE_METADATA_ERROR, errors.Wrap(err, "pgqdb: query shard nodes"))
	}

	return &pgShardCursor{
		rows:    rows,
		tableID: tableID,
		grouper: recordGrouper{
			bucketed:    bucketed,
			merged:      merged,
			bucketNodes: bucketNodes,
		},
	}, nil
}

// renderShardNodesQuery selects the shards of a table ordered by bucket and
// uuid. A shard is skipped only when its stored statistics for some
// constrained column prove that no row satisfies the column's domain.
func renderShardNodesQuery(tableID int64, pred shards.Predicate) (string, []any) {
	var sb strings.Builder
	args := []any{tableID}

	sb.WriteString(`SELECT s.shard_uuid::text, s.bucket_number, ` +
		`COALESCE(array_agg(n.node_id ORDER BY n.node_id) FILTER (WHERE n.node_id IS NOT NULL), '{}') ` +
		`FROM shards s LEFT JOIN shard_nodes n ON n.shard_uuid = s.shard_uuid ` +
		`WHERE s.table_id = $1`)

	domains := pred.Domains()
	cols := make([]shards.ColumnHandle, 0, len(domains))
	for c := range domains {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		return cols[i].ID < cols[j].ID
	})

	for _, c := range cols {
		overlap, ok := renderOverlap(domains[c], &args)
		if !ok {
			continue
		}
		args = append(args, c.ID)
		fmt.Fprintf(&sb, ` AND NOT EXISTS (SELECT 1 FROM shard_column_stats cs `+
			`WHERE cs.shard_uuid = s.shard_uuid AND cs.column_id = $%d AND NOT (%s))`, len(args), overlap)
	}

	sb.WriteString(` GROUP BY s.shard_uuid, s.bucket_number ORDER BY s.bucket_number NULLS FIRST, s.shard_uuid`)
	return sb.String(), args
}

// renderOverlap renders the condition under which a stats row may hold a
// value of d. ok is false when d cannot be checked against stored stats.
func renderOverlap(d predicate.Domain, args *[]any) (string, bool) {
	var parts []string
	if d.NullAllowed {
		parts = append(parts, "cs.has_nulls")
	}
	if d.OnlyNull {
		if len(parts) == 0 {
			return "FALSE", true
		}
		return parts[0], true
	}
	if d.IsEmpty() {
		return "FALSE", true
	}

	kind, ok := boundKind(d)
	if !ok {
		return "", false
	}
	minCol, maxCol := "cs.min_"+kind, "cs.max_"+kind

	conds := []string{}
	if d.High != nil {
		*args = append(*args, statValue(d.High.Value))
		op := "<"
		if d.High.Inclusive {
			op = "<="
		}
		conds = append(conds, fmt.Sprintf("%s %s $%d", minCol, op, len(*args)))
	}
	if d.Low != nil {
		*args = append(*args, statValue(d.Low.Value))
		op := ">"
		if d.Low.Inclusive {
			op = ">="
		}
		conds = append(conds, fmt.Sprintf("%s %s $%d", maxCol, op, len(*args)))
	}
	rng := "TRUE"
	if len(conds) > 0 {
		rng = fmt.Sprintf("(%s IS NULL OR %s IS NULL OR (%s))", minCol, maxCol, strings.Join(conds, " AND "))
	}
	parts = append(parts, rng)
	return strings.Join(parts, " OR "), true
}

// boundKind is "num" or "str" when every bound of d is of that kind.
func boundKind(d predicate.Domain) (string, bool) {
	kind := ""
	for _, b := range []*predicate.Bound{d.Low, d.High} {
		if b == nil {
			continue
		}
		k := ""
		switch {
		case predicate.IsNumeric(b.Value):
			k = "num"
		default:
			if _, ok := b.Value.(string); ok {
				k = "str"
			}
		}
		if k == "" || (kind != "" && kind != k) {
			return "", false
		}
		kind = k
	}
	if kind == "" {
		kind = "num"
	}
	return kind, true
}

func statValue(v any) any {
	if f, ok := predicate.AsFloat(v); ok {
		return f
	}
	return v
}

func splitStat(v any) (*float64, *string) {
	if f, ok := predicate.AsFloat(v); ok {
		return &f, nil
	}
	if s, ok := v.(string); ok {
		return nil, &s
	}
	return nil, nil
}

func joinStat(num *float64, str *string) any {
	switch {
	case num != nil:
		return *num
	case str != nil:
		return *str
	}
	return nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// pgShardCursor streams query rows. Rows hold a pooled connection until the
// cursor is drained or closed.
type pgShardCursor struct {
	rows    pgx.Rows
	tableID int64
	grouper recordGrouper
	drained bool
	closed  bool
}

var _ ShardNodesIterator = &pgShardCursor{}

func (c *pgShardCursor) HasNext() (bool, error) {
	for len(c.grouper.ready) == 0 {
		if c.closed {
			return false, nil
		}
		if c.drained {
			c.grouper.flush()
			return len(c.grouper.ready) != 0, nil
		}
		if err := c.step(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *pgShardCursor) step() error {
	if !c.rows.Next() {
		c.drained = true
		if err := c.rows.Err(); err != nil {
			return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, errors.Wrap(err, "pgqdb: read shard nodes"))
		}
		return nil
	}

	var (
		id     string
		bucket *int32
		nodes  []string
	)
	if err := c.rows.Scan(&id, &bucket, &nodes); err != nil {
		return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, errors.Wrap(err, "pgqdb: scan shard nodes"))
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, err)
	}
	return c.grouper.add(&Shard{
		UUID:         u,
		TableID:      c.tableID,
		BucketNumber: intPtr(bucket),
		Nodes:        nodes,
	})
}

func (c *pgShardCursor) Next() (*shards.ShardNodes, error) {
	ok, err := c.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, resultiter.ErrExhausted
	}
	rec, _ := c.grouper.pop()
	return rec, nil
}

func (c *pgShardCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.grouper.reset()
	c.rows.Close()
	return c.rows.Err()
}
