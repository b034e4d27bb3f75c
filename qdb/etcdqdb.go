package qdb

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	retry "github.com/sethvargo/go-retry"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/resultiter"
	"github.com/kwonwoo078/presto/pkg/statistics"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

const (
	tablesNamespace     = "/tables/"
	shardsNamespace     = "/shards/"
	shardIndexNamespace = "/shard_index/"
	bucketsNamespace    = "/buckets/"

	unbucketedSegment   = "-"
	defaultPageSize     = 500
	assignMaxRetries    = 5
	assignRetryInterval = 50 * time.Millisecond
)

func tableNodePath(id int64) string {
	return path.Join(tablesNamespace, strconv.FormatInt(id, 10))
}

func bucketSegment(bucket *int) string {
	if bucket == nil {
		return unbucketedSegment
	}
	return fmt.Sprintf("%08d", *bucket)
}

// tableShardsPrefix keeps shards of one bucket adjacent, ordered by bucket.
func tableShardsPrefix(tableID int64) string {
	return path.Join(shardsNamespace, strconv.FormatInt(tableID, 10)) + "/"
}

func shardNodePath(s *Shard) string {
	return tableShardsPrefix(s.TableID) + bucketSegment(s.BucketNumber) + "/" + s.UUID.String()
}

func shardIndexNodePath(id uuid.UUID) string {
	return path.Join(shardIndexNamespace, id.String())
}

func tableBucketsPrefix(tableID int64) string {
	return path.Join(bucketsNamespace, strconv.FormatInt(tableID, 10)) + "/"
}

func bucketNodePath(tableID int64, bucket int) string {
	return tableBucketsPrefix(tableID) + bucketSegment(&bucket)
}

type EtcdQDB struct {
	cli      *clientv3.Client
	pageSize int64
}

var _ QDB = &EtcdQDB{}

func NewEtcdQDB(addrs []string, dialTimeout time.Duration, tlsCfg *tls.Config) (*EtcdQDB, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   addrs,
		DialTimeout: dialTimeout,
		TLS:         tlsCfg,
	})
	if err != nil {
		return nil, err
	}

	storelog.Zero.Debug().
		Strs("address", addrs).
		Msg("etcdqdb: NewEtcdQDB")

	return NewEtcdQDBFromClient(cli), nil
}

func NewEtcdQDBFromClient(cli *clientv3.Client) *EtcdQDB {
	return &EtcdQDB{
		cli:      cli,
		pageSize: defaultPageSize,
	}
}

func (q *EtcdQDB) Client() *clientv3.Client {
	return q.cli
}

// SetPageSize bounds how many shard keys one cursor round trip fetches.
func (q *EtcdQDB) SetPageSize(n int64) {
	if n > 0 {
		q.pageSize = n
	}
}

func (q *EtcdQDB) Close() error {
	return q.cli.Close()
}

// ==============================================================================
//                                   TABLES
// ==============================================================================

func (q *EtcdQDB) CreateTable(ctx context.Context, table *Table) error {
	storelog.Zero.Debug().
		Int64("table-id", table.ID).
		Msg("etcdqdb: create table")
	t := time.Now()

	bytes, err := json.Marshal(table)
	if err != nil {
		return err
	}
	if _, err := q.cli.Put(ctx, tableNodePath(table.ID), string(bytes)); err != nil {
		return errors.Wrap(err, "etcdqdb: create table")
	}

	statistics.RecordQDBOperation("CreateTable", time.Since(t))
	return nil
}

func (q *EtcdQDB) GetTable(ctx context.Context, id int64) (*Table, error) {
	storelog.Zero.Debug().
		Int64("table-id", id).
		Msg("etcdqdb: get table")
	t := time.Now()

	table, err := q.getTable(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	statistics.RecordQDBOperation("GetTable", time.Since(t))
	return table, nil
}

func (q *EtcdQDB) getTable(ctx context.Context, id int64, rev int64) (*Table, error) {
	opts := []clientv3.OpOption{}
	if rev > 0 {
		opts = append(opts, clientv3.WithRev(rev))
	}
	resp, err := q.cli.Get(ctx, tableNodePath(id), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "etcdqdb: get table")
	}
	if len(resp.Kvs) == 0 {
		return nil, tableNotFound(id)
	}
	var table Table
	if err := json.Unmarshal(resp.Kvs[0].Value, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (q *EtcdQDB) AssignBuckets(ctx context.Context, tableID int64, nodes map[int]string) error {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Int("buckets", len(nodes)).
		Msg("etcdqdb: assign buckets")
	t := time.Now()

	table, err := q.getTable(ctx, tableID, 0)
	if err != nil {
		return err
	}

	ops := make([]clientv3.Op, 0, len(nodes))
	for b, n := range nodes {
		if err := validateBucket(table, b); err != nil {
			return err
		}
		ops = append(ops, clientv3.OpPut(bucketNodePath(tableID, b), n))
	}
	if _, err := q.cli.Txn(ctx).Then(ops...).Commit(); err != nil {
		return errors.Wrap(err, "etcdqdb: assign buckets")
	}

	statistics.RecordQDBOperation("AssignBuckets", time.Since(t))
	return nil
}

func (q *EtcdQDB) bucketNodes(ctx context.Context, tableID int64, rev int64) (map[int]string, error) {
	opts := []clientv3.OpOption{clientv3.WithPrefix()}
	if rev > 0 {
		opts = append(opts, clientv3.WithRev(rev))
	}
	resp, err := q.cli.Get(ctx, tableBucketsPrefix(tableID), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "etcdqdb: list buckets")
	}
	ret := make(map[int]string, len(resp.Kvs))
	prefix := tableBucketsPrefix(tableID)
	for _, kv := range resp.Kvs {
		b, err := strconv.Atoi(string(kv.Key)[len(prefix):])
		if err != nil {
			return nil, storeerror.Newf(storeerror.STORE_METADATA_ERROR, "malformed bucket key %q", kv.Key)
		}
		ret[b] = string(kv.Value)
	}
	return ret, nil
}

// ==============================================================================
//                                   SHARDS
// ==============================================================================

func (q *EtcdQDB) AddShard(ctx context.Context, shard *Shard) error {
	storelog.Zero.Debug().
		Str("shard", shard.UUID.String()).
		Int64("table-id", shard.TableID).
		Msg("etcdqdb: add shard")
	t := time.Now()

	table, err := q.getTable(ctx, shard.TableID, 0)
	if err != nil {
		return err
	}
	if err := validateShard(table, shard); err != nil {
		return err
	}

	bytes, err := json.Marshal(shard)
	if err != nil {
		return err
	}
	key := shardNodePath(shard)
	idx := shardIndexNodePath(shard.UUID)

	resp, err := q.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(idx), "=", 0)).
		Then(clientv3.OpPut(key, string(bytes)), clientv3.OpPut(idx, key)).
		Commit()
	if err != nil {
		return errors.Wrap(err, "etcdqdb: add shard")
	}
	if !resp.Succeeded {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s already exists", shard.UUID)
	}

	statistics.RecordQDBOperation("AddShard", time.Since(t))
	return nil
}

func (q *EtcdQDB) GetShard(ctx context.Context, id uuid.UUID) (*Shard, error) {
	storelog.Zero.Debug().
		Str("shard", id.String()).
		Msg("etcdqdb: get shard")
	t := time.Now()

	shard, _, _, err := q.fetchShard(ctx, id)
	if err != nil {
		return nil, err
	}

	statistics.RecordQDBOperation("GetShard", time.Since(t))
	return shard, nil
}

// fetchShard resolves the shard through its index key and returns the
// shard together with its key and mod revision.
func (q *EtcdQDB) fetchShard(ctx context.Context, id uuid.UUID) (*Shard, string, int64, error) {
	idx, err := q.cli.Get(ctx, shardIndexNodePath(id))
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "etcdqdb: get shard index")
	}
	if len(idx.Kvs) == 0 {
		return nil, "", 0, shardNotFound(id)
	}
	key := string(idx.Kvs[0].Value)

	resp, err := q.cli.Get(ctx, key)
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "etcdqdb: get shard")
	}
	if len(resp.Kvs) == 0 {
		return nil, "", 0, shardNotFound(id)
	}

	var shard Shard
	if err := json.Unmarshal(resp.Kvs[0].Value, &shard); err != nil {
		return nil, "", 0, err
	}
	return &shard, key, resp.Kvs[0].ModRevision, nil
}

var errAssignConflict = errors.New("concurrent shard update")

func (q *EtcdQDB) AssignShard(ctx context.Context, tableID int64, shardUUID uuid.UUID, nodeID string) error {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Str("shard", shardUUID.String()).
		Str("node", nodeID).
		Msg("etcdqdb: assign shard")
	t := time.Now()

	// Compare-and-swap on the shard key; a lost race is retried against the
	// fresh value, so concurrent assigners converge on the union of nodes.
	err := retry.Do(ctx, retry.WithMaxRetries(assignMaxRetries, retry.NewFibonacci(assignRetryInterval)), func(ctx context.Context) error {
		shard, key, modRev, err := q.fetchShard(ctx, shardUUID)
		if err != nil {
			return err
		}
		if err := validateAssignment(shard, tableID); err != nil {
			return err
		}
		if slices.Contains(shard.Nodes, nodeID) {
			return nil
		}
		shard.Nodes = append(shard.Nodes, nodeID)

		bytes, err := json.Marshal(shard)
		if err != nil {
			return err
		}
		resp, err := q.cli.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", modRev)).
			Then(clientv3.OpPut(key, string(bytes))).
			Commit()
		if err != nil {
			return errors.Wrap(err, "etcdqdb: assign shard")
		}
		if !resp.Succeeded {
			return retry.RetryableError(errAssignConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	statistics.RecordQDBOperation("AssignShard", time.Since(t))
	return nil
}

func (q *EtcdQDB) ShardNodes(ctx context.Context, tableID int64, bucketed, merged bool, pred shards.Predicate) (ShardNodesIterator, error) {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Bool("bucketed", bucketed).
		Bool("merged", merged).
		Msg("etcdqdb: stream shard nodes")

	// Every page of the cursor reads at the revision of the table lookup.
	resp, err := q.cli.Get(ctx, tableNodePath(tableID))
	if err != nil {
		return nil, errors.Wrap(err, "etcdqdb: get table")
	}
	if len(resp.Kvs) == 0 {
		return nil, tableNotFound(tableID)
	}
	rev := resp.Header.Revision

	var bucketNodes map[int]string
	if bucketed {
		bucketNodes, err = q.bucketNodes(ctx, tableID, rev)
		if err != nil {
			return nil, err
		}
	}

	prefix := tableShardsPrefix(tableID)
	return &etcdShardCursor{
		ctx:      ctx,
		kv:       q.cli,
		nextKey:  prefix,
		rangeEnd: clientv3.GetPrefixRangeEnd(prefix),
		rev:      rev,
		pageSize: q.pageSize,
		pred:     pred,
		grouper: recordGrouper{
			bucketed:    bucketed,
			merged:      merged,
			bucketNodes: bucketNodes,
		},
	}, nil
}

// etcdShardCursor pages through the shard keys of one table lazily. Keys
// sort by bucket and then uuid, so merged groups are contiguous.
type etcdShardCursor struct {
	ctx      context.Context
	kv       clientv3.KV
	nextKey  string
	rangeEnd string
	rev      int64
	pageSize int64
	pred     shards.Predicate

	grouper recordGrouper
	drained bool
	closed  bool
}

var _ ShardNodesIterator = &etcdShardCursor{}

func (c *etcdShardCursor) HasNext() (bool, error) {
	for len(c.grouper.ready) == 0 {
		if c.closed {
			return false, nil
		}
		if c.drained {
			c.grouper.flush()
			return len(c.grouper.ready) != 0, nil
		}
		if err := c.fetch(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *etcdShardCursor) Next() (*shards.ShardNodes, error) {
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

func (c *etcdShardCursor) Close() error {
	c.closed = true
	c.grouper.reset()
	return nil
}

func (c *etcdShardCursor) fetch() error {
	t := time.Now()
	resp, err := c.kv.Get(c.ctx, c.nextKey,
		clientv3.WithRange(c.rangeEnd),
		clientv3.WithRev(c.rev),
		clientv3.WithLimit(c.pageSize),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, errors.Wrap(err, "etcdqdb: fetch shard page"))
	}
	statistics.RecordQDBOperation("ShardNodesPage", time.Since(t))

	for _, kv := range resp.Kvs {
		var shard Shard
		if err := json.Unmarshal(kv.Value, &shard); err != nil {
			return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, err)
		}
		if !shardMatches(&shard, c.pred) {
			continue
		}
		if err := c.grouper.add(&shard); err != nil {
			return err
		}
	}

	if !resp.More || len(resp.Kvs) == 0 {
		c.drained = true
		return nil
	}
	c.nextKey = string(resp.Kvs[len(resp.Kvs)-1].Key) + "\x00"
	return nil
}
