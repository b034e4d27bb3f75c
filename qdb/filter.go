package qdb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
)

// shardMatches is false only when column statistics prove that no row of
// the shard satisfies pred.
func shardMatches(shard *Shard, pred shards.Predicate) bool {
	if pred.IsNone() {
		return false
	}
	for col, d := range pred.Domains() {
		st, ok := shard.Stats[col.ID]
		if !ok {
			continue
		}
		if !d.Overlaps(st.Min, st.Max, st.HasNulls) {
			return false
		}
	}
	return true
}

func bucketNodeList(bucketNodes map[int]string, bucket int) []string {
	if n, ok := bucketNodes[bucket]; ok && n != "" {
		return []string{n}
	}
	return nil
}

// buildShardNodes turns matching shards into stream records.
func buildShardNodes(table []*Shard, bucketNodes map[int]string, bucketed, merged bool) ([]*shards.ShardNodes, error) {
	ret := make([]*shards.ShardNodes, 0, len(table))

	if !bucketed {
		for _, s := range table {
			ret = append(ret, shards.NewShardNodes(s.UUID, append([]string(nil), s.Nodes...)))
		}
		return ret, nil
	}

	for _, s := range table {
		if s.BucketNumber == nil {
			return nil, storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s of bucketed table %d has no bucket", s.UUID, s.TableID)
		}
	}

	if !merged {
		for _, s := range table {
			b := *s.BucketNumber
			ret = append(ret, shards.NewBucketShardNodes([]uuid.UUID{s.UUID}, b, bucketNodeList(bucketNodes, b)))
		}
		return ret, nil
	}

	groups := map[int][]uuid.UUID{}
	for _, s := range table {
		groups[*s.BucketNumber] = append(groups[*s.BucketNumber], s.UUID)
	}
	buckets := make([]int, 0, len(groups))
	for b := range groups {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	for _, b := range buckets {
		ids := groups[b]
		sort.Slice(ids, func(i, j int) bool {
			return ids[i].String() < ids[j].String()
		})
		ret = append(ret, shards.NewBucketShardNodes(ids, b, bucketNodeList(bucketNodes, b)))
	}
	return ret, nil
}

func validateShard(table *Table, shard *Shard) error {
	if shard.UUID == uuid.Nil {
		return storeerror.New(storeerror.STORE_METADATA_ERROR, "shard uuid is required")
	}
	if !table.IsBucketed() {
		if shard.BucketNumber != nil {
			return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "table %d is not bucketed", table.ID)
		}
		return nil
	}
	if shard.BucketNumber == nil {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s of bucketed table %d has no bucket", shard.UUID, table.ID)
	}
	if len(shard.Nodes) != 0 {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "bucketed shard %s is placed by its bucket", shard.UUID)
	}
	return validateBucket(table, *shard.BucketNumber)
}

func validateBucket(table *Table, bucket int) error {
	if !table.IsBucketed() {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "table %d is not bucketed", table.ID)
	}
	if bucket < 0 || bucket >= *table.BucketCount {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "bucket %d is out of range for table %d with %d buckets", bucket, table.ID, *table.BucketCount)
	}
	return nil
}

func validateAssignment(shard *Shard, tableID int64) error {
	if shard.TableID != tableID {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s belongs to table %d, not %d", shard.UUID, shard.TableID, tableID)
	}
	if shard.BucketNumber != nil {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "bucketed shard %s cannot be assigned to a node", shard.UUID)
	}
	return nil
}

func tableNotFound(id int64) error {
	return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "table %d not found", id)
}

func shardNotFound(id uuid.UUID) error {
	return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s not found", id)
}

// recordGrouper turns a shard sequence ordered by bucket and uuid into
// stream records incrementally, for cursors that page through a store.
type recordGrouper struct {
	bucketed    bool
	merged      bool
	bucketNodes map[int]string

	ready []*shards.ShardNodes
	group *shards.ShardNodes
}

func (g *recordGrouper) add(s *Shard) error {
	if !g.bucketed {
		g.ready = append(g.ready, shards.NewShardNodes(s.UUID, s.Nodes))
		return nil
	}
	if s.BucketNumber == nil {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s of bucketed table %d has no bucket", s.UUID, s.TableID)
	}
	b := *s.BucketNumber
	if !g.merged {
		g.ready = append(g.ready, shards.NewBucketShardNodes([]uuid.UUID{s.UUID}, b, bucketNodeList(g.bucketNodes, b)))
		return nil
	}
	if g.group != nil && *g.group.BucketNumber == b {
		g.group.ShardUUIDs = append(g.group.ShardUUIDs, s.UUID)
		return nil
	}
	g.flush()
	g.group = shards.NewBucketShardNodes([]uuid.UUID{s.UUID}, b, bucketNodeList(g.bucketNodes, b))
	return nil
}

// flush releases a pending merged group. Call it once the input is drained.
func (g *recordGrouper) flush() {
	if g.group != nil {
		g.ready = append(g.ready, g.group)
		g.group = nil
	}
}

func (g *recordGrouper) pop() (*shards.ShardNodes, bool) {
	if len(g.ready) == 0 {
		return nil, false
	}
	rec := g.ready[0]
	g.ready = g.ready[1:]
	return rec, true
}

func (g *recordGrouper) reset() {
	g.ready = nil
	g.group = nil
}
