package splitmgr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kwonwoo078/presto/pkg/backup"
	mockbackup "github.com/kwonwoo078/presto/pkg/mock/backup"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/kwonwoo078/presto/qdb"
)

func seedTable(t *testing.T, db *qdb.MemQDB, tableID int64, nodes ...string) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, qdb.NewTable(tableID, nil)))
	ids := make([]uuid.UUID, 0, len(nodes))
	for _, n := range nodes {
		id := uuid.New()
		var placed []string
		if n != "" {
			placed = []string{n}
		}
		require.NoError(t, db.AddShard(ctx, qdb.NewShard(id, tableID, placed...)))
		ids = append(ids, id)
	}
	return ids
}

func TestSplitSourceThreeShards(t *testing.T) {
	assert := assert.New(t)
	db := qdb.NewMemQDB("")
	ids := seedTable(t, db, 1, "a", "b", "c")
	m := newTestManager(t, db, backup.None{}, []topology.Node{nodeA, nodeB, nodeC})

	src := openSource(t, m, plainLayout(1))
	defer src.Close()
	assert.Equal("warehouse", src.DataSourceName())
	assert.False(src.IsFinished())

	splits, err := nextBatch(t, src, 10)
	require.NoError(t, err)
	require.Len(t, splits, 3)

	got := map[uuid.UUID]topology.HostAddress{}
	for _, sp := range splits {
		s := sp.(*shards.Split)
		require.Len(t, s.ShardUUIDs, 1)
		require.Len(t, s.Addresses(), 1)
		got[s.ShardUUIDs[0]] = s.Addresses()[0]
	}
	assert.Len(got, 3)
	for _, id := range ids {
		assert.Contains(got, id)
	}

	splits, err = nextBatch(t, src, 10)
	require.NoError(t, err)
	assert.Empty(splits)
	assert.True(src.IsFinished())
}

func TestSplitSourceBatchSize(t *testing.T) {
	db := qdb.NewMemQDB("")
	seedTable(t, db, 1, "a", "b", "c", "a", "b")
	m := newTestManager(t, db, backup.None{}, []topology.Node{nodeA, nodeB, nodeC})

	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	var sizes []int
	for !src.IsFinished() {
		splits, err := nextBatch(t, src, 2)
		require.NoError(t, err)
		sizes = append(sizes, len(splits))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestSplitSourceNoHostForShard(t *testing.T) {
	db := qdb.NewMemQDB("")
	seedTable(t, db, 1, "gone")
	m := newTestManager(t, db, backup.None{}, []topology.Node{nodeA})

	src := openSource(t, m, plainLayout(1))
	_, err := nextBatch(t, src, 10)
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_NO_HOST_FOR_SHARD), "%v", err)

	// the failure does not close the source
	assert.True(t, src.IsFinished())
	b, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	_, err = b.Wait(context.Background())
	assert.NoError(t, err)

	assert.NotPanics(t, src.Close)
}

func TestSplitSourceNoHostForBucketedShard(t *testing.T) {
	for _, available := range []bool{false, true} {
		ctrl := gomock.NewController(t)
		svc := mockbackup.NewMockService(ctrl)
		svc.EXPECT().IsBackupAvailable().Return(available)

		db := qdb.NewMemQDB("")
		ctx := context.Background()
		require.NoError(t, db.CreateTable(ctx, qdb.NewTable(2, bucketCount(3))))
		for b := 0; b < 3; b++ {
			require.NoError(t, db.AddShard(ctx, qdb.NewBucketShard(uuid.New(), 2, b)))
		}
		require.NoError(t, db.AssignBuckets(ctx, 2, map[int]string{0: "a", 1: "b"}))

		m := newTestManager(t, db, svc, []topology.Node{nodeA, nodeB, nodeC})
		src := openSource(t, m, bucketedLayout(2, 3, false))

		_, err := nextBatch(t, src, 10)
		assert.True(t, storeerror.HasCode(err, storeerror.STORE_NO_HOST_FOR_BUCKETED_SHARD), "backup=%t: %v", available, err)
		src.Close()
	}
}

func TestSplitSourceMergedBuckets(t *testing.T) {
	assert := assert.New(t)
	db := qdb.NewMemQDB("")
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, qdb.NewTable(2, bucketCount(2))))
	for i := 0; i < 4; i++ {
		require.NoError(t, db.AddShard(ctx, qdb.NewBucketShard(uuid.New(), 2, i%2)))
	}
	require.NoError(t, db.AssignBuckets(ctx, 2, map[int]string{0: "a", 1: "b"}))
	m := newTestManager(t, db, backup.None{}, []topology.Node{nodeA, nodeB})

	src := openSource(t, m, bucketedLayout(2, 2, false))
	splits, err := nextBatch(t, src, 10)
	require.NoError(t, err)
	require.Len(t, splits, 2)
	for i, sp := range splits {
		s := sp.(*shards.Split)
		assert.Equal(i, *s.BucketNumber)
		assert.Len(s.ShardUUIDs, 2)
	}
	src.Close()

	// deletes read every shard separately
	src = openSource(t, m, bucketedLayout(2, 2, true))
	splits, err = nextBatch(t, src, 10)
	require.NoError(t, err)
	assert.Len(splits, 4)
	src.Close()
}

func TestSplitSourceRestoreFromBackup(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	svc := mockbackup.NewMockService(ctrl)
	svc.EXPECT().IsBackupAvailable().Return(true).Times(1)

	db := qdb.NewMemQDB("")
	ids := seedTable(t, db, 1, "gone")
	m := newTestManager(t, db, svc, []topology.Node{nodeA, nodeB}, WithNodeSelector(pickNode(1)))

	src := openSource(t, m, plainLayout(1))
	splits, err := nextBatch(t, src, 10)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal([]topology.HostAddress{nodeB.Address}, splits[0].Addresses())
	src.Close()

	s, err := db.GetShard(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal([]string{"gone", "b"}, s.Nodes)

	// the next scan finds the assignment
	src = openSource(t, m, plainLayout(1))
	splits, err = nextBatch(t, src, 10)
	require.NoError(t, err)
	assert.Equal([]topology.HostAddress{nodeB.Address}, splits[0].Addresses())
	src.Close()
}

func TestSplitSourceBatchInFlight(t *testing.T) {
	assert := assert.New(t)
	it := newTrackingIterator(
		shards.NewShardNodes(uuid.New(), []string{"a"}),
		shards.NewShardNodes(uuid.New(), []string{"a"}),
	).gated()
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	first, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	<-it.entered

	_, err = src.GetNextBatch(context.Background(), 10)
	assert.True(storeerror.HasCode(err, storeerror.STORE_BATCH_IN_FLIGHT), "%v", err)
	assert.Equal(int64(1), it.hasNextCalls.Load(), "rejected batch must not touch the stream")

	it.release()
	splits, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(splits, 2)

	// a resolved batch frees the slot
	second, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	splits, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(splits)
}

func TestSplitSourceCancelBatch(t *testing.T) {
	it := newTrackingIterator(
		shards.NewShardNodes(uuid.New(), []string{"a"}),
		shards.NewShardNodes(uuid.New(), []string{"a"}),
	).gated()
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	b, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	<-it.entered
	b.Cancel()
	it.release()

	_, err = b.Wait(context.Background())
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_BATCH_INTERRUPTED), "%v", err)

	// the rest of the stream is still available
	splits, err := nextBatch(t, src, 10)
	require.NoError(t, err)
	assert.Len(t, splits, 1)
}

func TestSplitSourceCallerContext(t *testing.T) {
	it := newTrackingIterator(shards.NewShardNodes(uuid.New(), []string{"a"})).gated()
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	b, err := src.GetNextBatch(ctx, 10)
	require.NoError(t, err)
	<-it.entered

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer waitCancel()
	_, err = b.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	it.release()
	_, err = b.Wait(context.Background())
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_BATCH_INTERRUPTED), "%v", err)
}

// stallingStore blocks AssignShard until its context ends.
type stallingStore struct {
	*qdb.MemQDB
	entered chan struct{}
}

func (s *stallingStore) AssignShard(ctx context.Context, _ int64, _ uuid.UUID, _ string) error {
	close(s.entered)
	<-ctx.Done()
	return fmt.Errorf("assign shard: %w", ctx.Err())
}

func TestSplitSourceCloseDuringRestore(t *testing.T) {
	db := qdb.NewMemQDB("")
	seedTable(t, db, 1, "gone")
	store := &stallingStore{MemQDB: db, entered: make(chan struct{})}
	m := newTestManager(t, store, backup.NewDirectory(t.TempDir()), []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))

	b, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	<-store.entered
	src.Close()

	_, err = b.Wait(context.Background())
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_BATCH_INTERRUPTED), "%v", err)
}

func TestSplitSourceStreamError(t *testing.T) {
	streamErr := errors.New("cursor broken")
	it := newTrackingIterator(shards.NewShardNodes(uuid.New(), []string{"a"}))
	it.failAt, it.err = 0, streamErr
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	assert.False(t, src.IsFinished())

	_, err := nextBatch(t, src, 10)
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_METADATA_ERROR), "%v", err)
	assert.ErrorIs(t, err, streamErr)
}

func TestSplitSourceIsFinished(t *testing.T) {
	it := newTrackingIterator(shards.NewShardNodes(uuid.New(), []string{"a"}))
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	assert.False(t, src.IsFinished())
	assert.False(t, src.IsFinished(), "finished check does not consume")

	splits, err := nextBatch(t, src, 1)
	require.NoError(t, err)
	assert.Len(t, splits, 1)
	assert.True(t, src.IsFinished())
}

func TestSplitSourceCloseBeforeBatch(t *testing.T) {
	it := newTrackingIterator(shards.NewShardNodes(uuid.New(), []string{"a"}))
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))

	assert.NotPanics(t, src.Close)
	assert.NotPanics(t, src.Close)

	assert.Eventually(t, func() bool {
		select {
		case <-it.closed:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), it.closeCalls.Load())

	_, err := src.GetNextBatch(context.Background(), 10)
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_SOURCE_CLOSED), "%v", err)
	assert.True(t, src.IsFinished())
}

func TestSplitSourceCloseInFlight(t *testing.T) {
	it := newTrackingIterator(
		shards.NewShardNodes(uuid.New(), []string{"a"}),
		shards.NewShardNodes(uuid.New(), []string{"a"}),
	).gated()
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))

	b, err := src.GetNextBatch(context.Background(), 10)
	require.NoError(t, err)
	<-it.entered

	done := make(chan struct{})
	go func() {
		src.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close blocked on the running batch")
	}

	it.release()
	_, err = b.Wait(context.Background())
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_BATCH_INTERRUPTED), "%v", err)
	<-it.closed
}

func TestSplitSourceInvalidBatchSize(t *testing.T) {
	it := newTrackingIterator()
	m := newTestManager(t, &streamStore{MemQDB: qdb.NewMemQDB(""), it: it}, backup.None{}, []topology.Node{nodeA})
	src := openSource(t, m, plainLayout(1))
	defer src.Close()

	_, err := src.GetNextBatch(context.Background(), 0)
	assert.True(t, storeerror.HasCode(err, storeerror.STORE_INTERNAL), "%v", err)
	assert.Equal(t, int64(0), it.hasNextCalls.Load())
}
