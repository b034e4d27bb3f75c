package splitmgr

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/kwonwoo078/presto/pkg/executor"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/kwonwoo078/presto/pkg/resultiter"
	"github.com/kwonwoo078/presto/pkg/spi"
	"github.com/kwonwoo078/presto/pkg/statistics"
	"github.com/kwonwoo078/presto/pkg/storelog"
	"github.com/kwonwoo078/presto/qdb"
)

// SplitSource produces the splits of one table scan in batches. At most one
// batch is outstanding at a time. Errors fail the batch but leave the
// source open; only Close is terminal.
type SplitSource struct {
	target   scanTarget
	bucketed bool
	snapshot *topology.NodeSnapshot
	policy   *assignPolicy
	exec     *executor.Executor

	stream      *resultiter.Synchronized[*shards.ShardNodes]
	closeCtx    context.CancelFunc
	outstanding *atomic.Bool

	mu     sync.Mutex
	batch  *executor.Task[[]spi.Split]
	closed bool
}

var _ spi.SplitSource = &SplitSource{}

type sourceParams struct {
	target   scanTarget
	bucketed bool
	merged   bool
	live     []topology.Node
	store    qdb.QDB
	policy   *assignPolicy
	exec     *executor.Executor
}

// newSplitSource snapshots the live nodes and opens the shard stream. The
// stream is bound to the source lifetime, not to ctx.
func newSplitSource(ctx context.Context, p sourceParams) (*SplitSource, error) {
	snapshot, err := topology.NewNodeSnapshot(p.live)
	if err != nil {
		return nil, storeerror.Wrap(storeerror.STORE_INTERNAL, err)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	it, err := p.store.ShardNodes(streamCtx, p.target.tableID, p.bucketed, p.merged, p.target.predicate)
	if err != nil {
		cancel()
		return nil, metadataErr(err)
	}

	return &SplitSource{
		target:      p.target,
		bucketed:    p.bucketed,
		snapshot:    snapshot,
		policy:      p.policy,
		exec:        p.exec,
		stream:      resultiter.NewSynchronized(it),
		closeCtx:    cancel,
		outstanding: atomic.NewBool(false),
	}, nil
}

// DataSourceName is the connector id.
func (s *SplitSource) DataSourceName() string {
	return s.target.connectorID
}

// GetNextBatch starts producing up to maxSize splits and returns at once.
// The batch is interrupted when it is cancelled, when ctx is done, when the
// source is closed or when its manager is destroyed. A batch with fewer
// than maxSize splits, or none, does not mean the source is finished.
func (s *SplitSource) GetNextBatch(ctx context.Context, maxSize int) (spi.SplitBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.exec.IsShutdown() {
		return nil, storeerror.Newf(storeerror.STORE_SOURCE_CLOSED, "split source for table %d is closed", s.target.tableID)
	}
	if s.outstanding.Load() {
		return nil, storeerror.New(storeerror.STORE_BATCH_IN_FLIGHT, "previous batch not completed")
	}
	if maxSize <= 0 {
		return nil, storeerror.Newf(storeerror.STORE_INTERNAL, "batch size must be positive, got %d", maxSize)
	}

	storelog.Zero.Debug().
		Int64("table-id", s.target.tableID).
		Int("batch-size", maxSize).
		Msg("split source: next batch")

	s.outstanding.Store(true)
	task, err := executor.Submit(s.exec, func(taskCtx context.Context) ([]spi.Split, error) {
		defer s.outstanding.Store(false)
		return s.produce(taskCtx, ctx, maxSize)
	})
	if err != nil {
		s.outstanding.Store(false)
		return nil, err
	}
	s.batch = task
	return task, nil
}

func (s *SplitSource) produce(taskCtx, callerCtx context.Context, maxSize int) ([]spi.Split, error) {
	start := time.Now()
	splits, err := s.fill(taskCtx, callerCtx, maxSize)

	outcome := statistics.OutcomeOK
	if err != nil {
		outcome = storeerror.Code(err)
		storelog.Zero.Debug().
			Err(err).
			Int64("table-id", s.target.tableID).
			Msg("split source: batch failed")
	}
	statistics.RecordBatch(s.target.connectorID, outcome, time.Since(start))
	return splits, err
}

func (s *SplitSource) fill(taskCtx, callerCtx context.Context, maxSize int) ([]spi.Split, error) {
	splits := make([]spi.Split, 0, min(maxSize, 256))
	for len(splits) < maxSize {
		if taskCtx.Err() != nil || callerCtx.Err() != nil {
			return nil, storeerror.New(storeerror.STORE_BATCH_INTERRUPTED, "split batch interrupted")
		}

		ok, err := s.stream.HasNext()
		if err != nil {
			return nil, metadataErr(err)
		}
		if !ok {
			break
		}
		rec, err := s.stream.Next()
		if err != nil {
			if errors.Is(err, resultiter.ErrExhausted) {
				break
			}
			return nil, metadataErr(err)
		}

		split, err := s.policy.assign(taskCtx, &s.target, rec, s.snapshot)
		if err != nil {
			if taskCtx.Err() != nil {
				return nil, storeerror.New(storeerror.STORE_BATCH_INTERRUPTED, "split batch interrupted")
			}
			return nil, err
		}
		splits = append(splits, split)
		statistics.RecordSplit(s.target.connectorID, s.bucketed)
	}
	// a close racing the last read ends the stream early
	if taskCtx.Err() != nil {
		return nil, storeerror.New(storeerror.STORE_BATCH_INTERRUPTED, "split batch interrupted")
	}
	return splits, nil
}

func metadataErr(err error) error {
	var se *storeerror.StoreError
	if errors.As(err, &se) {
		return err
	}
	return storeerror.Wrap(storeerror.STORE_METADATA_ERROR, err)
}

// IsFinished reports whether the shard stream is exhausted at call time. It
// does not wait for an outstanding batch. A stream error reads as not
// finished so the next batch reports it.
func (s *SplitSource) IsFinished() bool {
	ok, err := s.stream.HasNext()
	if err != nil {
		storelog.Zero.Debug().
			Err(err).
			Int64("table-id", s.target.tableID).
			Msg("split source: stream error in finished check")
		return false
	}
	return !ok
}

// Close cancels the outstanding batch and releases the stream in the
// background. It does not wait for either. Close is idempotent.
func (s *SplitSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.batch != nil {
		s.batch.Cancel()
		s.batch = nil
	}

	storelog.Zero.Debug().
		Int64("table-id", s.target.tableID).
		Msg("split source: close")
	statistics.SplitSourceClosed(s.target.connectorID)

	if err := s.exec.Execute(func(context.Context) { s.closeStream() }); err != nil {
		s.closeStream()
	}
}

func (s *SplitSource) closeStream() {
	if err := s.stream.Close(); err != nil {
		storelog.Zero.Error().
			Err(err).
			Int64("table-id", s.target.tableID).
			Msg("error closing shard stream")
	}
	s.closeCtx()
}
