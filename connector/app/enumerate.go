package app

import (
	"context"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/spi"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

// EnumerateSplits reads every split of the scan in batches of the
// configured size and hands each to fn.
func (c *Connector) EnumerateSplits(ctx context.Context, layout *shards.TableLayoutHandle, fn func(*shards.Split) error) error {
	src, err := c.Manager.GetSplits(ctx, nil, spi.Session{QueryID: "splitctl"}, layout)
	if err != nil {
		return err
	}
	defer src.Close()

	for !src.IsFinished() {
		batch, err := src.GetNextBatch(ctx, c.batchSize)
		if err != nil {
			return err
		}
		splits, err := batch.Wait(ctx)
		if err != nil {
			return err
		}
		storelog.Zero.Debug().
			Int("batch-size", len(splits)).
			Msg("enumerate splits: batch")

		for _, s := range splits {
			if err := fn(s.(*shards.Split)); err != nil {
				return err
			}
		}
	}
	return nil
}
