package qdb

import (
	"context"
	"net"
	"strings"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/kwonwoo078/presto/pkg/config"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

const (
	connectMaxRetries = 3
	connectRetryBase  = 200 * time.Millisecond
)

// NewQDB opens the metadata store selected by cfg.
func NewQDB(ctx context.Context, cfg *config.Connector) (QDB, error) {
	switch cfg.QdbType {
	case config.MemQDB:
		return RestoreQDB(cfg.MemQdbBackup)
	case config.EtcdQDB:
		tlsCfg, err := cfg.QdbTLS.Init(hostOf(cfg.QdbAddr[0]))
		if err != nil {
			return nil, storeerror.Wrap(storeerror.STORE_INVALID_CONFIG, err)
		}
		return NewEtcdQDB(cfg.QdbAddr, time.Duration(cfg.QdbDialTimeout), tlsCfg)
	case config.PostgresQDB:
		var q *PgQDB
		err := retry.Do(ctx, retry.WithMaxRetries(connectMaxRetries, retry.NewExponential(connectRetryBase)), func(ctx context.Context) error {
			dialCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.QdbDialTimeout))
			defer cancel()

			var err error
			q, err = NewPgQDB(dialCtx, cfg.PostgresDSN)
			if err != nil {
				if storeerror.HasCode(err, storeerror.STORE_INVALID_CONFIG) {
					return err
				}
				storelog.Zero.Warn().Err(err).Msg("pgqdb: connect failed, retrying")
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "qdb implementation %s is invalid", cfg.QdbType)
	}
}

func hostOf(addr string) string {
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
