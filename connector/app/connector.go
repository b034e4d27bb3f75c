package app

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kwonwoo078/presto/connector/splitmgr"
	"github.com/kwonwoo078/presto/pkg/backup"
	"github.com/kwonwoo078/presto/pkg/config"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/nodes"
	"github.com/kwonwoo078/presto/pkg/storelog"
	"github.com/kwonwoo078/presto/qdb"
)

// Connector is the wired set of components of one shard storage connector.
type Connector struct {
	Store        qdb.QDB
	Nodes        nodes.Supplier
	Manager      *splitmgr.Manager
	Registration *nodes.Registration

	etcd      *clientv3.Client
	ownsEtcd  bool
	batchSize int
}

// NewConnector builds the connector described by cfg.
func NewConnector(ctx context.Context, cfg *config.Connector) (*Connector, error) {
	store, err := qdb.NewQDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Connector{Store: store, batchSize: cfg.DefaultBatchSize}

	if err := c.initNodes(cfg); err != nil {
		c.Close()
		return nil, err
	}

	c.Manager, err = splitmgr.NewManager(cfg.ConnectorID, c.Nodes, store, backup.FromConfig(cfg.BackupDirectory))
	if err != nil {
		c.Close()
		return nil, err
	}

	storelog.Zero.Info().
		Str("connector", cfg.ConnectorID).
		Str("qdb", string(cfg.QdbType)).
		Str("nodes", string(cfg.NodeSource)).
		Msg("connector initialized")
	return c, nil
}

func (c *Connector) initNodes(cfg *config.Connector) error {
	switch cfg.NodeSource {
	case config.StaticNodes:
		live, err := cfg.ParseStaticNodes()
		if err != nil {
			return err
		}
		c.Nodes = nodes.NewStatic(live)
		return nil
	case config.EtcdNodes:
	default:
		return storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "node source %s is invalid", cfg.NodeSource)
	}

	if e, ok := c.Store.(*qdb.EtcdQDB); ok {
		c.etcd = e.Client()
	} else {
		tlsCfg, err := cfg.QdbTLS.Init("")
		if err != nil {
			return storeerror.Wrap(storeerror.STORE_INVALID_CONFIG, err)
		}
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.QdbAddr,
			DialTimeout: time.Duration(cfg.QdbDialTimeout),
			TLS:         tlsCfg,
		})
		if err != nil {
			return err
		}
		c.etcd, c.ownsEtcd = cli, true
	}
	c.Nodes = nodes.NewEtcd(c.etcd)

	if cfg.Register != nil {
		node, err := cfg.RegisterNode()
		if err != nil {
			return err
		}
		c.Registration = nodes.NewRegistration(c.etcd, node, cfg.NodeLease)
	}
	return nil
}

// BatchSize is the configured split batch size.
func (c *Connector) BatchSize() int {
	return c.batchSize
}

// Close destroys the split manager and releases the stores.
func (c *Connector) Close() {
	if c.Manager != nil {
		c.Manager.Destroy()
	}
	if c.ownsEtcd {
		if err := c.etcd.Close(); err != nil {
			storelog.Zero.Error().Err(err).Msg("failed to close etcd client")
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			storelog.Zero.Error().Err(err).Msg("failed to close qdb")
		}
	}
}
