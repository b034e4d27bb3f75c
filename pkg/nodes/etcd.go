package nodes

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/pkg/errors"
	retry "github.com/sethvargo/go-retry"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

const (
	nodesNamespace     = "/nodes/"
	DefaultLeaseTTL    = 10
	registerMaxRetries = 7
)

func nodePath(id string) string {
	return path.Join(nodesNamespace, id)
}

// Etcd reads membership from keys kept alive by worker leases. A worker
// whose lease expires disappears from the listing.
type Etcd struct {
	cli *clientv3.Client
}

var _ Supplier = &Etcd{}

func NewEtcd(cli *clientv3.Client) *Etcd {
	return &Etcd{cli: cli}
}

func (e *Etcd) WorkerNodes(ctx context.Context) ([]topology.Node, error) {
	resp, err := e.cli.Get(ctx, nodesNamespace, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "list worker nodes")
	}

	ret := make([]topology.Node, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		node, err := decodeNode(kv.Value)
		if err != nil {
			storelog.Zero.Warn().
				Err(err).
				Str("key", string(kv.Key)).
				Msg("etcd nodes: skip malformed node record")
			continue
		}
		ret = append(ret, node)
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Identifier < ret[j].Identifier
	})

	storelog.Zero.Debug().
		Int("count", len(ret)).
		Msg("etcd nodes: list worker nodes")
	return ret, nil
}

func decodeNode(b []byte) (topology.Node, error) {
	var node topology.Node
	if err := json.Unmarshal(b, &node); err != nil {
		return topology.Node{}, err
	}
	if node.Identifier == "" {
		return topology.Node{}, errors.New("node record without identifier")
	}
	return node, nil
}

// Registration keeps a worker listed while its lease is alive.
type Registration struct {
	cli  *clientv3.Client
	node topology.Node
	ttl  int64
}

func NewRegistration(cli *clientv3.Client, node topology.Node, ttl int64) *Registration {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Registration{
		cli:  cli,
		node: node,
		ttl:  ttl,
	}
}

func (r *Registration) register(ctx context.Context) (clientv3.LeaseID, error) {
	value, err := json.Marshal(r.node)
	if err != nil {
		return 0, err
	}

	var lease clientv3.LeaseID
	err = retry.Do(ctx, retry.WithMaxRetries(registerMaxRetries, retry.NewFibonacci(200*time.Millisecond)), func(ctx context.Context) error {
		grant, err := r.cli.Grant(ctx, r.ttl)
		if err != nil {
			return retry.RetryableError(err)
		}
		if _, err := r.cli.Put(ctx, nodePath(r.node.Identifier), string(value), clientv3.WithLease(grant.ID)); err != nil {
			return retry.RetryableError(err)
		}
		lease = grant.ID
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "register node %s", r.node.Identifier)
	}

	storelog.Zero.Info().
		Str("node", r.node.Identifier).
		Str("address", r.node.Address.String()).
		Int64("lease", int64(lease)).
		Msg("etcd nodes: registered worker")
	return lease, nil
}

// Run registers the node and renews the registration whenever the lease
// is lost, until ctx is done. The lease is revoked on return.
func (r *Registration) Run(ctx context.Context) error {
	for {
		lease, err := r.register(ctx)
		if err != nil {
			return err
		}

		ch, err := r.cli.KeepAlive(ctx, lease)
		if err != nil {
			return errors.Wrap(err, "keep alive node lease")
		}
		for range ch {
		}

		if ctx.Err() != nil {
			revokeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, err := r.cli.Revoke(revokeCtx, lease)
			cancel()
			if err != nil {
				storelog.Zero.Debug().Err(err).Msg("etcd nodes: failed to revoke lease")
			}
			return nil
		}

		storelog.Zero.Warn().
			Str("node", r.node.Identifier).
			Msg("etcd nodes: lease lost, registering again")
	}
}
