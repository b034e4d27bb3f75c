package qdb

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/resultiter"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

// MemQDB keeps metadata in process memory, optionally dumped to a json file
// after every mutation. Stored values are never mutated in place, so records
// handed out by ShardNodes stay stable.
type MemQDB struct {
	mu sync.RWMutex

	Tables  map[string]*Table         `json:"tables"`
	Shards  map[string]*Shard         `json:"shards"`
	Buckets map[string]map[int]string `json:"buckets"`

	backupPath string
}

var _ QDB = &MemQDB{}

func NewMemQDB(backupPath string) *MemQDB {
	return &MemQDB{
		Tables:  map[string]*Table{},
		Shards:  map[string]*Shard{},
		Buckets: map[string]map[int]string{},

		backupPath: backupPath,
	}
}

func RestoreQDB(backupPath string) (*MemQDB, error) {
	qdb := NewMemQDB(backupPath)
	if backupPath == "" {
		return qdb, nil
	}
	data, err := os.ReadFile(backupPath)
	if os.IsNotExist(err) {
		storelog.Zero.Info().Str("path", backupPath).Msg("memqdb backup file not exists, starting empty")
		return qdb, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, qdb); err != nil {
		return nil, err
	}
	return qdb, nil
}

func (q *MemQDB) DumpState() error {
	if q.backupPath == "" {
		return nil
	}
	tmpPath := q.backupPath + ".tmp"

	state, err := json.MarshalIndent(q, "", "	")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, state, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, q.backupPath)
}

func tableKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ==============================================================================
//                                   TABLES
// ==============================================================================

func (q *MemQDB) CreateTable(_ context.Context, table *Table) error {
	storelog.Zero.Debug().Int64("table-id", table.ID).Msg("memqdb: create table")
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := *table
	return executeCommands(q.DumpState, newPutCommand(q.Tables, tableKey(table.ID), &cp))
}

func (q *MemQDB) GetTable(_ context.Context, id int64) (*Table, error) {
	storelog.Zero.Debug().Int64("table-id", id).Msg("memqdb: get table")
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, ok := q.Tables[tableKey(id)]
	if !ok {
		return nil, tableNotFound(id)
	}
	cp := *t
	return &cp, nil
}

func (q *MemQDB) AssignBuckets(_ context.Context, tableID int64, nodes map[int]string) error {
	storelog.Zero.Debug().Int64("table-id", tableID).Int("buckets", len(nodes)).Msg("memqdb: assign buckets")
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.Tables[tableKey(tableID)]
	if !ok {
		return tableNotFound(tableID)
	}
	assignment := map[int]string{}
	for b, n := range q.Buckets[tableKey(tableID)] {
		assignment[b] = n
	}
	for b, n := range nodes {
		if err := validateBucket(t, b); err != nil {
			return err
		}
		assignment[b] = n
	}
	return executeCommands(q.DumpState, newPutCommand(q.Buckets, tableKey(tableID), assignment))
}

// ==============================================================================
//                                   SHARDS
// ==============================================================================

func (q *MemQDB) AddShard(_ context.Context, shard *Shard) error {
	storelog.Zero.Debug().
		Str("shard", shard.UUID.String()).
		Int64("table-id", shard.TableID).
		Msg("memqdb: add shard")
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.Tables[tableKey(shard.TableID)]
	if !ok {
		return tableNotFound(shard.TableID)
	}
	if err := validateShard(t, shard); err != nil {
		return err
	}
	if _, ok := q.Shards[shard.UUID.String()]; ok {
		return storeerror.Newf(storeerror.STORE_METADATA_ERROR, "shard %s already exists", shard.UUID)
	}
	return executeCommands(q.DumpState, newPutCommand(q.Shards, shard.UUID.String(), shard.copy()))
}

func (q *MemQDB) GetShard(_ context.Context, id uuid.UUID) (*Shard, error) {
	storelog.Zero.Debug().Str("shard", id.String()).Msg("memqdb: get shard")
	q.mu.RLock()
	defer q.mu.RUnlock()

	s, ok := q.Shards[id.String()]
	if !ok {
		return nil, shardNotFound(id)
	}
	return s.copy(), nil
}

func (q *MemQDB) ShardNodes(_ context.Context, tableID int64, bucketed, merged bool, pred shards.Predicate) (ShardNodesIterator, error) {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Bool("bucketed", bucketed).
		Bool("merged", merged).
		Msg("memqdb: stream shard nodes")
	q.mu.RLock()
	defer q.mu.RUnlock()

	if _, ok := q.Tables[tableKey(tableID)]; !ok {
		return nil, tableNotFound(tableID)
	}

	matching := make([]*Shard, 0)
	for _, s := range q.Shards {
		if s.TableID == tableID && shardMatches(s, pred) {
			matching = append(matching, s)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].UUID.String() < matching[j].UUID.String()
	})

	records, err := buildShardNodes(matching, q.Buckets[tableKey(tableID)], bucketed, merged)
	if err != nil {
		return nil, err
	}
	return resultiter.NewSlice(records), nil
}

func (q *MemQDB) AssignShard(_ context.Context, tableID int64, shardUUID uuid.UUID, nodeID string) error {
	storelog.Zero.Debug().
		Int64("table-id", tableID).
		Str("shard", shardUUID.String()).
		Str("node", nodeID).
		Msg("memqdb: assign shard")
	q.mu.Lock()
	defer q.mu.Unlock()

	s, ok := q.Shards[shardUUID.String()]
	if !ok {
		return shardNotFound(shardUUID)
	}
	if err := validateAssignment(s, tableID); err != nil {
		return err
	}
	if slices.Contains(s.Nodes, nodeID) {
		return nil
	}
	updated := s.copy()
	updated.Nodes = append(updated.Nodes, nodeID)
	return executeCommands(q.DumpState, newPutCommand(q.Shards, shardUUID.String(), updated))
}

func (q *MemQDB) Close() error {
	return nil
}
