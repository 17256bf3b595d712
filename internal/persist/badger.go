// Package persist provides the durable tier behind the graph store's
// persistence boundary, backed by BadgerDB.
package persist

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	graph "github.com/hanpama/topograph/internal/graph"
)

// Config holds configuration for a badger-backed store.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is set.
	Path string
	// InMemory disables disk persistence; useful for tests.
	InMemory bool
	// SyncWrites makes commits durable before returning.
	SyncWrites bool
	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable, synchronous commits.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements graph.Persistence on BadgerDB. Mutations are staged in
// memory and applied in one write batch at Commit.
type Store struct {
	db *badger.DB

	mu      sync.Mutex
	setKeys map[string][]byte
	delKeys map[string]bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &Store{
		db:      db,
		setKeys: map[string][]byte{},
		delKeys: map[string]bool{},
	}, nil
}

// Close releases the underlying database. Staged, uncommitted mutations are
// discarded.
func (s *Store) Close() error { return s.db.Close() }

const (
	prefixNode = "n/"
	prefixEdge = "e/"
	prefixRoot = "r/"
)

func nodeKey(id uint64) string { return prefixNode + idSuffix(id) }
func edgeKey(id uint64) string { return prefixEdge + idSuffix(id) }

func idSuffix(id uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return string(buf[:])
}

// Load reads the full durable state.
func (s *Store) Load(ctx context.Context) (*graph.Snapshot, error) {
	snap := &graph.Snapshot{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			switch {
			case strings.HasPrefix(key, prefixNode):
				var rec graph.NodeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("node record %q: %w", key, err)
				}
				snap.Nodes = append(snap.Nodes, rec)
			case strings.HasPrefix(key, prefixEdge):
				var rec graph.EdgeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("edge record %q: %w", key, err)
				}
				snap.Edges = append(snap.Edges, rec)
			// The system principal is the empty string, so a root key can
			// be the bare prefix.
			case strings.HasPrefix(key, prefixRoot):
				var rec graph.RootRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("root record %q: %w", key, err)
				}
				snap.Roots = append(snap.Roots, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) stageSet(key string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setKeys[key] = data
	delete(s.delKeys, key)
	return nil
}

func (s *Store) stageDelete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delKeys[key] = true
	delete(s.setKeys, key)
}

func (s *Store) SaveNode(ctx context.Context, rec graph.NodeRecord) error {
	return s.stageSet(nodeKey(rec.ID), rec)
}

func (s *Store) SaveEdge(ctx context.Context, rec graph.EdgeRecord) error {
	return s.stageSet(edgeKey(rec.ID), rec)
}

func (s *Store) SaveRoot(ctx context.Context, rec graph.RootRecord) error {
	return s.stageSet(prefixRoot+rec.Principal, rec)
}

func (s *Store) DeleteNode(ctx context.Context, id uint64) error {
	s.stageDelete(nodeKey(id))
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, id uint64) error {
	s.stageDelete(edgeKey(id))
	return nil
}

// Commit applies every staged mutation in a single write batch; the stage is
// cleared only on success.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for key := range s.delKeys {
		if err := wb.Delete([]byte(key)); err != nil {
			return fmt.Errorf("commit: delete %q: %w", key, err)
		}
	}
	for key, val := range s.setKeys {
		if err := wb.Set([]byte(key), val); err != nil {
			return fmt.Errorf("commit: set %q: %w", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.setKeys = map[string][]byte{}
	s.delKeys = map[string]bool{}
	return nil
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
