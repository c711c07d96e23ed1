// Package store persists single-device pick history in BoltDB.
package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// HistoryKey is the single key holding the local snapshot.
const HistoryKey = "random-movie-generator:local:v1"

// DBFile is the BoltDB file name inside the data directory
const DBFile = "pickflix.db"

var bucketLocal = []byte("local")

// snapshot is the persisted value: {"history":[...]}
type snapshot struct {
	History []json.RawMessage `json:"history"`
}

// LocalStore implements domain.HistoryStore on one BoltDB key.
type LocalStore struct {
	db     *bolt.DB
	logger *slog.Logger

	mu  sync.Mutex
	mem []byte // memory-only mode value
}

var _ domain.HistoryStore = (*LocalStore)(nil)

// NewLocalStore opens (or creates) the store under dir.
// An empty dir keeps history in memory only.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return &LocalStore{logger: logger}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLocal)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LocalStore{db: db, logger: logger}, nil
}

func (s *LocalStore) Mode() domain.StoreMode { return domain.ModeLocal }

func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FetchAll returns the stored history, most recent first.
// A missing or unreadable value reads as empty.
func (s *LocalStore) FetchAll(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.decode(s.mem), nil
	}

	var history []int
	err := s.db.View(func(tx *bolt.Tx) error {
		history = s.decode(tx.Bucket(bucketLocal).Get([]byte(HistoryKey)))
		return nil
	})
	if err != nil {
		return nil, domain.OtherError("failed to read local history: %w", err)
	}
	return history, nil
}

// Record prepends id and persists in one transaction.
func (s *LocalStore) Record(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	update := func(current []byte) ([]byte, error) {
		history := s.decode(current)
		for _, existing := range history {
			if existing == id {
				return nil, domain.ErrConflict
			}
		}
		return encode(append([]int{id}, history...))
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		data, err := update(s.mem)
		if err != nil {
			return err
		}
		s.mem = data
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		data, err := update(b.Get([]byte(HistoryKey)))
		if err != nil {
			return err
		}
		return b.Put([]byte(HistoryKey), data)
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			return err
		}
		return domain.OtherError("failed to save local history: %w", err)
	}
	return nil
}

// ClearAll writes an empty history.
func (s *LocalStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(nil)
	if err != nil {
		return err
	}

	if s.db == nil {
		s.mu.Lock()
		s.mem = data
		s.mu.Unlock()
		return nil
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocal).Put([]byte(HistoryKey), data)
	})
	if err != nil {
		return domain.OtherError("failed to clear local history: %w", err)
	}
	return nil
}

// decode parses a snapshot, dropping non-integer entries and duplicates.
func (s *LocalStore) decode(data []byte) []int {
	if len(data) == 0 {
		return []int{}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("ignoring unreadable local history", "error", err)
		return []int{}
	}

	history := make([]int, 0, len(snap.History))
	seen := make(map[int]bool, len(snap.History))
	for _, raw := range snap.History {
		id, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		history = append(history, id)
	}
	return history
}

func encode(history []int) ([]byte, error) {
	if history == nil {
		history = []int{}
	}
	data, err := json.Marshal(struct {
		History []int `json:"history"`
	}{history})
	if err != nil {
		return nil, domain.OtherError("failed to encode local history: %w", err)
	}
	return data, nil
}
