package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	dbpkg "github.com/BikerAndy/site-signin/internal/db"
)

// KVStore keeps state blobs in the kv_blobs table. Writes go through the
// single writer, so writes to one key commit in call order. The previous
// value of an overwritten key is copied to kv_history.
type KVStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewKVStore(db *sql.DB, writer *dbpkg.Worker) *KVStore {
	return &KVStore{db: db, writer: writer}
}

func (s *KVStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM kv_blobs WHERE key = ?;
`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Load %s: %w", key, err)
	}
	return v, true, nil
}

func (s *KVStore) Save(ctx context.Context, key string, value []byte) error {
	nowMs := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return put(ctx, tx, key, value, nowMs)
	})
}

// SaveAll writes all entries in one transaction.
func (s *KVStore) SaveAll(ctx context.Context, entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nowMs := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, k := range keys {
			if err := put(ctx, tx, k, entries[k], nowMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneHistory keeps the newest keep prior values per key and deletes the
// rest. Returns the number of rows deleted.
func (s *KVStore) PruneHistory(ctx context.Context, keep int) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM kv_history
WHERE id IN (
  SELECT h.id FROM kv_history h
  WHERE (
    SELECT COUNT(*) FROM kv_history n
    WHERE n.key = h.key AND n.revision > h.revision
  ) >= ?
);
`, keep)
		if err != nil {
			return fmt.Errorf("PruneHistory: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// put must be called inside a writer transaction.
func put(ctx context.Context, tx *sql.Tx, key string, value []byte, nowMs int64) error {
	if value == nil {
		value = []byte{}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kv_history(key, revision, value, replaced_at_ms)
SELECT key, revision, value, ? FROM kv_blobs WHERE key = ?;
`, nowMs, key); err != nil {
		return fmt.Errorf("put %s history: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kv_blobs(key, value, revision, updated_at_ms)
VALUES (?, ?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  revision = kv_blobs.revision + 1,
  updated_at_ms = excluded.updated_at_ms;
`, key, value, nowMs); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
