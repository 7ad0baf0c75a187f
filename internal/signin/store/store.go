package store

import "context"

// Keys of the three persisted state blobs.
const (
	KeyWorkers  = "workers"
	KeyVisits   = "visits"
	KeySettings = "settings"
)

// KVStore persists opaque blobs by key. Writes to a single key apply in call
// order. SaveAll writes every entry or none.
type KVStore interface {
	Load(ctx context.Context, key string) (value []byte, ok bool, err error)
	Save(ctx context.Context, key string, value []byte) error
	SaveAll(ctx context.Context, entries map[string][]byte) error
}

// HistoryStore is implemented by stores that keep superseded blob values.
type HistoryStore interface {
	PruneHistory(ctx context.Context, keep int) (int64, error)
}
