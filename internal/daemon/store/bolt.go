package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketSamples = []byte("samples")
	bucketMeta    = []byte("meta")
)

var keySchema = []byte("schema")

const schemaVersion = "1"

// BoltHistory implements History using BoltDB. Keys are big-endian unix
// nanoseconds so cursor order is time order.
type BoltHistory struct {
	db     *bolt.DB
	limit  int
	closed bool
	mu     sync.RWMutex
}

// NewBoltHistory opens or creates the history database at path.
func NewBoltHistory(path string, limit int) (*BoltHistory, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSamples, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keySchema); v != nil && string(v) != schemaVersion {
			// Older layouts are not migrated; history is disposable.
			if err := tx.DeleteBucket(bucketSamples); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucketSamples); err != nil {
				return err
			}
		}
		return meta.Put(keySchema, []byte(schemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltHistory{db: db, limit: limit}, nil
}

func sampleKey(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return k
}

// Append stores s. Samples with the same timestamp replace each other.
func (h *BoltHistory) Append(ctx context.Context, s Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSamples)
		if err := b.Put(sampleKey(s.Time), data); err != nil {
			return err
		}

		excess := b.Stats().KeyN - h.limit
		if excess <= 0 {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// Last returns up to n most recent samples, oldest first.
func (h *BoltHistory) Last(ctx context.Context, n int) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}

	var out []Sample
	err := h.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSamples).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var s Sample
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("failed to decode sample: %w", err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (h *BoltHistory) Len(ctx context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}

	var n int
	err := h.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSamples).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (h *BoltHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}
