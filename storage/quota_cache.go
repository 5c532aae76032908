package storage

import (
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var quotaBucket = []byte("quota_usage")

// QuotaCache is a local bbolt-file cache of token usage per model and
// day, consulted by router adapters between durable writes to the
// Repository. It is not the system of record — daily tokens live
// durably in the Repository's quota_usage table; this cache exists
// only so IsAvailable doesn't need a SQLite round trip on every chunk.
// Its counts are kept in the file at its path and survive restarts;
// each adapter's cooldown is in-process and starts fresh.
type QuotaCache struct {
	db *bolt.DB
}

// NewQuotaCache opens (or creates) a bbolt database at path and
// ensures its bucket exists.
func NewQuotaCache(path string) (QuotaCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return QuotaCache{}, fmt.Errorf("failed to open quota cache: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(quotaBucket)
		return err
	}); err != nil {
		return QuotaCache{}, fmt.Errorf("failed to create quota bucket: %w", err)
	}

	return QuotaCache{db: db}, nil
}

func quotaKey(model string, day time.Time) []byte {
	return []byte(model + "|" + day.UTC().Format("2006-01-02"))
}

// TokensUsed returns the cached token count for model on day, or 0 if
// nothing has been recorded for that model and day.
func (q QuotaCache) TokensUsed(model string, day time.Time) (int, error) {
	var used int

	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(quotaBucket)
		raw := b.Get(quotaKey(model, day))
		if raw == nil {
			return nil
		}
		v, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("corrupt quota cache entry for %s: %w", model, err)
		}
		used = v
		return nil
	})

	return used, err
}

// AddTokens increments the cached count for model on day by n and
// returns the new total.
func (q QuotaCache) AddTokens(model string, day time.Time, n int) (int, error) {
	var total int

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(quotaBucket)
		if b == nil {
			return fmt.Errorf("quota bucket not found")
		}

		key := quotaKey(model, day)
		current := 0
		if raw := b.Get(key); raw != nil {
			v, err := strconv.Atoi(string(raw))
			if err != nil {
				return fmt.Errorf("corrupt quota cache entry for %s: %w", model, err)
			}
			current = v
		}

		total = current + n
		return b.Put(key, []byte(strconv.Itoa(total)))
	})

	return total, err
}

// Close releases the underlying database handle.
func (q QuotaCache) Close() error {
	return q.db.Close()
}
