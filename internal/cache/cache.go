// Package cache keeps the last successfully fetched body of every source so
// that a compilation can run without network access and so that a source
// whose fetch fails can fall back to its previous content.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/s2"
	"go.etcd.io/bbolt"
)

const (
	manifestBucket = "manifest"
	contentBucket  = "content"
)

// ErrNotFound is returned when no entry exists for a source.
var ErrNotFound = errors.New("cache entry not found")

// Entry describes one cached source body.
type Entry struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Hash      string    `json:"hash"`
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Stats summarises the cache contents.
type Stats struct {
	Sources int   `json:"sources"`
	Bytes   int64 `json:"bytes"`
}

// Store is a BoltDB-backed content cache. Bodies are stored s2-compressed.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores body as the current content of entry.Name, replacing any
// previous entry. Size is taken from body.
func (s *Store) Put(ctx context.Context, entry Entry, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.Name) == "" {
		return fmt.Errorf("cache entry name is required")
	}

	entry.Size = len(body)
	meta, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	compressed := s2.Encode(nil, body)

	return s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(entry.Name)
		if err := tx.Bucket([]byte(manifestBucket)).Put(key, meta); err != nil {
			return fmt.Errorf("put manifest %s: %w", entry.Name, err)
		}
		if err := tx.Bucket([]byte(contentBucket)).Put(key, compressed); err != nil {
			return fmt.Errorf("put content %s: %w", entry.Name, err)
		}
		return nil
	})
}

// Get returns the entry and body cached for name.
func (s *Store) Get(ctx context.Context, name string) (Entry, []byte, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, nil, err
	}

	var (
		entry Entry
		body  []byte
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(name)
		meta := tx.Bucket([]byte(manifestBucket)).Get(key)
		compressed := tx.Bucket([]byte(contentBucket)).Get(key)
		if meta == nil || compressed == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err := json.Unmarshal(meta, &entry); err != nil {
			return fmt.Errorf("unmarshal cache entry %s: %w", name, err)
		}
		decoded, err := s2.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("decode cached content %s: %w", name, err)
		}
		body = decoded
		return nil
	})
	if err != nil {
		return Entry{}, nil, err
	}
	return entry, body, nil
}

// Delete removes the entry for name. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(name)
		if err := tx.Bucket([]byte(manifestBucket)).Delete(key); err != nil {
			return err
		}
		return tx.Bucket([]byte(contentBucket)).Delete(key)
	})
}

// Missing returns the names that have no cached entry, in input order.
func (s *Store) Missing(ctx context.Context, names []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var missing []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(manifestBucket))
		for _, n := range names {
			if b.Get([]byte(n)) == nil {
				missing = append(missing, n)
			}
		}
		return nil
	})
	return missing, err
}

// Stats reports the number of cached sources and their uncompressed size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	var st Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(manifestBucket)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal cache entry: %w", err)
			}
			st.Sources++
			st.Bytes += int64(e.Size)
			return nil
		})
	})
	return st, err
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{manifestBucket, contentBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
