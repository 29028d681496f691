// Package runlog keeps a local history of deposit release runs in an
// embedded BoltDB file so operators can inspect what past runs did without
// querying the ledger.
//
// Two buckets are used:
//   - runs:          run id -> JSON encoded release.Report
//   - runs_by_start: big-endian start time (unix nanos) + run id -> run id
//
// Saving is idempotent: a report whose run id is already stored is left
// unchanged.
package runlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iliyamo/carshare-deposits/internal/release"
)

var (
	runsBucket    = []byte("runs")
	byStartBucket = []byte("runs_by_start")
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store is the BoltDB-backed run journal.  It implements release.Journal.
type Store struct {
	db *bolt.DB
}

var _ release.Journal = (*Store)(nil)

// Open opens (or creates) the journal file at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, byStartBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores r unless a run with the same id is already present.
func (s *Store) Save(_ context.Context, r *release.Report) error {
	if r == nil || r.RunID == "" {
		return errors.New("runlog: report without run id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		if runs.Get([]byte(r.RunID)) != nil {
			return nil
		}
		if err := runs.Put([]byte(r.RunID), data); err != nil {
			return err
		}
		return tx.Bucket(byStartBucket).Put(startKey(r.StartedAt, r.RunID), []byte(r.RunID))
	})
}

// Get returns a single run by id.
func (s *Store) Get(_ context.Context, id string) (*release.Report, error) {
	var r release.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns up to limit runs, newest first.  Per-booking results are
// stripped; use Get for the full report.
func (s *Store) List(_ context.Context, limit int) ([]release.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	out := make([]release.Report, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		c := tx.Bucket(byStartBucket).Cursor()
		for k, id := c.Last(); k != nil && len(out) < limit; k, id = c.Prev() {
			v := runs.Get(id)
			if v == nil {
				continue
			}
			var r release.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			r.Results = nil
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func startKey(t time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return append(k, id...)
}
