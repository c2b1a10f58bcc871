// Package bolt provides a bbolt-backed ingest journal.
//
// Each collection gets its own bucket; records are JSON values keyed by
// paper id. The journal is diagnostic: losing it loses history, never data.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// journalFile is the database file name inside the data directory.
const journalFile = "journal.db"

// openTimeout bounds waiting for another process's file lock.
const openTimeout = 2 * time.Second

// Ensure Journal implements the interface.
var _ driven.IngestJournal = (*Journal)(nil)

// Journal is an IngestJournal stored in a bbolt database.
type Journal struct {
	db *bbolt.DB
}

// NewJournal opens or creates the journal in dataDir.
func NewJournal(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, journalFile), 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record stores the record, replacing any previous one.
func (j *Journal) Record(_ context.Context, rec domain.IngestRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling ingest record: %w", err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(rec.CollectionID))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", rec.CollectionID, err)
		}
		return b.Put([]byte(rec.PaperID), data)
	})
}

// Get returns the record for one paper.
func (j *Journal) Get(_ context.Context, collectionID, paperID string) (*domain.IngestRecord, error) {
	var rec domain.IngestRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collectionID))
		if b == nil {
			return domain.ErrNotFound
		}
		data := b.Get([]byte(paperID))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records of a collection ordered by paper id.
func (j *Journal) List(_ context.Context, collectionID string) ([]domain.IngestRecord, error) {
	var records []domain.IngestRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collectionID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec domain.IngestRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// Delete removes the record for one paper.
func (j *Journal) Delete(_ context.Context, collectionID, paperID string) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collectionID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(paperID))
	})
}

// DeleteCollection removes every record of a collection.
func (j *Journal) DeleteCollection(_ context.Context, collectionID string) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(collectionID))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
