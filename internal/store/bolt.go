package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

const (
	timesheetBucket      = "timesheets"
	timesheetIndexBucket = "timesheet_index"
	entryBucket          = "entries"
	timesheetEntryBucket = "timesheet_entries"
	rateBucket           = "rates"
	invoiceBucket        = "invoices"
)

var buckets = []string{
	timesheetBucket,
	timesheetIndexBucket,
	entryBucket,
	timesheetEntryBucket,
	rateBucket,
	invoiceBucket,
}

// BoltDB stores every engine document as JSON in a bbolt file. Each multi-document
// write runs in one Update transaction, so a failed step rolls back the whole command.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file and its buckets
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Close closes the database file
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func getJSON(bucket *bbolt.Bucket, key string, v any) (bool, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshaling %s: %w", key, err)
	}
	return true, nil
}

func putJSON(bucket *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return bucket.Put([]byte(key), data)
}

func notFound(document, id string) error {
	return &domain.NotFoundError{Document: document, ID: id}
}

func stale(document, id string) error {
	return &domain.ConflictError{Document: document, ID: id}
}
