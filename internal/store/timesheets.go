package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

func weekKey(userID string, weekStart time.Time) string {
	return userID + "\x00" + domain.Day(weekStart).Format(domain.DateLayout)
}

func entryIndexPrefix(timesheetID string) []byte {
	return []byte(timesheetID + "/")
}

// CreateTimesheet saves a new timesheet, refusing a second live one for the same user and week
func (b *BoltDB) CreateTimesheet(ts *domain.Timesheet) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(timesheetIndexBucket))
		key := weekKey(ts.UserID, ts.WeekStart)
		if existing := index.Get([]byte(key)); existing != nil {
			return &domain.ConflictError{
				Document: "timesheet",
				ID:       string(existing),
				Message:  "a timesheet already exists for this user and week",
			}
		}

		ts.Version = 1
		if err := putJSON(tx.Bucket([]byte(timesheetBucket)), ts.ID, ts); err != nil {
			return err
		}
		return index.Put([]byte(key), []byte(ts.ID))
	})
}

// GetTimesheet retrieves a live timesheet by ID
func (b *BoltDB) GetTimesheet(id string) (*domain.Timesheet, error) {
	var ts *domain.Timesheet
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		ts, err = loadTimesheet(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// FindTimesheet retrieves the live timesheet of a user for the week starting at weekStart
func (b *BoltDB) FindTimesheet(userID string, weekStart time.Time) (*domain.Timesheet, error) {
	var ts *domain.Timesheet
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(timesheetIndexBucket)).Get([]byte(weekKey(userID, weekStart)))
		if id == nil {
			return notFound("timesheet", userID+"@"+domain.Day(weekStart).Format(domain.DateLayout))
		}
		var err error
		ts, err = loadTimesheet(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// ListTimesheets returns live timesheets matching the filter, oldest week first
func (b *BoltDB) ListTimesheets(filter domain.TimesheetFilter) ([]*domain.Timesheet, error) {
	timesheets := make([]*domain.Timesheet, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(timesheetBucket)).ForEach(func(k, v []byte) error {
			var ts domain.Timesheet
			if err := json.Unmarshal(v, &ts); err != nil {
				return fmt.Errorf("unmarshaling timesheet %s: %w", k, err)
			}
			if ts.DeletedAt != nil || !filter.Match(&ts) {
				return nil
			}
			timesheets = append(timesheets, &ts)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(timesheets, func(i, j int) bool {
		if !timesheets[i].WeekStart.Equal(timesheets[j].WeekStart) {
			return timesheets[i].WeekStart.Before(timesheets[j].WeekStart)
		}
		return timesheets[i].UserID < timesheets[j].UserID
	})
	return timesheets, nil
}

// UpdateTimesheet writes ts if the stored version still equals expectedVersion.
// On success ts.Version is advanced.
func (b *BoltDB) UpdateTimesheet(ts *domain.Timesheet, expectedVersion int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := checkTimesheetVersion(tx, ts.ID, expectedVersion); err != nil {
			return err
		}
		if ts.DeletedAt != nil {
			index := tx.Bucket([]byte(timesheetIndexBucket))
			if err := index.Delete([]byte(weekKey(ts.UserID, ts.WeekStart))); err != nil {
				return fmt.Errorf("releasing week index: %w", err)
			}
		}
		return saveTimesheet(tx, ts, expectedVersion)
	})
}

// ReplaceEntries soft-deletes every active entry of the timesheet and inserts entries
// in their place, together with the updated timesheet. Nothing is written unless
// every step succeeds.
func (b *BoltDB) ReplaceEntries(ts *domain.Timesheet, expectedVersion int64, entries []domain.TimeEntry, at time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := checkTimesheetVersion(tx, ts.ID, expectedVersion); err != nil {
			return err
		}

		current, err := loadEntries(tx, ts.ID, false)
		if err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(entryBucket))
		for i := range current {
			current[i].DeletedAt = &at
			if err := putJSON(bucket, current[i].ID, &current[i]); err != nil {
				return fmt.Errorf("soft-deleting entry %s: %w", current[i].ID, err)
			}
		}

		if err := insertEntries(tx, ts.ID, entries); err != nil {
			return err
		}
		return saveTimesheet(tx, ts, expectedVersion)
	})
}

// AddEntry inserts one entry and the updated timesheet atomically
func (b *BoltDB) AddEntry(ts *domain.Timesheet, expectedVersion int64, entry domain.TimeEntry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := checkTimesheetVersion(tx, ts.ID, expectedVersion); err != nil {
			return err
		}
		if err := insertEntries(tx, ts.ID, []domain.TimeEntry{entry}); err != nil {
			return err
		}
		return saveTimesheet(tx, ts, expectedVersion)
	})
}

// ListEntries returns the entries of a timesheet in insertion order
func (b *BoltDB) ListEntries(timesheetID string, includeDeleted bool) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		entries, err = loadEntries(tx, timesheetID, includeDeleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEntry retrieves an entry by ID, deleted or not
func (b *BoltDB) GetEntry(id string) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket([]byte(entryBucket)), id, &entry)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("time entry", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func loadTimesheet(tx *bbolt.Tx, id string) (*domain.Timesheet, error) {
	var ts domain.Timesheet
	ok, err := getJSON(tx.Bucket([]byte(timesheetBucket)), id, &ts)
	if err != nil {
		return nil, err
	}
	if !ok || ts.DeletedAt != nil {
		return nil, notFound("timesheet", id)
	}
	return &ts, nil
}

func checkTimesheetVersion(tx *bbolt.Tx, id string, expectedVersion int64) error {
	current, err := loadTimesheet(tx, id)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return stale("timesheet", id)
	}
	return nil
}

func saveTimesheet(tx *bbolt.Tx, ts *domain.Timesheet, expectedVersion int64) error {
	ts.Version = expectedVersion + 1
	if err := putJSON(tx.Bucket([]byte(timesheetBucket)), ts.ID, ts); err != nil {
		ts.Version = expectedVersion
		return err
	}
	return nil
}

func loadEntries(tx *bbolt.Tx, timesheetID string, includeDeleted bool) ([]domain.TimeEntry, error) {
	entries := make([]domain.TimeEntry, 0)
	bucket := tx.Bucket([]byte(entryBucket))
	prefix := entryIndexPrefix(timesheetID)
	c := tx.Bucket([]byte(timesheetEntryBucket)).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		id := string(k[len(prefix):])
		var entry domain.TimeEntry
		ok, err := getJSON(bucket, id, &entry)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("timesheet %s indexes missing entry %s", timesheetID, id)
		}
		if !includeDeleted && !entry.Active() {
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

func insertEntries(tx *bbolt.Tx, timesheetID string, entries []domain.TimeEntry) error {
	bucket := tx.Bucket([]byte(entryBucket))
	index := tx.Bucket([]byte(timesheetEntryBucket))

	prefix := entryIndexPrefix(timesheetID)
	seq := 0
	c := index.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		seq++
	}

	for i := range entries {
		e := &entries[i]
		if bucket.Get([]byte(e.ID)) != nil {
			return fmt.Errorf("entry %s already exists", e.ID)
		}
		e.TimesheetID = timesheetID
		e.Seq = seq
		seq++
		if err := putJSON(bucket, e.ID, e); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
		if err := index.Put(append(entryIndexPrefix(timesheetID), e.ID...), []byte{}); err != nil {
			return fmt.Errorf("indexing entry %s: %w", e.ID, err)
		}
	}
	return nil
}
