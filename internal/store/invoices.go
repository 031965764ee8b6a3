package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// CreateInvoice saves a new invoice and links every entry its line items reference.
// An entry that is missing, deleted, or already on another invoice aborts the write.
func (b *BoltDB) CreateInvoice(inv *domain.Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucket))
		if invoices.Get([]byte(inv.ID)) != nil {
			return &domain.ConflictError{Document: "invoice", ID: inv.ID, Message: "invoice already exists"}
		}

		entries := tx.Bucket([]byte(entryBucket))
		for _, id := range inv.EntryIDs() {
			var entry domain.TimeEntry
			ok, err := getJSON(entries, id, &entry)
			if err != nil {
				return err
			}
			if !ok || !entry.Active() {
				return &domain.ConflictError{Document: "time entry", ID: id, Message: "entry is no longer active"}
			}
			if entry.Invoiced() {
				return &domain.ConflictError{
					Document: "time entry",
					ID:       id,
					Message:  fmt.Sprintf("entry is already billed on invoice %s", entry.InvoiceID),
				}
			}
			entry.InvoiceID = inv.ID
			if err := putJSON(entries, id, &entry); err != nil {
				return fmt.Errorf("linking entry %s: %w", id, err)
			}
		}

		inv.Version = 1
		return putJSON(invoices, inv.ID, inv)
	})
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket([]byte(invoiceBucket)), id, &inv)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("invoice", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoices returns the invoices of a client, or of every client when clientID is empty,
// newest period first
func (b *BoltDB) ListInvoices(clientID string) ([]*domain.Invoice, error) {
	invoices := make([]*domain.Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(invoiceBucket)).ForEach(func(k, v []byte) error {
			var inv domain.Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			if clientID != "" && inv.ClientID != clientID {
				return nil
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].Period.From.Equal(invoices[j].Period.From) {
			return invoices[i].Period.From.After(invoices[j].Period.From)
		}
		return invoices[i].Number > invoices[j].Number
	})
	return invoices, nil
}

// UpdateInvoice writes inv if the stored version still equals expectedVersion
func (b *BoltDB) UpdateInvoice(inv *domain.Invoice, expectedVersion int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := checkInvoiceVersion(tx, inv.ID, expectedVersion); err != nil {
			return err
		}
		return saveInvoice(tx, inv, expectedVersion)
	})
}

// CancelInvoice writes the cancelled invoice and releases the entries linked to it
func (b *BoltDB) CancelInvoice(inv *domain.Invoice, expectedVersion int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := checkInvoiceVersion(tx, inv.ID, expectedVersion); err != nil {
			return err
		}

		entries := tx.Bucket([]byte(entryBucket))
		for _, id := range inv.EntryIDs() {
			var entry domain.TimeEntry
			ok, err := getJSON(entries, id, &entry)
			if err != nil {
				return err
			}
			if !ok || entry.InvoiceID != inv.ID {
				continue
			}
			entry.InvoiceID = ""
			if err := putJSON(entries, id, &entry); err != nil {
				return fmt.Errorf("releasing entry %s: %w", id, err)
			}
		}
		return saveInvoice(tx, inv, expectedVersion)
	})
}

func checkInvoiceVersion(tx *bbolt.Tx, id string, expectedVersion int64) error {
	var current domain.Invoice
	ok, err := getJSON(tx.Bucket([]byte(invoiceBucket)), id, &current)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("invoice", id)
	}
	if current.Version != expectedVersion {
		return stale("invoice", id)
	}
	return nil
}

func saveInvoice(tx *bbolt.Tx, inv *domain.Invoice, expectedVersion int64) error {
	inv.Version = expectedVersion + 1
	if err := putJSON(tx.Bucket([]byte(invoiceBucket)), inv.ID, inv); err != nil {
		inv.Version = expectedVersion
		return err
	}
	return nil
}
