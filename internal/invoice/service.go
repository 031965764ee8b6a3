package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/config"
	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Store persists invoices and reads the frozen timesheets they bill
type Store interface {
	CreateInvoice(inv *domain.Invoice) error
	GetInvoice(id string) (*domain.Invoice, error)
	ListInvoices(clientID string) ([]*domain.Invoice, error)
	UpdateInvoice(inv *domain.Invoice, expectedVersion int64) error
	CancelInvoice(inv *domain.Invoice, expectedVersion int64) error
	ListTimesheets(filter domain.TimesheetFilter) ([]*domain.Timesheet, error)
	ListEntries(timesheetID string, includeDeleted bool) ([]domain.TimeEntry, error)
}

// Service generates invoices and runs their approval workflow
type Service struct {
	store       Store
	numbers     NumberGenerator
	rules       config.Rules
	idGenerator domain.IDGenerator
	timeSource  domain.TimeSource
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(store Store, numbers NumberGenerator, rules config.Rules) *Service {
	return NewServiceWithDeps(store, numbers, rules, domain.UUIDGenerator{}, domain.SystemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, numbers NumberGenerator, rules config.Rules, idGen domain.IDGenerator, timeSrc domain.TimeSource) *Service {
	return &Service{
		store:       store,
		numbers:     numbers,
		rules:       rules,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// billable is one priced entry waiting for an invoice
type billable struct {
	timesheetID string
	entry       domain.TimeEntry
	charge      domain.Charge
}

type groupKey struct {
	entryType          domain.EntryType
	project, task, txt string
}

func keyOf(e domain.TimeEntry) groupKey {
	if e.Type == domain.EntryProjectTask {
		return groupKey{entryType: e.Type, project: e.ProjectID, task: e.TaskID}
	}
	return groupKey{entryType: e.Type, txt: e.Description}
}

func describe(e domain.TimeEntry) string {
	switch {
	case e.Type == domain.EntryProjectTask:
		return fmt.Sprintf("Project %s, task %s", e.ProjectID, e.TaskID)
	case e.Description != "":
		return e.Description
	}
	return string(e.Type)
}

// Generate drafts an invoice for clientID covering the charges of frozen or billed
// timesheets dated inside period that are not yet on an invoice.
func (s *Service) Generate(ctx context.Context, actor domain.Actor, clientID string, period domain.Period) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, domain.Validationf("client_id", "is required")
	}
	period = domain.Period{From: domain.Day(period.From), To: domain.Day(period.To)}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	items, err := s.collect(clientID, period)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &domain.NoBillableDataError{ClientID: clientID, Period: period}
	}

	now := s.timeSource.Now()
	issue := domain.Day(now)
	inv := &domain.Invoice{
		ID:        s.idGenerator.Generate(),
		Number:    s.numbers.Next(),
		ClientID:  clientID,
		Period:    period,
		Status:    domain.InvoiceDraft,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, s.rules.PaymentTermsDays),
		LineItems: group(items),
		TaxRate:   s.rules.TaxRate,
		History: []domain.Transition{{
			To:     string(domain.InvoiceDraft),
			Action: "generate",
			Actor:  actor.ID,
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	inv.CalculateTotals()

	if err := s.store.CreateInvoice(inv); err != nil {
		return nil, err
	}
	slog.Info("Invoice generated",
		"id", inv.ID,
		"number", inv.Number,
		"client", clientID,
		"line_items", len(inv.LineItems),
		"total", inv.TotalAmount.StringFixed(2))
	return inv, nil
}

func (s *Service) collect(clientID string, period domain.Period) ([]billable, error) {
	timesheets, err := s.store.ListTimesheets(domain.TimesheetFilter{
		Statuses: []domain.TimesheetStatus{domain.StatusFrozen, domain.StatusBilled},
		Period:   &period,
	})
	if err != nil {
		return nil, fmt.Errorf("listing timesheets: %w", err)
	}

	var items []billable
	for _, ts := range timesheets {
		if len(ts.Charges) == 0 {
			continue
		}
		entries, err := s.store.ListEntries(ts.ID, false)
		if err != nil {
			return nil, fmt.Errorf("listing entries of %s: %w", ts.ID, err)
		}
		byID := make(map[string]domain.TimeEntry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}
		for _, c := range ts.Charges {
			e, ok := byID[c.EntryID]
			if !ok || e.Invoiced() || e.ClientID != clientID || !period.Contains(c.Date) {
				continue
			}
			items = append(items, billable{timesheetID: ts.ID, entry: e, charge: c})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.charge.Date.Equal(b.charge.Date) {
			return a.charge.Date.Before(b.charge.Date)
		}
		if a.timesheetID != b.timesheetID {
			return a.timesheetID < b.timesheetID
		}
		return a.entry.Seq < b.entry.Seq
	})
	return items, nil
}

// group folds date-ordered charges into line items, ordered by each item's first date
func group(items []billable) []domain.LineItem {
	var lines []domain.LineItem
	index := make(map[groupKey]int)
	for _, it := range items {
		key := keyOf(it.entry)
		i, ok := index[key]
		if !ok {
			i = len(lines)
			index[key] = i
			lines = append(lines, domain.LineItem{
				Description: describe(it.entry),
				EntryType:   it.entry.Type,
				ProjectID:   it.entry.ProjectID,
				TaskID:      it.entry.TaskID,
				Hours:       decimal.Zero,
				Total:       decimal.Zero,
			})
		}
		lines[i].EntryIDs = append(lines[i].EntryIDs, it.entry.ID)
		lines[i].Hours = lines[i].Hours.Add(it.charge.BilledHours)
		lines[i].Total = lines[i].Total.Add(it.charge.Amount)
	}
	return lines
}

// Get retrieves an invoice by ID
func (s *Service) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetInvoice(id)
}

// List returns the invoices of a client, or all invoices when clientID is empty
func (s *Service) List(ctx context.Context, clientID string) ([]*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListInvoices(clientID)
}

// Now reports the service clock, for deriving overdue status on read
func (s *Service) Now() time.Time {
	return s.timeSource.Now()
}

// SubmitForApproval sends a draft to the approvers
func (s *Service) SubmitForApproval(ctx context.Context, actor domain.Actor, id string) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, ActionSubmit, "")
}

// Decide approves or rejects an invoice pending approval. Rejection needs a reason and
// returns the invoice to draft.
func (s *Service) Decide(ctx context.Context, actor domain.Actor, id string, decision domain.Decision, reason string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	switch decision {
	case domain.DecisionApprove:
		return s.transition(ctx, actor, id, ActionApprove, reason)
	case domain.DecisionReject:
		return s.transition(ctx, actor, id, ActionReject, reason)
	}
	return nil, domain.Validationf("action", "unknown decision %q", decision)
}

// MarkSent records that an approved invoice went out to the client
func (s *Service) MarkSent(ctx context.Context, actor domain.Actor, id string) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, ActionSend, "")
}

// MarkPaid records payment of a sent invoice
func (s *Service) MarkPaid(ctx context.Context, actor domain.Actor, id string) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, ActionPay, "")
}

// Cancel voids an unpaid invoice and frees its entries for a new invoice
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, ActionCancel, strings.TrimSpace(reason))
}

func (s *Service) transition(ctx context.Context, actor domain.Actor, id string, action Action, reason string) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := s.store.GetInvoice(id)
	if err != nil {
		return nil, err
	}

	inv := current.Clone()
	if err := apply(inv, action, actor, s.timeSource.Now(), reason); err != nil {
		return nil, err
	}

	if action == ActionCancel {
		err = s.store.CancelInvoice(inv, current.Version)
	} else {
		err = s.store.UpdateInvoice(inv, current.Version)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Invoice updated", "id", id, "actor", actor.ID, "action", action, "status", inv.Status)
	return inv, nil
}
