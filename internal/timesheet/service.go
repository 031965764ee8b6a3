package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Siva2k2k/es-tm/internal/config"
	"github.com/Siva2k2k/es-tm/internal/domain"
	"github.com/Siva2k2k/es-tm/internal/holiday"
)

// Store persists timesheets and their entries. Writes take the version the caller read
// and fail with a ConflictError when another writer got there first.
type Store interface {
	CreateTimesheet(ts *domain.Timesheet) error
	GetTimesheet(id string) (*domain.Timesheet, error)
	FindTimesheet(userID string, weekStart time.Time) (*domain.Timesheet, error)
	ListTimesheets(filter domain.TimesheetFilter) ([]*domain.Timesheet, error)
	UpdateTimesheet(ts *domain.Timesheet, expectedVersion int64) error
	ReplaceEntries(ts *domain.Timesheet, expectedVersion int64, entries []domain.TimeEntry, at time.Time) error
	AddEntry(ts *domain.Timesheet, expectedVersion int64, entry domain.TimeEntry) error
	ListEntries(timesheetID string, includeDeleted bool) ([]domain.TimeEntry, error)
}

// Pricer prices the entries of a timesheet being frozen
type Pricer interface {
	Price(ctx context.Context, ts *domain.Timesheet, entries []domain.TimeEntry) ([]domain.Charge, error)
}

// Service runs timesheet commands
type Service struct {
	store       Store
	validator   *Validator
	pricer      Pricer
	rules       config.Rules
	idGenerator domain.IDGenerator
	timeSource  domain.TimeSource
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(store Store, holidays holiday.Calendar, pricer Pricer, rules config.Rules) *Service {
	return NewServiceWithDeps(store, holidays, pricer, rules, domain.UUIDGenerator{}, domain.SystemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, holidays holiday.Calendar, pricer Pricer, rules config.Rules, idGen domain.IDGenerator, timeSrc domain.TimeSource) *Service {
	return &Service{
		store:       store,
		validator:   NewValidator(holidays),
		pricer:      pricer,
		rules:       rules,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WeekStart returns the first day of the configured week containing date
func (s *Service) WeekStart(date time.Time) time.Time {
	d := domain.Day(date)
	offset := (int(d.Weekday()) - int(s.rules.WeekStart) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// CreateTimesheet opens a draft timesheet for userID's week. weekStart must fall on the
// configured first day of the week.
func (s *Service) CreateTimesheet(ctx context.Context, actor domain.Actor, userID, role string, weekStart time.Time) (*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.Validationf("user_id", "is required")
	}
	start := domain.Day(weekStart)
	if start.Weekday() != s.rules.WeekStart {
		return nil, domain.Validationf("week_start_date", "%s is a %s, weeks start on %s",
			start.Format(domain.DateLayout), start.Weekday(), s.rules.WeekStart)
	}

	ts := s.newTimesheet(actor, userID, role, start)
	if err := s.store.CreateTimesheet(ts); err != nil {
		return nil, err
	}
	slog.Info("Timesheet created", "id", ts.ID, "user", userID, "week", start.Format(domain.DateLayout))
	return ts, nil
}

func (s *Service) newTimesheet(actor domain.Actor, userID, role string, start time.Time) *domain.Timesheet {
	now := s.timeSource.Now()
	return &domain.Timesheet{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		UserRole:  role,
		WeekStart: start,
		WeekEnd:   start.AddDate(0, 0, 6),
		Status:    domain.StatusDraft,
		History: []domain.Transition{{
			To:     string(domain.StatusDraft),
			Action: "create",
			Actor:  actor.ID,
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetTimesheet retrieves a timesheet by ID
func (s *Service) GetTimesheet(ctx context.Context, id string) (*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetTimesheet(id)
}

// ListTimesheets returns the timesheets matching filter
func (s *Service) ListTimesheets(ctx context.Context, filter domain.TimesheetFilter) ([]*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListTimesheets(filter)
}

// ListEntries returns the active entries of a timesheet
func (s *Service) ListEntries(ctx context.Context, id string) ([]domain.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTimesheet(id); err != nil {
		return nil, err
	}
	return s.store.ListEntries(id, false)
}

// DeleteTimesheet soft-deletes a draft timesheet and frees its week
func (s *Service) DeleteTimesheet(ctx context.Context, actor domain.Actor, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := s.store.GetTimesheet(id)
	if err != nil {
		return err
	}
	if current.Status != domain.StatusDraft {
		return &domain.InvalidStateError{Document: "timesheet", Current: string(current.Status), Attempted: "delete"}
	}

	ts := current.Clone()
	now := s.timeSource.Now()
	ts.DeletedAt = &now
	ts.UpdatedAt = now
	if err := s.store.UpdateTimesheet(ts, current.Version); err != nil {
		return err
	}
	slog.Info("Timesheet deleted", "id", id, "actor", actor.ID)
	return nil
}

// AddEntry validates and appends one entry to userID's timesheet for the entry's week,
// creating the timesheet on the first entry.
func (s *Service) AddEntry(ctx context.Context, actor domain.Actor, userID, role string, input domain.EntryInput) (*domain.Timesheet, *domain.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if input.Date.IsZero() {
		return nil, nil, domain.Validationf("date", "is required")
	}

	current, err := s.store.FindTimesheet(userID, s.WeekStart(input.Date))
	if errors.Is(err, domain.ErrNotFound) {
		current, err = s.CreateTimesheet(ctx, actor, userID, role, s.WeekStart(input.Date))
	}
	if err != nil {
		return nil, nil, err
	}
	if !current.Status.Editable() {
		return nil, nil, &domain.InvalidStateError{Document: "timesheet", Current: string(current.Status), Attempted: "add entry"}
	}

	existing, err := s.store.ListEntries(current.ID, false)
	if err != nil {
		return nil, nil, fmt.Errorf("listing entries: %w", err)
	}
	accepted, err := s.validator.Validate(ctx, current, existing, []domain.EntryInput{input})
	if err != nil {
		return nil, nil, err
	}

	now := s.timeSource.Now()
	entry := accepted[0]
	entry.ID = s.idGenerator.Generate()
	entry.CreatedAt = now

	ts := current.Clone()
	ts.TotalHours = domain.ActiveHours(existing) + entry.Hours
	ts.UpdatedAt = now
	if err := s.store.AddEntry(ts, current.Version, entry); err != nil {
		return nil, nil, err
	}
	entry.TimesheetID = ts.ID
	return ts, &entry, nil
}

// ReplaceEntries swaps the whole active entry set of an editable timesheet for inputs.
// The old entries are soft-deleted in the same write, so a failure leaves them active.
func (s *Service) ReplaceEntries(ctx context.Context, actor domain.Actor, id string, inputs []domain.EntryInput) (*domain.Timesheet, []domain.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	current, err := s.store.GetTimesheet(id)
	if err != nil {
		return nil, nil, err
	}
	if !current.Status.Editable() {
		return nil, nil, &domain.InvalidStateError{Document: "timesheet", Current: string(current.Status), Attempted: "replace entries"}
	}

	accepted, err := s.validator.Validate(ctx, current, nil, inputs)
	if err != nil {
		return nil, nil, err
	}

	now := s.timeSource.Now()
	for i := range accepted {
		accepted[i].ID = s.idGenerator.Generate()
		accepted[i].CreatedAt = now
	}

	ts := current.Clone()
	ts.TotalHours = domain.ActiveHours(accepted)
	ts.UpdatedAt = now
	if err := s.store.ReplaceEntries(ts, current.Version, accepted, now); err != nil {
		return nil, nil, err
	}
	slog.Info("Timesheet entries replaced", "id", id, "actor", actor.ID, "entries", len(accepted), "total_hours", ts.TotalHours)
	return ts, accepted, nil
}

// Submit sends a timesheet for review. With lead approval enabled, timesheets holding
// anything other than miscellaneous entries go to the lead first.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, id string) (*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := s.store.GetTimesheet(id)
	if err != nil {
		return nil, err
	}
	if current.IsFrozen {
		return nil, &domain.InvalidStateError{Document: "timesheet", Current: string(current.Status), Attempted: string(ActionSubmit)}
	}
	if current.TotalHours <= 0 {
		return nil, &domain.InvalidStateError{Document: "timesheet", Current: string(current.Status), Attempted: "submit with no hours"}
	}

	action := ActionSubmit
	if s.rules.LeadApproval {
		entries, err := s.store.ListEntries(id, false)
		if err != nil {
			return nil, fmt.Errorf("listing entries: %w", err)
		}
		if needsLead(entries) {
			action = ActionSubmitToLead
		}
	}

	ts := current.Clone()
	if err := apply(ts, action, actor, s.timeSource.Now(), ""); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTimesheet(ts, current.Version); err != nil {
		return nil, err
	}
	slog.Info("Timesheet submitted", "id", id, "actor", actor.ID, "status", ts.Status)
	return ts, nil
}

func needsLead(entries []domain.TimeEntry) bool {
	for _, e := range entries {
		if e.Active() && e.Type != domain.EntryMiscellaneous {
			return true
		}
	}
	return false
}

// Decide records an approver's decision. A manager approval is forwarded to management
// straight away; a management approval freezes the timesheet and prices its entries.
func (s *Service) Decide(ctx context.Context, actor domain.Actor, id string, level domain.ApprovalLevel, decision domain.Decision, reason string) (*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	action, err := DecisionAction(level, decision)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetTimesheet(id)
	if err != nil {
		return nil, err
	}

	ts := current.Clone()
	now := s.timeSource.Now()
	if err := apply(ts, action, actor, now, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}

	switch action {
	case ActionManagerApprove:
		if err := apply(ts, ActionForward, actor, now, ""); err != nil {
			return nil, err
		}
	case ActionManagementApprove:
		entries, err := s.store.ListEntries(id, false)
		if err != nil {
			return nil, fmt.Errorf("listing entries: %w", err)
		}
		charges, err := s.pricer.Price(ctx, ts, entries)
		if err != nil {
			return nil, err
		}
		ts.Charges = charges
	}

	if err := s.store.UpdateTimesheet(ts, current.Version); err != nil {
		return nil, err
	}
	slog.Info("Timesheet decision recorded", "id", id, "actor", actor.ID, "level", level, "decision", decision, "status", ts.Status)
	return ts, nil
}

// MarkBilled moves a frozen timesheet to billed once every charge is on an invoice.
// Marking a billed timesheet again changes nothing.
func (s *Service) MarkBilled(ctx context.Context, actor domain.Actor, id string) (*domain.Timesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := s.store.GetTimesheet(id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.StatusBilled {
		return current, nil
	}
	if _, err := Next(current.Status, ActionMarkBilled); err != nil {
		return nil, err
	}

	entries, err := s.store.ListEntries(id, false)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	invoiced := make(map[string]bool, len(entries))
	for _, e := range entries {
		invoiced[e.ID] = e.Invoiced()
	}
	for _, c := range current.Charges {
		if !invoiced[c.EntryID] {
			return nil, domain.Validationf("invoice", "entry %s has no invoice line item yet", c.EntryID)
		}
	}

	ts := current.Clone()
	if err := apply(ts, ActionMarkBilled, actor, s.timeSource.Now(), ""); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTimesheet(ts, current.Version); err != nil {
		return nil, err
	}
	slog.Info("Timesheet billed", "id", id, "actor", actor.ID)
	return ts, nil
}
