package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// bind decodes a JSON body into v and runs its validation. Decode failures are the
// caller's fault and report as validation errors.
func bind(r *http.Request, v render.Binder) error {
	err := render.Bind(r, v)
	var invalid *domain.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &invalid):
		return err
	case errors.Is(err, io.EOF):
		return domain.Validationf("body", "request body is empty")
	}
	return domain.Validationf("body", "malformed request: %v", err)
}

// hasBody reports whether the request carries a body worth decoding
func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, domain.Validationf(field, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := parseOptionalDate(field, s)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, domain.Validationf(field, "is required")
	}
	return *t, nil
}

type createTimesheetRequest struct {
	UserID    string `json:"user_id"`
	UserRole  string `json:"user_role"`
	WeekStart string `json:"week_start_date"`

	weekStart time.Time
}

// Bind satisfies [render.Binder]
func (c *createTimesheetRequest) Bind(r *http.Request) error {
	var err error
	c.weekStart, err = parseDate("week_start_date", c.WeekStart)
	return err
}

// entryRequest is the wire shape of one time entry
type entryRequest struct {
	Date         string              `json:"date"`
	Hours        float64             `json:"hours"`
	EntryType    domain.EntryType    `json:"entry_type"`
	ProjectID    string              `json:"project_id"`
	TaskID       string              `json:"task_id"`
	ClientID     string              `json:"client_id"`
	IsBillable   *bool               `json:"is_billable"`
	Description  string              `json:"description"`
	LeaveSession domain.LeaveSession `json:"leave_session"`
}

func (e entryRequest) input() (domain.EntryInput, error) {
	date, err := parseDate("date", e.Date)
	if err != nil {
		return domain.EntryInput{}, err
	}
	return domain.EntryInput{
		Date:         date,
		Hours:        e.Hours,
		Type:         e.EntryType,
		ProjectID:    strings.TrimSpace(e.ProjectID),
		TaskID:       strings.TrimSpace(e.TaskID),
		ClientID:     strings.TrimSpace(e.ClientID),
		Billable:     e.IsBillable,
		Description:  e.Description,
		LeaveSession: e.LeaveSession,
	}, nil
}

type addEntryRequest struct {
	UserID   string `json:"user_id"`
	UserRole string `json:"user_role"`
	entryRequest

	entry domain.EntryInput
}

// Bind satisfies [render.Binder]
func (a *addEntryRequest) Bind(r *http.Request) error {
	var err error
	a.entry, err = a.entryRequest.input()
	return err
}

type replaceEntriesRequest struct {
	Entries []entryRequest `json:"entries"`

	inputs []domain.EntryInput
}

// Bind satisfies [render.Binder]
func (re *replaceEntriesRequest) Bind(r *http.Request) error {
	if re.Entries == nil {
		return domain.Validationf("entries", "is required")
	}
	re.inputs = make([]domain.EntryInput, 0, len(re.Entries))
	for _, e := range re.Entries {
		in, err := e.input()
		if err != nil {
			return err
		}
		re.inputs = append(re.inputs, in)
	}
	return nil
}

type decisionRequest struct {
	Level  domain.ApprovalLevel `json:"level"`
	Action domain.Decision      `json:"action"`
	Reason string               `json:"reason"`
}

// Bind satisfies [render.Binder]
func (d *decisionRequest) Bind(r *http.Request) error {
	if d.Action == "" {
		return domain.Validationf("action", "is required")
	}
	return nil
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Bind satisfies [render.Binder]
func (rr *reasonRequest) Bind(r *http.Request) error { return nil }

var one = decimal.NewFromInt(1)

type rateRequest struct {
	ID                      string              `json:"id"`
	EntityType              domain.ScopeKind    `json:"entity_type"`
	EntityID                string              `json:"entity_id"`
	HourlyRate              decimal.NullDecimal `json:"hourly_rate"`
	OvertimeMultiplier      decimal.NullDecimal `json:"overtime_multiplier"`
	HolidayMultiplier       decimal.NullDecimal `json:"holiday_multiplier"`
	WeekendMultiplier       decimal.NullDecimal `json:"weekend_multiplier"`
	MinimumIncrementMinutes int                 `json:"minimum_increment_minutes"`
	EffectiveFrom           string              `json:"effective_from"`
	EffectiveUntil          string              `json:"effective_until"`

	rate domain.BillingRate
}

func orOne(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return one
}

// Bind satisfies [render.Binder]. Omitted multipliers default to 1 and an omitted
// increment bills by the minute.
func (rr *rateRequest) Bind(r *http.Request) error {
	if !rr.HourlyRate.Valid {
		return domain.Validationf("hourly_rate", "is required")
	}
	from, err := parseDate("effective_from", rr.EffectiveFrom)
	if err != nil {
		return err
	}
	until, err := parseOptionalDate("effective_until", rr.EffectiveUntil)
	if err != nil {
		return err
	}
	increment := rr.MinimumIncrementMinutes
	if increment == 0 {
		increment = 1
	}
	rr.rate = domain.BillingRate{
		ID:                      strings.TrimSpace(rr.ID),
		Scope:                   domain.RateScope{Kind: rr.EntityType, EntityID: strings.TrimSpace(rr.EntityID)},
		HourlyRate:              rr.HourlyRate.Decimal,
		OvertimeMultiplier:      orOne(rr.OvertimeMultiplier),
		HolidayMultiplier:       orOne(rr.HolidayMultiplier),
		WeekendMultiplier:       orOne(rr.WeekendMultiplier),
		MinimumIncrementMinutes: increment,
		EffectiveFrom:           from,
		EffectiveUntil:          until,
	}
	return nil
}

type generateInvoiceRequest struct {
	ClientID string `json:"client_id"`
	From     string `json:"from"`
	To       string `json:"to"`

	period domain.Period
}

// Bind satisfies [render.Binder]
func (g *generateInvoiceRequest) Bind(r *http.Request) error {
	from, err := parseDate("from", g.From)
	if err != nil {
		return err
	}
	to, err := parseDate("to", g.To)
	if err != nil {
		return err
	}
	g.period = domain.Period{From: from, To: to}
	return nil
}
