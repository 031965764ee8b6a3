package timesheet

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
	"github.com/Siva2k2k/es-tm/internal/holiday"
)

// Rule names reported in ValidationError.Rule
const (
	RuleDuplicateTask        = "duplicate_task"
	RuleDuplicateDescription = "duplicate_description"
	RuleDailyCap             = "daily_cap"
	RuleHolidayLeave         = "holiday_leave"
	RuleMiscellaneousHours   = "miscellaneous_hours"
)

// hoursEpsilon absorbs float noise when summing fractional hours against the daily cap
const hoursEpsilon = 1e-9

// Validator admits candidate entries into a timesheet
type Validator struct {
	holidays holiday.Calendar
}

// NewValidator creates a Validator that checks leave against holidays
func NewValidator(holidays holiday.Calendar) *Validator {
	return &Validator{holidays: holidays}
}

type taskKey struct {
	project, task string
}

// dayState tracks what is already booked on one date
type dayState struct {
	hours        float64
	tasks        map[taskKey]bool
	descriptions map[string]bool
}

func (d *dayState) add(e *domain.TimeEntry) {
	d.hours += e.Hours
	switch {
	case e.Type == domain.EntryProjectTask:
		d.tasks[taskKey{e.ProjectID, e.TaskID}] = true
	case e.Type.DescribedByText():
		d.descriptions[strings.TrimSpace(e.Description)] = true
	}
}

// Validate checks candidates in order against the active entries in existing and against
// the candidates accepted before them. It returns the accepted entries with derived hours
// and default billability applied, or the first violation.
func (v *Validator) Validate(ctx context.Context, ts *domain.Timesheet, existing []domain.TimeEntry, candidates []domain.EntryInput) ([]domain.TimeEntry, error) {
	days := make(map[time.Time]*dayState)
	day := func(date time.Time) *dayState {
		key := domain.Day(date)
		d, ok := days[key]
		if !ok {
			d = &dayState{tasks: make(map[taskKey]bool), descriptions: make(map[string]bool)}
			days[key] = d
		}
		return d
	}
	for i := range existing {
		if existing[i].Active() {
			day(existing[i].Date).add(&existing[i])
		}
	}

	accepted := make([]domain.TimeEntry, 0, len(candidates))
	for i, in := range candidates {
		entry, err := v.check(ctx, ts, in)
		if err != nil {
			return nil, withIndex(err, i, len(candidates))
		}

		d := day(entry.Date)
		if entry.Type == domain.EntryProjectTask && d.tasks[taskKey{entry.ProjectID, entry.TaskID}] {
			return nil, withIndex(domain.Validationf(RuleDuplicateTask,
				"project %s task %s is already logged on %s",
				entry.ProjectID, entry.TaskID, entry.Date.Format(domain.DateLayout)), i, len(candidates))
		}
		if entry.Type.DescribedByText() && d.descriptions[strings.TrimSpace(entry.Description)] {
			return nil, withIndex(domain.Validationf(RuleDuplicateDescription,
				"%q is already logged on %s", entry.Description, entry.Date.Format(domain.DateLayout)), i, len(candidates))
		}
		if total := d.hours + entry.Hours; total > domain.MaxHoursPerDay+hoursEpsilon {
			return nil, withIndex(domain.Validationf(RuleDailyCap,
				"%s would total %.2f hours, the limit is %.0f",
				entry.Date.Format(domain.DateLayout), total, domain.MaxHoursPerDay), i, len(candidates))
		}

		d.add(&entry)
		accepted = append(accepted, entry)
	}
	return accepted, nil
}

// check applies the rules that need only the candidate itself
func (v *Validator) check(ctx context.Context, ts *domain.Timesheet, in domain.EntryInput) (domain.TimeEntry, error) {
	entry := domain.TimeEntry{
		Date:         domain.Day(in.Date),
		Hours:        in.Hours,
		Type:         in.Type,
		ProjectID:    strings.TrimSpace(in.ProjectID),
		TaskID:       strings.TrimSpace(in.TaskID),
		ClientID:     strings.TrimSpace(in.ClientID),
		Description:  strings.TrimSpace(in.Description),
		LeaveSession: in.LeaveSession,
	}

	if !entry.Type.Valid() {
		return entry, domain.Validationf("entry_type", "unknown entry type %q", in.Type)
	}
	if in.Date.IsZero() {
		return entry, domain.Validationf("date", "is required")
	}
	if !ts.Contains(entry.Date) {
		return entry, domain.Validationf("date", "%s is outside the week %s to %s",
			entry.Date.Format(domain.DateLayout), ts.WeekStart.Format(domain.DateLayout), ts.WeekEnd.Format(domain.DateLayout))
	}

	switch entry.Type {
	case domain.EntryProjectTask:
		if entry.ProjectID == "" || entry.TaskID == "" {
			return entry, domain.Validationf("project_id", "project tasks require project_id and task_id")
		}
	case domain.EntryCustomTask, domain.EntryMiscellaneous:
		if entry.Description == "" {
			return entry, domain.Validationf("description", "%s entries require a description", entry.Type)
		}
	case domain.EntryLeave:
		if entry.LeaveSession != "" {
			hours, ok := entry.LeaveSession.Hours()
			if !ok {
				return entry, domain.Validationf("leave_session", "unknown leave session %q", entry.LeaveSession)
			}
			entry.Hours = hours
		}
	}

	if err := checkHours(entry); err != nil {
		return entry, err
	}

	entry.IsBillable = entry.Type.BillableByDefault()
	if in.Billable != nil {
		entry.IsBillable = *in.Billable
	}
	if entry.IsBillable && entry.ClientID == "" {
		return entry, domain.Validationf("client_id", "billable entries require a client")
	}

	if entry.Type == domain.EntryLeave {
		isHoliday, err := v.holidays.IsHoliday(ctx, entry.Date)
		if err != nil {
			return entry, fmt.Errorf("checking holiday %s: %w", entry.Date.Format(domain.DateLayout), err)
		}
		if isHoliday {
			return entry, domain.Validationf(RuleHolidayLeave,
				"%s is a company holiday, leave cannot be taken", entry.Date.Format(domain.DateLayout))
		}
	}
	return entry, nil
}

func checkHours(entry domain.TimeEntry) error {
	rule := "hours"
	if entry.Type == domain.EntryMiscellaneous {
		rule = RuleMiscellaneousHours
	}
	if math.IsNaN(entry.Hours) || entry.Hours <= 0 || entry.Hours > domain.MaxHoursPerEntry {
		return domain.Validationf(rule, "must be greater than 0 and at most %.0f, got %g", domain.MaxHoursPerEntry, entry.Hours)
	}
	return nil
}

// withIndex prefixes the position of the failing candidate in a batch
func withIndex(err error, i, n int) error {
	if n <= 1 {
		return err
	}
	if ve, ok := err.(*domain.ValidationError); ok {
		return &domain.ValidationError{Rule: ve.Rule, Message: fmt.Sprintf("entry %d: %s", i+1, ve.Message)}
	}
	return fmt.Errorf("entry %d: %w", i+1, err)
}
