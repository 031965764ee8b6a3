package domain

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MaxHoursPerEntry caps a single entry and MaxHoursPerDay caps the active entries of one date.
const (
	MaxHoursPerEntry = 10.0
	MaxHoursPerDay   = 10.0
)

// EntryType is the closed set of time entry kinds.
type EntryType string

const (
	EntryProjectTask   EntryType = "project_task"
	EntryCustomTask    EntryType = "custom_task"
	EntryLeave         EntryType = "leave"
	EntryMiscellaneous EntryType = "miscellaneous"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryProjectTask, EntryCustomTask, EntryLeave, EntryMiscellaneous:
		return true
	}
	return false
}

// DescribedByText reports whether duplicates of this type are detected by description.
func (t EntryType) DescribedByText() bool {
	return t == EntryCustomTask || t == EntryMiscellaneous
}

// BillableByDefault is applied when the caller does not say whether an entry is billable.
func (t EntryType) BillableByDefault() bool {
	return t == EntryProjectTask
}

// LeaveSession is the part of the day a leave entry covers.
type LeaveSession string

const (
	LeaveMorning   LeaveSession = "morning"
	LeaveAfternoon LeaveSession = "afternoon"
	LeaveFullDay   LeaveSession = "full_day"
)

// Hours returns the hours a leave session accounts for, and false for unknown sessions.
func (s LeaveSession) Hours() (float64, bool) {
	switch s {
	case LeaveMorning, LeaveAfternoon:
		return 4, true
	case LeaveFullDay:
		return 8, true
	}
	return 0, false
}

// TimeEntry is one dated, typed unit of logged work inside a timesheet.
type TimeEntry struct {
	ID           string       `json:"id"`
	TimesheetID  string       `json:"timesheet_id"`
	Date         time.Time    `json:"date"`
	Hours        float64      `json:"hours"`
	Type         EntryType    `json:"entry_type"`
	ProjectID    string       `json:"project_id,omitempty"`
	TaskID       string       `json:"task_id,omitempty"`
	ClientID     string       `json:"client_id,omitempty"`
	IsBillable   bool         `json:"is_billable"`
	Description  string       `json:"description,omitempty"`
	LeaveSession LeaveSession `json:"leave_session,omitempty"`
	InvoiceID    string       `json:"invoice_id,omitempty"`
	Seq          int          `json:"seq"`
	CreatedAt    time.Time    `json:"created_at"`
	DeletedAt    *time.Time   `json:"deleted_at,omitempty"`
}

// Active reports whether the entry has not been soft-deleted.
func (e *TimeEntry) Active() bool {
	return e.DeletedAt == nil
}

// Invoiced reports whether an invoice line item references the entry.
func (e *TimeEntry) Invoiced() bool {
	return e.InvoiceID != ""
}

// EntryInput is a candidate entry as submitted by a caller. Billable is nil when the
// caller leaves billability to the entry type default.
type EntryInput struct {
	Date         time.Time
	Hours        float64
	Type         EntryType
	ProjectID    string
	TaskID       string
	ClientID     string
	Billable     *bool
	Description  string
	LeaveSession LeaveSession
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("date", "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ActiveHours sums the hours of the active entries.
func ActiveHours(entries []TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		if e.Active() {
			total += e.Hours
		}
	}
	return total
}
