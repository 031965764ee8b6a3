package domain

import (
	"slices"
	"time"
)

// TimesheetStatus is the closed set of timesheet lifecycle states.
type TimesheetStatus string

const (
	StatusDraft              TimesheetStatus = "draft"
	StatusLeadPending        TimesheetStatus = "lead_pending"
	StatusLeadRejected       TimesheetStatus = "lead_rejected"
	StatusSubmitted          TimesheetStatus = "submitted"
	StatusManagerApproved    TimesheetStatus = "manager_approved"
	StatusManagerRejected    TimesheetStatus = "manager_rejected"
	StatusManagementPending  TimesheetStatus = "management_pending"
	StatusManagementRejected TimesheetStatus = "management_rejected"
	StatusFrozen             TimesheetStatus = "frozen"
	StatusBilled             TimesheetStatus = "billed"
)

// Editable reports whether entries may be changed in this state.
func (s TimesheetStatus) Editable() bool {
	switch s {
	case StatusDraft, StatusLeadRejected, StatusManagerRejected, StatusManagementRejected:
		return true
	}
	return false
}

// Locked reports whether the entries are immutable and priced.
func (s TimesheetStatus) Locked() bool {
	return s == StatusFrozen || s == StatusBilled
}

// Approval records who signed off a level and when.
type Approval struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// Transition is one entry in a document's history.
type Transition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Timesheet is one user's record for one calendar week.
type Timesheet struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	UserRole           string          `json:"user_role,omitempty"`
	WeekStart          time.Time       `json:"week_start_date"`
	WeekEnd            time.Time       `json:"week_end_date"`
	Status             TimesheetStatus `json:"status"`
	TotalHours         float64         `json:"total_hours"`
	IsFrozen           bool            `json:"is_frozen"`
	SubmittedAt        *time.Time      `json:"submitted_at,omitempty"`
	LeadApproval       *Approval       `json:"lead_approval,omitempty"`
	ManagerApproval    *Approval       `json:"manager_approval,omitempty"`
	ManagementApproval *Approval       `json:"management_approval,omitempty"`
	RejectedBy         string          `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	BilledAt           *time.Time      `json:"billed_at,omitempty"`
	Charges            []Charge        `json:"charges,omitempty"`
	History            []Transition    `json:"history,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
}

// Contains reports whether date falls inside the timesheet's week.
func (t *Timesheet) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(t.WeekStart) && !d.After(t.WeekEnd)
}

// Clone returns a copy that can be mutated without touching t.
func (t *Timesheet) Clone() *Timesheet {
	c := *t
	c.Charges = append([]Charge(nil), t.Charges...)
	c.History = append([]Transition(nil), t.History...)
	return &c
}

// Actor is the authenticated identity a command runs on behalf of.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// ApprovalLevel is the sign-off tier a timesheet decision is made at.
type ApprovalLevel string

const (
	LevelLead       ApprovalLevel = "lead"
	LevelManager    ApprovalLevel = "manager"
	LevelManagement ApprovalLevel = "management"
)

// Decision is the outcome chosen by an approver.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// MaxReasonLength bounds rejection reasons.
const MaxReasonLength = 1000

// ValidateReason checks a rejection reason.
func ValidateReason(reason string) error {
	if reason == "" {
		return Validationf("reason", "a rejection reason is required")
	}
	if len([]rune(reason)) > MaxReasonLength {
		return Validationf("reason", "must be at most %d characters", MaxReasonLength)
	}
	return nil
}

// TimesheetFilter narrows timesheet listings. Zero fields match everything.
type TimesheetFilter struct {
	UserID   string
	Statuses []TimesheetStatus
	Period   *Period
}

// Match reports whether t passes the filter.
func (f TimesheetFilter) Match(t *Timesheet) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if f.Period != nil && !f.Period.Overlaps(t.WeekStart, t.WeekEnd) {
		return false
	}
	return true
}
