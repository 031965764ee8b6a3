package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the closed set of stored invoice states. Overdue is derived, see Invoice.EffectiveStatus.
type InvoiceStatus string

const (
	InvoiceDraft           InvoiceStatus = "draft"
	InvoicePendingApproval InvoiceStatus = "pending_approval"
	InvoiceApproved        InvoiceStatus = "approved"
	InvoiceSent            InvoiceStatus = "sent"
	InvoicePaid            InvoiceStatus = "paid"
	InvoiceOverdue         InvoiceStatus = "overdue"
	InvoiceCancelled       InvoiceStatus = "cancelled"
)

// Period is an inclusive range of calendar dates.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(p.From)) && !d.After(Day(p.To))
}

// Overlaps reports whether [from, to] shares at least one day with p.
func (p Period) Overlaps(from, to time.Time) bool {
	return !Day(to).Before(Day(p.From)) && !Day(from).After(Day(p.To))
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return Validationf("period", "from and to are required")
	}
	if Day(p.To).Before(Day(p.From)) {
		return Validationf("period", "to must not be before from")
	}
	return nil
}

// LineItem aggregates the charges of one task or one described activity.
type LineItem struct {
	Description string          `json:"description"`
	EntryType   EntryType       `json:"entry_type"`
	ProjectID   string          `json:"project_id,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	EntryIDs    []string        `json:"entry_ids"`
	Hours       decimal.Decimal `json:"hours"`
	Total       decimal.Decimal `json:"total"`
}

// Invoice is a billing document for one client over one period.
type Invoice struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	ClientID        string          `json:"client_id"`
	Period          Period          `json:"period"`
	Status          InvoiceStatus   `json:"status"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         time.Time       `json:"due_date"`
	LineItems       []LineItem      `json:"line_items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	History         []Transition    `json:"history,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EntryIDs lists every entry referenced by the line items, in order.
func (i *Invoice) EntryIDs() []string {
	var ids []string
	for _, item := range i.LineItems {
		ids = append(ids, item.EntryIDs...)
	}
	return ids
}

// CalculateTotals recomputes subtotal, tax, and total from the line items.
func (i *Invoice) CalculateTotals() {
	i.Subtotal = decimal.Zero
	for _, item := range i.LineItems {
		i.Subtotal = i.Subtotal.Add(item.Total)
	}
	i.TaxAmount = i.Subtotal.Mul(i.TaxRate).Round(2)
	i.TotalAmount = i.Subtotal.Add(i.TaxAmount)
}

// EffectiveStatus reports overdue for approved or sent invoices past their due date.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if (i.Status == InvoiceApproved || i.Status == InvoiceSent) && i.PaidAt == nil && Day(now).After(Day(i.DueDate)) {
		return InvoiceOverdue
	}
	return i.Status
}

// Clone returns a copy that can be mutated without touching i.
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.LineItems = append([]LineItem(nil), i.LineItems...)
	c.History = append([]Transition(nil), i.History...)
	return &c
}
