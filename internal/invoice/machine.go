package invoice

import (
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Action is a command that moves an invoice between states
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSend    Action = "send"
	ActionPay     Action = "pay"
	ActionCancel  Action = "cancel"
)

var transitions = map[domain.InvoiceStatus]map[Action]domain.InvoiceStatus{
	domain.InvoiceDraft: {
		ActionSubmit: domain.InvoicePendingApproval,
		ActionCancel: domain.InvoiceCancelled,
	},
	domain.InvoicePendingApproval: {
		ActionApprove: domain.InvoiceApproved,
		ActionReject:  domain.InvoiceDraft,
		ActionCancel:  domain.InvoiceCancelled,
	},
	domain.InvoiceApproved: {
		ActionSend:   domain.InvoiceSent,
		ActionCancel: domain.InvoiceCancelled,
	},
	domain.InvoiceSent: {
		ActionPay:    domain.InvoicePaid,
		ActionCancel: domain.InvoiceCancelled,
	},
}

// Next returns the stored state action leads to. Overdue is never stored, so an overdue
// invoice moves by its underlying approved or sent state.
func Next(current domain.InvoiceStatus, action Action) (domain.InvoiceStatus, error) {
	if to, ok := transitions[current][action]; ok {
		return to, nil
	}
	return "", &domain.InvalidStateError{
		Document:  "invoice",
		Current:   string(current),
		Attempted: string(action),
	}
}

func apply(inv *domain.Invoice, action Action, actor domain.Actor, at time.Time, reason string) error {
	to, err := Next(inv.Status, action)
	if err != nil {
		return err
	}
	if action == ActionReject {
		if err := domain.ValidateReason(reason); err != nil {
			return err
		}
	}

	switch action {
	case ActionApprove:
		inv.ApprovedBy = actor.ID
		inv.ApprovedAt = &at
		inv.RejectionReason = ""
	case ActionReject:
		inv.RejectionReason = reason
	case ActionSend:
		inv.SentAt = &at
	case ActionPay:
		inv.PaidAt = &at
	case ActionCancel:
		inv.CancelledAt = &at
	}

	inv.History = append(inv.History, domain.Transition{
		From:   string(inv.Status),
		To:     string(to),
		Action: string(action),
		Actor:  actor.ID,
		At:     at,
		Reason: reason,
	})
	inv.Status = to
	inv.UpdatedAt = at
	return nil
}
