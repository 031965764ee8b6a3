package timesheet

import (
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Action is a command that moves a timesheet between states
type Action string

const (
	ActionSubmit            Action = "submit"
	ActionSubmitToLead      Action = "submit_to_lead"
	ActionLeadApprove       Action = "lead_approve"
	ActionLeadReject        Action = "lead_reject"
	ActionManagerApprove    Action = "manager_approve"
	ActionManagerReject     Action = "manager_reject"
	ActionForward           Action = "forward_to_management"
	ActionManagementApprove Action = "management_approve"
	ActionManagementReject  Action = "management_reject"
	ActionMarkBilled        Action = "mark_billed"
)

// transitions is the only place timesheet legality is defined
var transitions = map[domain.TimesheetStatus]map[Action]domain.TimesheetStatus{
	domain.StatusDraft: {
		ActionSubmit:       domain.StatusSubmitted,
		ActionSubmitToLead: domain.StatusLeadPending,
	},
	domain.StatusLeadRejected: {
		ActionSubmit:       domain.StatusSubmitted,
		ActionSubmitToLead: domain.StatusLeadPending,
	},
	domain.StatusManagerRejected: {
		ActionSubmit:       domain.StatusSubmitted,
		ActionSubmitToLead: domain.StatusLeadPending,
	},
	domain.StatusManagementRejected: {
		ActionSubmit:       domain.StatusSubmitted,
		ActionSubmitToLead: domain.StatusLeadPending,
	},
	domain.StatusLeadPending: {
		ActionLeadApprove: domain.StatusSubmitted,
		ActionLeadReject:  domain.StatusLeadRejected,
	},
	domain.StatusSubmitted: {
		ActionManagerApprove: domain.StatusManagerApproved,
		ActionManagerReject:  domain.StatusManagerRejected,
	},
	domain.StatusManagerApproved: {
		ActionForward: domain.StatusManagementPending,
	},
	domain.StatusManagementPending: {
		ActionManagementApprove: domain.StatusFrozen,
		ActionManagementReject:  domain.StatusManagementRejected,
	},
	domain.StatusFrozen: {
		ActionMarkBilled: domain.StatusBilled,
	},
}

// Next returns the state action leads to from the current state
func Next(current domain.TimesheetStatus, action Action) (domain.TimesheetStatus, error) {
	if to, ok := transitions[current][action]; ok {
		return to, nil
	}
	return "", &domain.InvalidStateError{
		Document:  "timesheet",
		Current:   string(current),
		Attempted: string(action),
	}
}

// DecisionAction maps an approver's decision at a level to its action
func DecisionAction(level domain.ApprovalLevel, decision domain.Decision) (Action, error) {
	approve := decision == domain.DecisionApprove
	if !approve && decision != domain.DecisionReject {
		return "", domain.Validationf("action", "unknown decision %q", decision)
	}
	switch level {
	case domain.LevelLead:
		if approve {
			return ActionLeadApprove, nil
		}
		return ActionLeadReject, nil
	case domain.LevelManager:
		if approve {
			return ActionManagerApprove, nil
		}
		return ActionManagerReject, nil
	case domain.LevelManagement:
		if approve {
			return ActionManagementApprove, nil
		}
		return ActionManagementReject, nil
	}
	return "", domain.Validationf("level", "unknown approval level %q", level)
}

func isRejection(action Action) bool {
	switch action {
	case ActionLeadReject, ActionManagerReject, ActionManagementReject:
		return true
	}
	return false
}

// apply moves ts along action, stamping the side effects of the target state and
// appending to its history. ts is left untouched when the transition is illegal.
func apply(ts *domain.Timesheet, action Action, actor domain.Actor, at time.Time, reason string) error {
	to, err := Next(ts.Status, action)
	if err != nil {
		return err
	}
	if isRejection(action) {
		if err := domain.ValidateReason(reason); err != nil {
			return err
		}
	}

	approval := &domain.Approval{By: actor.ID, At: at}
	switch action {
	case ActionSubmit, ActionSubmitToLead:
		ts.SubmittedAt = &at
		ts.LeadApproval = nil
		ts.ManagerApproval = nil
		ts.ManagementApproval = nil
		ts.RejectedBy = ""
		ts.RejectedAt = nil
		ts.RejectionReason = ""
	case ActionLeadApprove:
		ts.LeadApproval = approval
	case ActionManagerApprove:
		ts.ManagerApproval = approval
	case ActionManagementApprove:
		ts.ManagementApproval = approval
		ts.IsFrozen = true
	case ActionLeadReject, ActionManagerReject, ActionManagementReject:
		ts.RejectedBy = actor.ID
		ts.RejectedAt = &at
		ts.RejectionReason = reason
	case ActionMarkBilled:
		ts.BilledAt = &at
	}

	ts.History = append(ts.History, domain.Transition{
		From:   string(ts.Status),
		To:     string(to),
		Action: string(action),
		Actor:  actor.ID,
		At:     at,
		Reason: reason,
	})
	ts.Status = to
	ts.UpdatedAt = at
	return nil
}
