package timesheet

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

var _ = Describe("Next", func() {
	DescribeTable("legal transitions",
		func(from domain.TimesheetStatus, action Action, to domain.TimesheetStatus) {
			next, err := Next(from, action)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(to))
		},
		Entry("submit a draft", domain.StatusDraft, ActionSubmit, domain.StatusSubmitted),
		Entry("send a draft to the lead", domain.StatusDraft, ActionSubmitToLead, domain.StatusLeadPending),
		Entry("resubmit after manager rejection", domain.StatusManagerRejected, ActionSubmit, domain.StatusSubmitted),
		Entry("resubmit after management rejection", domain.StatusManagementRejected, ActionSubmit, domain.StatusSubmitted),
		Entry("resubmit after lead rejection", domain.StatusLeadRejected, ActionSubmitToLead, domain.StatusLeadPending),
		Entry("lead approves", domain.StatusLeadPending, ActionLeadApprove, domain.StatusSubmitted),
		Entry("lead rejects", domain.StatusLeadPending, ActionLeadReject, domain.StatusLeadRejected),
		Entry("manager approves", domain.StatusSubmitted, ActionManagerApprove, domain.StatusManagerApproved),
		Entry("manager rejects", domain.StatusSubmitted, ActionManagerReject, domain.StatusManagerRejected),
		Entry("forward to management", domain.StatusManagerApproved, ActionForward, domain.StatusManagementPending),
		Entry("management approves", domain.StatusManagementPending, ActionManagementApprove, domain.StatusFrozen),
		Entry("management rejects", domain.StatusManagementPending, ActionManagementReject, domain.StatusManagementRejected),
		Entry("bill a frozen timesheet", domain.StatusFrozen, ActionMarkBilled, domain.StatusBilled),
	)

	DescribeTable("illegal transitions",
		func(from domain.TimesheetStatus, action Action) {
			_, err := Next(from, action)
			Expect(errors.Is(err, domain.ErrInvalidState)).To(BeTrue())
			var invalid *domain.InvalidStateError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Current).To(Equal(string(from)))
			Expect(invalid.Attempted).To(Equal(string(action)))
		},
		Entry("approve a draft", domain.StatusDraft, ActionManagerApprove),
		Entry("management approves a submitted timesheet", domain.StatusSubmitted, ActionManagementApprove),
		Entry("submit a frozen timesheet", domain.StatusFrozen, ActionSubmit),
		Entry("bill a draft", domain.StatusDraft, ActionMarkBilled),
		Entry("bill twice through the table", domain.StatusBilled, ActionMarkBilled),
		Entry("lead approves without lead review", domain.StatusSubmitted, ActionLeadApprove),
		Entry("submit while under review", domain.StatusSubmitted, ActionSubmit),
	)
})

var _ = Describe("DecisionAction", func() {
	It("maps every level and decision", func() {
		action, err := DecisionAction(domain.LevelManagement, domain.DecisionReject)
		Expect(err).NotTo(HaveOccurred())
		Expect(action).To(Equal(ActionManagementReject))

		action, err = DecisionAction(domain.LevelLead, domain.DecisionApprove)
		Expect(err).NotTo(HaveOccurred())
		Expect(action).To(Equal(ActionLeadApprove))
	})

	It("rejects unknown levels and decisions", func() {
		_, err := DecisionAction("ceo", domain.DecisionApprove)
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

		_, err = DecisionAction(domain.LevelManager, "maybe")
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})
})

var _ = Describe("ValidateReason", func() {
	It("requires a reason", func() {
		Expect(errors.Is(domain.ValidateReason(""), domain.ErrValidation)).To(BeTrue())
	})

	It("caps the length in characters", func() {
		Expect(domain.ValidateReason(strings.Repeat("é", domain.MaxReasonLength))).To(Succeed())
		Expect(errors.Is(domain.ValidateReason(strings.Repeat("a", domain.MaxReasonLength+1)), domain.ErrValidation)).To(BeTrue())
	})
})

var _ = Describe("apply", func() {
	var ts *domain.Timesheet

	BeforeEach(func() {
		ts = &domain.Timesheet{ID: "ts-1", Status: domain.StatusSubmitted}
	})

	It("records the rejection and history", func() {
		at := date(2024, 1, 22)
		err := apply(ts, ActionManagerReject, domain.Actor{ID: "mgr"}, at, "missing project codes")
		Expect(err).NotTo(HaveOccurred())
		Expect(ts.Status).To(Equal(domain.StatusManagerRejected))
		Expect(ts.RejectedBy).To(Equal("mgr"))
		Expect(ts.RejectionReason).To(Equal("missing project codes"))
		Expect(ts.History).To(HaveLen(1))
		Expect(ts.History[0].From).To(Equal("submitted"))
		Expect(ts.History[0].To).To(Equal("manager_rejected"))
		Expect(ts.History[0].Actor).To(Equal("mgr"))
		Expect(ts.Status.Editable()).To(BeTrue())
	})

	It("leaves the timesheet untouched without a reason", func() {
		err := apply(ts, ActionManagerReject, domain.Actor{ID: "mgr"}, date(2024, 1, 22), "")
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
		Expect(ts.Status).To(Equal(domain.StatusSubmitted))
		Expect(ts.History).To(BeEmpty())
	})

	It("clears an earlier rejection on resubmit", func() {
		Expect(apply(ts, ActionManagerReject, domain.Actor{ID: "mgr"}, date(2024, 1, 22), "fix it")).To(Succeed())
		Expect(apply(ts, ActionSubmit, domain.Actor{ID: "alice"}, date(2024, 1, 23), "")).To(Succeed())
		Expect(ts.RejectionReason).To(BeEmpty())
		Expect(*ts.SubmittedAt).To(Equal(date(2024, 1, 23)))
	})
})
