package server

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

var _ = Describe("Billing lifecycle", func() {
	var (
		h           *harness
		timesheetID string
	)

	decide := func(level, action, reason string) *http.Response {
		return h.do("POST", "/api/timesheets/"+timesheetID+"/decisions", "approver", map[string]any{
			"level": level, "action": action, "reason": reason,
		})
	}

	invoiceAction := func(id, action string, body any) invoiceResponse {
		resp := h.do("POST", "/api/invoices/"+id+"/"+action, "finance", body)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var inv invoiceResponse
		decode(resp, &inv)
		return inv
	}

	generate := func() *http.Response {
		return h.do("POST", "/api/invoices", "finance", map[string]any{
			"client_id": "acme", "from": "2024-01-15", "to": "2024-01-21",
		})
	}

	BeforeEach(func() {
		h = newHarness(BasicAuth{})

		resp := h.do("PUT", "/api/rates", "admin", map[string]any{
			"entity_type":               "global",
			"hourly_rate":               "100",
			"overtime_multiplier":       "1.5",
			"holiday_multiplier":        "2",
			"weekend_multiplier":        "1.25",
			"minimum_increment_minutes": 15,
			"effective_from":            "2024-01-01",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		resp = h.do("POST", "/api/timesheets", "alice", map[string]any{"week_start_date": "2024-01-15"})
		var ts timesheetResponse
		decode(resp, &ts)
		timesheetID = ts.ID

		resp = h.do("PUT", "/api/timesheets/"+timesheetID+"/entries", "alice", map[string]any{
			"entries": []any{
				projectEntry("2024-01-15", 8),
				projectEntry("2024-01-20", 2),
				map[string]any{
					"date": "2024-01-16", "hours": 1, "entry_type": "custom_task",
					"description": "internal training",
				},
			},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()
	})

	approveToFrozen := func() timesheetResponse {
		resp := h.do("POST", "/api/timesheets/"+timesheetID+"/submit", "alice", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		resp = decide("manager", "approve", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var ts timesheetResponse
		decode(resp, &ts)
		Expect(ts.Status).To(Equal(domain.StatusManagementPending))

		resp = decide("management", "approve", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		decode(resp, &ts)
		return ts
	}

	It("freezes, prices, invoices, and bills a week", func() {
		ts := approveToFrozen()
		Expect(ts.Status).To(Equal(domain.StatusFrozen))
		Expect(ts.IsFrozen).To(BeTrue())
		Expect(ts.Charges).To(HaveLen(2))
		Expect(ts.Charges[0].Classification).To(Equal(domain.ClassRegular))
		Expect(ts.Charges[0].Amount.Equal(decimal.NewFromInt(800))).To(BeTrue())
		Expect(ts.Charges[1].Classification).To(Equal(domain.ClassWeekend))
		Expect(ts.Charges[1].Amount.Equal(decimal.NewFromInt(250))).To(BeTrue())

		By("refusing edits once frozen")
		resp := h.do("POST", "/api/entries", "alice", projectEntry("2024-01-17", 1))
		expectError(resp, http.StatusConflict, "invalid_state")

		By("refusing to bill before invoicing")
		resp = h.do("POST", "/api/timesheets/"+timesheetID+"/billed", "finance", nil)
		expectError(resp, http.StatusBadRequest, "validation")

		By("generating the invoice")
		resp = generate()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var inv invoiceResponse
		decode(resp, &inv)
		Expect(inv.Status).To(Equal(domain.InvoiceDraft))
		Expect(inv.EffectiveStatus).To(Equal(domain.InvoiceDraft))
		Expect(inv.LineItems).To(HaveLen(1))
		Expect(inv.LineItems[0].EntryIDs).To(HaveLen(2))
		Expect(inv.TotalAmount.Equal(decimal.NewFromInt(1050))).To(BeTrue())
		Expect(inv.DueDate.Format(domain.DateLayout)).To(Equal("2024-02-19"))

		By("refusing to bill the same entries twice")
		resp = generate()
		expectError(resp, http.StatusUnprocessableEntity, "no_billable_data")

		By("walking the invoice to paid")
		Expect(invoiceAction(inv.ID, "submit", nil).Status).To(Equal(domain.InvoicePendingApproval))
		Expect(invoiceAction(inv.ID, "decisions", map[string]any{"action": "approve"}).Status).To(Equal(domain.InvoiceApproved))
		Expect(invoiceAction(inv.ID, "send", nil).Status).To(Equal(domain.InvoiceSent))
		paid := invoiceAction(inv.ID, "pay", nil)
		Expect(paid.Status).To(Equal(domain.InvoicePaid))
		Expect(paid.History).To(HaveLen(5))

		resp = h.do("POST", "/api/invoices/"+inv.ID+"/cancel", "finance", nil)
		expectError(resp, http.StatusConflict, "invalid_state")

		By("billing the timesheet, twice")
		for i := 0; i < 2; i++ {
			resp = h.do("POST", "/api/timesheets/"+timesheetID+"/billed", "finance", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &ts)
			Expect(ts.Status).To(Equal(domain.StatusBilled))
		}

		resp = h.do("GET", "/api/invoices?client_id=acme", "", nil)
		var list []invoiceResponse
		decode(resp, &list)
		Expect(list).To(HaveLen(1))
		Expect(list[0].Status).To(Equal(domain.InvoicePaid))
	})

	It("releases entries when an invoice is cancelled", func() {
		approveToFrozen()

		resp := generate()
		var first invoiceResponse
		decode(resp, &first)

		cancelled := invoiceAction(first.ID, "cancel", map[string]any{"reason": "wrong client contact"})
		Expect(cancelled.Status).To(Equal(domain.InvoiceCancelled))

		resp = h.do("GET", "/api/timesheets/"+timesheetID, "", nil)
		var ts timesheetResponse
		decode(resp, &ts)
		for _, e := range ts.Entries {
			Expect(e.InvoiceID).To(BeEmpty())
		}

		resp = generate()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var second invoiceResponse
		decode(resp, &second)
		Expect(second.ID).NotTo(Equal(first.ID))
		Expect(second.Number).NotTo(Equal(first.Number))
	})

	It("sends a rejected invoice back to draft", func() {
		approveToFrozen()
		resp := generate()
		var inv invoiceResponse
		decode(resp, &inv)
		invoiceAction(inv.ID, "submit", nil)

		resp = h.do("POST", "/api/invoices/"+inv.ID+"/decisions", "finance", map[string]any{"action": "reject"})
		expectError(resp, http.StatusBadRequest, "validation")

		rejected := invoiceAction(inv.ID, "decisions", map[string]any{"action": "reject", "reason": "rate looks wrong"})
		Expect(rejected.Status).To(Equal(domain.InvoiceDraft))
		Expect(rejected.RejectionReason).To(Equal("rate looks wrong"))
	})

	It("reports overdue invoices past their due date", func() {
		approveToFrozen()
		resp := generate()
		var inv invoiceResponse
		decode(resp, &inv)
		invoiceAction(inv.ID, "submit", nil)
		invoiceAction(inv.ID, "decisions", map[string]any{"action": "approve"})
		invoiceAction(inv.ID, "send", nil)

		h.clock.now = h.clock.now.AddDate(0, 2, 0)
		resp = h.do("GET", "/api/invoices/"+inv.ID, "", nil)
		decode(resp, &inv)
		Expect(inv.Status).To(Equal(domain.InvoiceSent))
		Expect(inv.EffectiveStatus).To(Equal(domain.InvoiceOverdue))
	})

	It("keeps the timesheet pending when no rate applies", func() {
		resp := h.do("GET", "/api/rates?scope=global", "", nil)
		var rates []domain.BillingRate
		decode(resp, &rates)
		resp = h.do("DELETE", "/api/rates/"+rates[0].ID, "admin", nil)
		resp.Body.Close()

		resp = h.do("POST", "/api/timesheets/"+timesheetID+"/submit", "alice", nil)
		resp.Body.Close()
		resp = decide("manager", "approve", "")
		resp.Body.Close()

		resp = decide("management", "approve", "")
		expectError(resp, http.StatusUnprocessableEntity, "no_applicable_rate")

		resp = h.do("GET", "/api/timesheets/"+timesheetID, "", nil)
		var ts timesheetResponse
		decode(resp, &ts)
		Expect(ts.Status).To(Equal(domain.StatusManagementPending))
		Expect(ts.IsFrozen).To(BeFalse())
		Expect(ts.Charges).To(BeEmpty())
	})

	It("returns a management rejection to the employee for resubmission", func() {
		resp := h.do("POST", "/api/timesheets/"+timesheetID+"/submit", "alice", nil)
		resp.Body.Close()
		resp = decide("manager", "approve", "")
		resp.Body.Close()

		resp = decide("management", "reject", "split the training hours")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var ts timesheetResponse
		decode(resp, &ts)
		Expect(ts.Status).To(Equal(domain.StatusManagementRejected))

		resp = h.do("POST", "/api/timesheets/"+timesheetID+"/submit", "alice", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var resubmitted timesheetResponse
		decode(resp, &resubmitted)
		Expect(resubmitted.Status).To(Equal(domain.StatusSubmitted))
		Expect(resubmitted.RejectionReason).To(BeEmpty())
	})

	It("refuses decisions on a frozen timesheet", func() {
		approveToFrozen()
		resp := decide("management", "reject", "too late")
		expectError(resp, http.StatusConflict, "invalid_state")
	})
})
