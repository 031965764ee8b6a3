package invoice

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/config"
	"github.com/Siva2k2k/es-tm/internal/domain"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		store   *mockStore
		rules   config.Rules
		clock   *fixedClock
		service *Service
		actor   domain.Actor
		period  domain.Period
	)

	monday := date(2024, 1, 15)

	charge := func(id string, day time.Time, hours, amount string) domain.Charge {
		return domain.Charge{
			EntryID:        id,
			Date:           day,
			BilledHours:    decimal.RequireFromString(hours),
			Amount:         decimal.RequireFromString(amount),
			Classification: domain.ClassRegular,
		}
	}

	// addTimesheet stores a priced timesheet with one entry per charge
	addTimesheet := func(id string, status domain.TimesheetStatus, client string, entries []domain.TimeEntry, charges []domain.Charge) {
		for i := range entries {
			entries[i].TimesheetID = id
			entries[i].ClientID = client
			entries[i].IsBillable = true
			entries[i].Seq = i
		}
		store.timesheets = append(store.timesheets, &domain.Timesheet{
			ID:        id,
			UserID:    "alice",
			WeekStart: monday,
			WeekEnd:   monday.AddDate(0, 0, 6),
			Status:    status,
			IsFrozen:  true,
			Charges:   charges,
		})
		store.entries[id] = entries
	}

	project := func(id string, day time.Time, task string) domain.TimeEntry {
		return domain.TimeEntry{ID: id, Date: day, Hours: 2, Type: domain.EntryProjectTask, ProjectID: "apollo", TaskID: task}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newMockStore()
		rules = config.Default()
		rules.TaxRate = decimal.RequireFromString("0.0825")
		clock = &fixedClock{now: date(2024, 2, 1)}
		actor = domain.Actor{ID: "finance"}
		period = domain.Period{From: date(2024, 1, 1), To: date(2024, 1, 31)}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(store, &countingNumbers{}, rules, &sequentialIDs{}, clock)
	})

	Describe("Generate", func() {
		var (
			inv *domain.Invoice
			err error
		)

		BeforeEach(func() {
			review := domain.TimeEntry{ID: "e-3", Date: monday, Hours: 1, Type: domain.EntryCustomTask, Description: "Design review"}
			addTimesheet("ts-1", domain.StatusFrozen, "acme",
				[]domain.TimeEntry{
					project("e-1", monday, "build"),
					review,
					project("e-2", monday.AddDate(0, 0, 1), "build"),
					project("e-4", monday.AddDate(0, 0, 1), "test"),
				},
				[]domain.Charge{
					charge("e-1", monday, "2", "200.00"),
					charge("e-3", monday, "1", "100.00"),
					charge("e-2", monday.AddDate(0, 0, 1), "2", "300.00"),
					charge("e-4", monday.AddDate(0, 0, 1), "2.25", "225.00"),
				})
		})

		JustBeforeEach(func() {
			inv, err = service.Generate(ctx, actor, "acme", period)
		})

		It("groups charges into line items by task and description", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.LineItems).To(HaveLen(3))

			build := inv.LineItems[0]
			Expect(build.ProjectID).To(Equal("apollo"))
			Expect(build.TaskID).To(Equal("build"))
			Expect(build.EntryIDs).To(Equal([]string{"e-1", "e-2"}))
			Expect(build.Hours.String()).To(Equal("4"))
			Expect(build.Total.StringFixed(2)).To(Equal("500.00"))

			Expect(inv.LineItems[1].Description).To(Equal("Design review"))
			Expect(inv.LineItems[2].TaskID).To(Equal("test"))
		})

		It("computes totals, tax, and terms", func() {
			Expect(inv.Subtotal.StringFixed(2)).To(Equal("825.00"))
			Expect(inv.TaxAmount.StringFixed(2)).To(Equal("68.06"))
			Expect(inv.TotalAmount.StringFixed(2)).To(Equal("893.06"))
			Expect(inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount))).To(BeTrue())
			Expect(inv.Status).To(Equal(domain.InvoiceDraft))
			Expect(inv.IssueDate).To(Equal(date(2024, 2, 1)))
			Expect(inv.DueDate).To(Equal(date(2024, 3, 2)))
			Expect(inv.Number).To(Equal("INV-1"))
		})

		It("links the entries so they are not billed twice", func() {
			Expect(store.entry("e-1").InvoiceID).To(Equal(inv.ID))

			_, again := service.Generate(ctx, actor, "acme", period)
			Expect(errors.Is(again, domain.ErrNoBillableData)).To(BeTrue())
		})

		When("the client has no frozen billable entries", func() {
			JustBeforeEach(func() {
				inv, err = service.Generate(ctx, actor, "globex", period)
			})

			It("returns NoBillableDataError", func() {
				Expect(errors.Is(err, domain.ErrNoBillableData)).To(BeTrue())
				Expect(inv).To(BeNil())
			})
		})

		When("the timesheet is not frozen", func() {
			BeforeEach(func() {
				store.timesheets[0].Status = domain.StatusManagementPending
			})

			It("has nothing to bill", func() {
				Expect(errors.Is(err, domain.ErrNoBillableData)).To(BeTrue())
			})
		})

		When("the period ends before some charges", func() {
			BeforeEach(func() {
				period.To = monday
			})

			It("only bills charges inside the period", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(inv.EntryIDs()).To(ConsistOf("e-1", "e-3"))
			})
		})

		When("another run links an entry first", func() {
			BeforeEach(func() {
				store.createErr = &domain.ConflictError{Document: "time entry", ID: "e-2"}
			})

			It("fails the whole generation", func() {
				Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
				Expect(store.invoices).To(BeEmpty())
			})
		})

		When("the period is inverted", func() {
			BeforeEach(func() {
				period = domain.Period{From: date(2024, 2, 1), To: date(2024, 1, 1)}
			})

			It("returns a validation error", func() {
				Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
			})
		})

		When("listing timesheets fails", func() {
			BeforeEach(func() {
				store.listTimesheetsErr = errStore
			})

			It("returns the error", func() {
				Expect(errors.Is(err, errStore)).To(BeTrue())
			})
		})
	})

	Describe("workflow", func() {
		var id string

		BeforeEach(func() {
			addTimesheet("ts-1", domain.StatusBilled, "acme",
				[]domain.TimeEntry{project("e-1", monday, "build")},
				[]domain.Charge{charge("e-1", monday, "2", "200.00")})
		})

		JustBeforeEach(func() {
			inv, err := service.Generate(ctx, actor, "acme", period)
			Expect(err).NotTo(HaveOccurred())
			id = inv.ID
		})

		It("runs draft to paid", func() {
			inv, err := service.SubmitForApproval(ctx, actor, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(domain.InvoicePendingApproval))

			inv, err = service.Decide(ctx, domain.Actor{ID: "cfo"}, id, domain.DecisionApprove, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.ApprovedBy).To(Equal("cfo"))

			inv, err = service.MarkSent(ctx, actor, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.SentAt).NotTo(BeNil())

			inv, err = service.MarkPaid(ctx, actor, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(domain.InvoicePaid))
			Expect(inv.History).To(HaveLen(5))
		})

		It("sends a rejected invoice back to draft with its reason", func() {
			_, err := service.SubmitForApproval(ctx, actor, id)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Decide(ctx, actor, id, domain.DecisionReject, "")
			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

			_, err = service.Decide(ctx, actor, id, domain.DecisionReject, strings.Repeat("x", domain.MaxReasonLength+1))
			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

			inv, err := service.Decide(ctx, actor, id, domain.DecisionReject, "wrong PO number")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(domain.InvoiceDraft))
			Expect(inv.RejectionReason).To(Equal("wrong PO number"))
		})

		It("refuses to approve a draft", func() {
			_, err := service.Decide(ctx, actor, id, domain.DecisionApprove, "")
			Expect(errors.Is(err, domain.ErrInvalidState)).To(BeTrue())
		})

		It("releases entries on cancel so they can be invoiced again", func() {
			inv, err := service.Cancel(ctx, actor, id, "duplicate")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(domain.InvoiceCancelled))
			Expect(store.entry("e-1").Invoiced()).To(BeFalse())

			again, err := service.Generate(ctx, actor, "acme", period)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).NotTo(Equal(id))
		})

		It("treats cancellation as terminal", func() {
			_, err := service.Cancel(ctx, actor, id, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.SubmitForApproval(ctx, actor, id)
			Expect(errors.Is(err, domain.ErrInvalidState)).To(BeTrue())
		})

		It("cannot cancel a paid invoice", func() {
			for _, step := range []func() (*domain.Invoice, error){
				func() (*domain.Invoice, error) { return service.SubmitForApproval(ctx, actor, id) },
				func() (*domain.Invoice, error) { return service.Decide(ctx, actor, id, domain.DecisionApprove, "") },
				func() (*domain.Invoice, error) { return service.MarkSent(ctx, actor, id) },
				func() (*domain.Invoice, error) { return service.MarkPaid(ctx, actor, id) },
			} {
				_, err := step()
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := service.Cancel(ctx, actor, id, "")
			Expect(errors.Is(err, domain.ErrInvalidState)).To(BeTrue())
		})

		It("reports overdue once a sent invoice passes its due date", func() {
			_, _ = service.SubmitForApproval(ctx, actor, id)
			_, _ = service.Decide(ctx, actor, id, domain.DecisionApprove, "")
			inv, err := service.MarkSent(ctx, actor, id)
			Expect(err).NotTo(HaveOccurred())

			Expect(inv.EffectiveStatus(inv.DueDate)).To(Equal(domain.InvoiceSent))
			Expect(inv.EffectiveStatus(inv.DueDate.AddDate(0, 0, 1))).To(Equal(domain.InvoiceOverdue))
		})

		It("returns a conflict when the invoice changed underneath", func() {
			store.updateErr = &domain.ConflictError{Document: "invoice", ID: id}
			_, err := service.SubmitForApproval(ctx, actor, id)
			Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("returns not found for unknown invoices", func() {
			_, err := service.Get(ctx, "nope")
			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("SnowflakeNumbers", func() {
	It("issues unique prefixed numbers", func() {
		numbers, err := NewSnowflakeNumbers(1)
		Expect(err).NotTo(HaveOccurred())
		first, second := numbers.Next(), numbers.Next()
		Expect(first).To(HavePrefix("INV-"))
		Expect(first).NotTo(Equal(second))
	})

	It("rejects an out of range node", func() {
		_, err := NewSnowflakeNumbers(4096)
		Expect(err).To(HaveOccurred())
	})
})
