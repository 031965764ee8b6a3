package timesheet

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Siva2k2k/es-tm/internal/domain"
	"github.com/Siva2k2k/es-tm/internal/holiday"
)

type failingCalendar struct{}

func (failingCalendar) IsHoliday(context.Context, time.Time) (bool, error) {
	return false, errors.New("calendar offline")
}

func projectInput(day time.Time, hours float64, project, task string) domain.EntryInput {
	return domain.EntryInput{
		Date:      day,
		Hours:     hours,
		Type:      domain.EntryProjectTask,
		ProjectID: project,
		TaskID:    task,
		ClientID:  "acme",
	}
}

func ruleOf(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Rule
	}
	return ""
}

var _ = Describe("Validator", func() {
	var (
		calendar   *holiday.Static
		validator  *Validator
		ts         *domain.Timesheet
		existing   []domain.TimeEntry
		candidates []domain.EntryInput
		accepted   []domain.TimeEntry
		err        error
	)

	monday := date(2024, 1, 15)

	BeforeEach(func() {
		calendar = holiday.NewStatic()
		validator = NewValidator(calendar)
		ts = &domain.Timesheet{ID: "ts-1", WeekStart: monday, WeekEnd: monday.AddDate(0, 0, 6)}
		existing = nil
		candidates = nil
	})

	JustBeforeEach(func() {
		accepted, err = validator.Validate(context.Background(), ts, existing, candidates)
	})

	When("two entries log the same project task on one day", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{
				projectInput(monday, 8, "A", "T1"),
				projectInput(monday, 3, "A", "T1"),
			}
		})

		It("rejects the second as a duplicate", func() {
			Expect(ruleOf(err)).To(Equal(RuleDuplicateTask))
			Expect(err.Error()).To(ContainSubstring("entry 2"))
			Expect(accepted).To(BeNil())
		})
	})

	When("the duplicate is already stored", func() {
		BeforeEach(func() {
			existing = []domain.TimeEntry{{ID: "e-1", Date: monday, Hours: 2, Type: domain.EntryProjectTask, ProjectID: "A", TaskID: "T1"}}
			candidates = []domain.EntryInput{projectInput(monday, 1, "A", "T1")}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal(RuleDuplicateTask))
		})
	})

	When("the stored duplicate was deleted", func() {
		BeforeEach(func() {
			gone := monday
			existing = []domain.TimeEntry{{ID: "e-1", Date: monday, Hours: 9, Type: domain.EntryProjectTask, ProjectID: "A", TaskID: "T1", DeletedAt: &gone}}
			candidates = []domain.EntryInput{projectInput(monday, 8, "A", "T1")}
		})

		It("ignores it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted).To(HaveLen(1))
		})
	})

	When("the same task is logged on different days", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{
				projectInput(monday, 8, "A", "T1"),
				projectInput(monday.AddDate(0, 0, 1), 8, "A", "T1"),
			}
		})

		It("accepts both", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted).To(HaveLen(2))
			Expect(accepted[0].IsBillable).To(BeTrue())
		})
	})

	When("two custom tasks share a description", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{
				{Date: monday, Hours: 1, Type: domain.EntryCustomTask, Description: "Code review"},
				{Date: monday, Hours: 1, Type: domain.EntryMiscellaneous, Description: " Code review "},
			}
		})

		It("rejects the duplicate description", func() {
			Expect(ruleOf(err)).To(Equal(RuleDuplicateDescription))
		})
	})

	When("a day goes over 10 hours", func() {
		BeforeEach(func() {
			existing = []domain.TimeEntry{{ID: "e-1", Date: monday, Hours: 8, Type: domain.EntryProjectTask, ProjectID: "A", TaskID: "T1"}}
			candidates = []domain.EntryInput{projectInput(monday, 2.5, "A", "T2")}
		})

		It("enforces the daily cap", func() {
			Expect(ruleOf(err)).To(Equal(RuleDailyCap))
		})
	})

	When("a day reaches exactly 10 hours in fractions", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{
				projectInput(monday, 3.3, "A", "T1"),
				projectInput(monday, 3.3, "A", "T2"),
				projectInput(monday, 3.4, "A", "T3"),
			}
		})

		It("accepts the day", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(domain.ActiveHours(accepted)).To(BeNumerically("~", 10.0, 1e-9))
		})
	})

	When("leave is taken on a holiday", func() {
		BeforeEach(func() {
			calendar.Add(monday, "MLK Day")
			candidates = []domain.EntryInput{{Date: monday, Type: domain.EntryLeave, LeaveSession: domain.LeaveFullDay}}
		})

		It("blocks the leave", func() {
			Expect(ruleOf(err)).To(Equal(RuleHolidayLeave))
		})
	})

	When("project work is logged on a holiday", func() {
		BeforeEach(func() {
			calendar.Add(monday, "MLK Day")
			candidates = []domain.EntryInput{projectInput(monday, 4, "A", "T1")}
		})

		It("is unaffected by the holiday", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("leave uses a session", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{
				{Date: monday, Hours: 1, Type: domain.EntryLeave, LeaveSession: domain.LeaveMorning},
				{Date: monday.AddDate(0, 0, 1), Type: domain.EntryLeave, LeaveSession: domain.LeaveFullDay},
			}
		})

		It("derives the hours", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted[0].Hours).To(Equal(4.0))
			Expect(accepted[1].Hours).To(Equal(8.0))
			Expect(accepted[0].IsBillable).To(BeFalse())
		})
	})

	When("the leave session is unknown", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{{Date: monday, Type: domain.EntryLeave, LeaveSession: "evening"}}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("leave_session"))
		})
	})

	DescribeTable("miscellaneous hours",
		func(hours float64, ok bool) {
			_, err := validator.Validate(context.Background(), ts, nil, []domain.EntryInput{
				{Date: monday, Hours: hours, Type: domain.EntryMiscellaneous, Description: "Team offsite"},
			})
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(ruleOf(err)).To(Equal(RuleMiscellaneousHours))
			}
		},
		Entry("zero", 0.0, false),
		Entry("negative", -1.0, false),
		Entry("ten", 10.0, true),
		Entry("over ten", 10.5, false),
	)

	When("the date is outside the week", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{projectInput(monday.AddDate(0, 0, 7), 1, "A", "T1")}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("date"))
		})
	})

	When("a project task has no task id", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{projectInput(monday, 1, "A", "")}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("project_id"))
		})
	})

	When("a custom task has no description", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{{Date: monday, Hours: 1, Type: domain.EntryCustomTask}}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("description"))
		})
	})

	When("a billable entry has no client", func() {
		BeforeEach(func() {
			in := projectInput(monday, 1, "A", "T1")
			in.ClientID = ""
			candidates = []domain.EntryInput{in}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("client_id"))
		})
	})

	When("billability is overridden", func() {
		BeforeEach(func() {
			billable := false
			in := projectInput(monday, 1, "A", "T1")
			in.ClientID = ""
			in.Billable = &billable
			candidates = []domain.EntryInput{in}
		})

		It("keeps the caller's choice", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted[0].IsBillable).To(BeFalse())
		})
	})

	When("the entry type is unknown", func() {
		BeforeEach(func() {
			candidates = []domain.EntryInput{{Date: monday, Hours: 1, Type: "meeting"}}
		})

		It("rejects it", func() {
			Expect(ruleOf(err)).To(Equal("entry_type"))
		})
	})

	When("the holiday calendar fails", func() {
		BeforeEach(func() {
			validator = NewValidator(failingCalendar{})
			candidates = []domain.EntryInput{{Date: monday, Type: domain.EntryLeave, LeaveSession: domain.LeaveMorning}}
		})

		It("returns the error unchanged", func() {
			Expect(err).To(HaveOccurred())
			Expect(ruleOf(err)).To(BeEmpty())
			Expect(err.Error()).To(ContainSubstring("calendar offline"))
		})
	})
})
