package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/config"
	"github.com/Siva2k2k/es-tm/internal/domain"
	"github.com/Siva2k2k/es-tm/internal/holiday"
)

// Resolver finds the rate that prices one entry
type Resolver interface {
	Resolve(ctx context.Context, q Query) (*domain.BillingRate, error)
}

// Calculator prices the billable entries of a frozen timesheet
type Calculator struct {
	rates    Resolver
	holidays holiday.Calendar
	rules    config.Rules
}

// NewCalculator creates a Calculator
func NewCalculator(rates Resolver, holidays holiday.Calendar, rules config.Rules) *Calculator {
	return &Calculator{rates: rates, holidays: holidays, rules: rules}
}

var minutesPerHour = decimal.NewFromInt(60)

// RoundUp rounds hours up to the next multiple of incrementMinutes
func RoundUp(hours float64, incrementMinutes int) decimal.Decimal {
	// Round away float noise first so 0.75h stays 45 minutes and is not pushed to 60.
	minutes := decimal.NewFromFloat(hours).Mul(minutesPerHour).Round(6)
	if incrementMinutes < 1 {
		incrementMinutes = 1
	}
	inc := decimal.NewFromInt(int64(incrementMinutes))
	return minutes.Div(inc).Ceil().Mul(inc).Div(minutesPerHour)
}

// Price returns one charge per active billable entry, in date then creation order.
// Non-billable entries are skipped but their worked hours still count toward overtime.
func (c *Calculator) Price(ctx context.Context, ts *domain.Timesheet, entries []domain.TimeEntry) ([]domain.Charge, error) {
	ordered := make([]domain.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Active() {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !domain.SameDay(ordered[i].Date, ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	threshold := c.rules.OvertimeThreshold()
	daily := make(map[time.Time]float64)
	var weekly float64
	holidays := make(map[time.Time]bool)

	charges := make([]domain.Charge, 0, len(ordered))
	for _, e := range ordered {
		day := domain.Day(e.Date)

		overtime := false
		if e.Type != domain.EntryLeave {
			daily[day] += e.Hours
			weekly += e.Hours
			running := daily[day]
			if c.rules.OvertimeBasis == config.OvertimeWeekly {
				running = weekly
			}
			overtime = running > threshold
		}

		if !e.IsBillable {
			continue
		}

		isHoliday, seen := holidays[day]
		if !seen {
			var err error
			isHoliday, err = c.holidays.IsHoliday(ctx, day)
			if err != nil {
				return nil, fmt.Errorf("checking holiday %s: %w", day.Format(domain.DateLayout), err)
			}
			holidays[day] = isHoliday
		}

		rate, err := c.rates.Resolve(ctx, Query{
			UserID:    ts.UserID,
			ProjectID: e.ProjectID,
			ClientID:  e.ClientID,
			Role:      ts.UserRole,
			AsOf:      day,
		})
		if err != nil {
			return nil, err
		}

		class := domain.ClassRegular
		switch {
		case isHoliday:
			class = domain.ClassHoliday
		case c.rules.IsWeekend(day):
			class = domain.ClassWeekend
		case overtime:
			class = domain.ClassOvertime
		}

		multiplier := class.Multiplier(rate)
		billed := RoundUp(e.Hours, rate.MinimumIncrementMinutes)
		charges = append(charges, domain.Charge{
			EntryID:        e.ID,
			Date:           day,
			Hours:          e.Hours,
			BilledHours:    billed,
			RateID:         rate.ID,
			Rate:           rate.HourlyRate,
			Classification: class,
			Multiplier:     multiplier,
			Amount:         billed.Mul(rate.HourlyRate).Mul(multiplier).Round(2),
		})
	}
	return charges, nil
}
