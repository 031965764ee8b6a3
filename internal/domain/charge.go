package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classification decides which multiplier prices an entry. Exactly one applies.
type Classification string

const (
	ClassRegular  Classification = "regular"
	ClassOvertime Classification = "overtime"
	ClassWeekend  Classification = "weekend"
	ClassHoliday  Classification = "holiday"
)

// Multiplier returns the factor the rate applies for the classification.
func (c Classification) Multiplier(r *BillingRate) decimal.Decimal {
	switch c {
	case ClassHoliday:
		return r.HolidayMultiplier
	case ClassWeekend:
		return r.WeekendMultiplier
	case ClassOvertime:
		return r.OvertimeMultiplier
	}
	return decimal.NewFromInt(1)
}

// Charge is the priced result of one billable entry.
type Charge struct {
	EntryID        string          `json:"entry_id"`
	Date           time.Time       `json:"date"`
	Hours          float64         `json:"hours"`
	BilledHours    decimal.Decimal `json:"billed_hours"`
	RateID         string          `json:"rate_id"`
	Rate           decimal.Decimal `json:"rate"`
	Classification Classification  `json:"classification"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	Amount         decimal.Decimal `json:"amount"`
}
