package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OvertimeBasis selects whether overtime thresholds apply per day or per week.
type OvertimeBasis string

const (
	OvertimeDaily  OvertimeBasis = "daily"
	OvertimeWeekly OvertimeBasis = "weekly"
)

// Rules holds the business rules shared by the timesheet, billing, and invoice services.
type Rules struct {
	WeekStart               time.Weekday
	WeekendDays             []time.Weekday
	OvertimeBasis           OvertimeBasis
	DailyOvertimeThreshold  float64
	WeeklyOvertimeThreshold float64
	LeadApproval            bool
	TaxRate                 decimal.Decimal
	PaymentTermsDays        int
}

// Default returns the rules used when nothing is configured.
func Default() Rules {
	return Rules{
		WeekStart:               time.Monday,
		WeekendDays:             []time.Weekday{time.Saturday, time.Sunday},
		OvertimeBasis:           OvertimeDaily,
		DailyOvertimeThreshold:  8,
		WeeklyOvertimeThreshold: 40,
		TaxRate:                 decimal.Zero,
		PaymentTermsDays:        30,
	}
}

// Validate reports the first inconsistent rule.
func (r Rules) Validate() error {
	switch r.OvertimeBasis {
	case OvertimeDaily:
		if r.DailyOvertimeThreshold <= 0 {
			return fmt.Errorf("daily overtime threshold must be positive")
		}
	case OvertimeWeekly:
		if r.WeeklyOvertimeThreshold <= 0 {
			return fmt.Errorf("weekly overtime threshold must be positive")
		}
	default:
		return fmt.Errorf("unknown overtime basis %q", r.OvertimeBasis)
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be between 0 and 1, got %s", r.TaxRate)
	}
	if r.PaymentTermsDays < 0 {
		return fmt.Errorf("payment terms must not be negative")
	}
	return nil
}

// IsWeekend reports whether date falls on a configured weekend day.
func (r Rules) IsWeekend(date time.Time) bool {
	for _, d := range r.WeekendDays {
		if date.Weekday() == d {
			return true
		}
	}
	return false
}

// OvertimeThreshold returns the threshold for the configured basis.
func (r Rules) OvertimeThreshold() float64 {
	if r.OvertimeBasis == OvertimeWeekly {
		return r.WeeklyOvertimeThreshold
	}
	return r.DailyOvertimeThreshold
}

// ParseWeekday parses a weekday name such as "monday" or "Mon".
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseWeekdays parses a comma separated weekday list. An empty string yields no days.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}
