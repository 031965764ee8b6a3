package holiday

import (
	"context"
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Calendar answers whether a date is a company holiday
type Calendar interface {
	// IsHoliday reports whether date is a company holiday
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// Static is a fixed set of holiday dates
type Static struct {
	days map[time.Time]string
}

// NewStatic creates a Static calendar from dates, keyed by calendar day
func NewStatic(dates ...time.Time) *Static {
	s := &Static{days: make(map[time.Time]string, len(dates))}
	for _, d := range dates {
		s.days[domain.Day(d)] = ""
	}
	return s
}

// Add registers a named holiday
func (s *Static) Add(date time.Time, name string) {
	s.days[domain.Day(date)] = name
}

// IsHoliday reports whether date was registered
func (s *Static) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	_, ok := s.days[domain.Day(date)]
	return ok, nil
}

// Union treats a date as a holiday if any calendar does
type Union []Calendar

// IsHoliday asks each calendar in order and stops at the first yes or error
func (u Union) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	for _, c := range u {
		ok, err := c.IsHoliday(ctx, date)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
