package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeKind is the entity a billing rate is attached to.
type ScopeKind string

const (
	ScopeUser    ScopeKind = "user"
	ScopeRole    ScopeKind = "role"
	ScopeProject ScopeKind = "project"
	ScopeClient  ScopeKind = "client"
	ScopeGlobal  ScopeKind = "global"
)

// ResolutionOrder lists scopes from most to least specific.
var ResolutionOrder = []ScopeKind{ScopeUser, ScopeProject, ScopeClient, ScopeRole, ScopeGlobal}

func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeUser, ScopeRole, ScopeProject, ScopeClient, ScopeGlobal:
		return true
	}
	return false
}

// RateScope identifies the entity a rate applies to. EntityID is empty only for the global scope.
type RateScope struct {
	Kind     ScopeKind `json:"entity_type"`
	EntityID string    `json:"entity_id,omitempty"`
}

func UserScope(id string) RateScope { return RateScope{Kind: ScopeUser, EntityID: id} }
func RoleScope(role string) RateScope { return RateScope{Kind: ScopeRole, EntityID: role} }
func ProjectScope(id string) RateScope { return RateScope{Kind: ScopeProject, EntityID: id} }
func ClientScope(id string) RateScope { return RateScope{Kind: ScopeClient, EntityID: id} }
func GlobalScope() RateScope { return RateScope{Kind: ScopeGlobal} }
func (s RateScope) Key() string { return string(s.Kind) + "/" + s.EntityID }
func (s RateScope) String() string { return s.Key() }
func (s RateScope) Equal(o RateScope) bool { return s.Kind == o.Kind && s.EntityID == o.EntityID }

// Validate checks that the entity id is present exactly when the scope is not global.
func (s RateScope) Validate() error {
	if !s.Kind.Valid() {
		return Validationf("entity_type", "unknown entity type %q", s.Kind)
	}
	if s.Kind == ScopeGlobal && s.EntityID != "" {
		return Validationf("entity_id", "global rates cannot name an entity")
	}
	if s.Kind != ScopeGlobal && s.EntityID == "" {
		return Validationf("entity_id", "%s rates require an entity id", s.Kind)
	}
	return nil
}

// AllowedIncrements are the permitted minimum billing increments in minutes.
var AllowedIncrements = []int{1, 5, 15, 30, 60}

// BillingRate is a versioned hourly rate plus multipliers for one scope.
type BillingRate struct {
	ID                      string          `json:"id"`
	Scope                   RateScope       `json:"scope"`
	HourlyRate              decimal.Decimal `json:"hourly_rate"`
	OvertimeMultiplier      decimal.Decimal `json:"overtime_multiplier"`
	HolidayMultiplier       decimal.Decimal `json:"holiday_multiplier"`
	WeekendMultiplier       decimal.Decimal `json:"weekend_multiplier"`
	MinimumIncrementMinutes int             `json:"minimum_increment_minutes"`
	EffectiveFrom           time.Time       `json:"effective_from"`
	EffectiveUntil          *time.Time      `json:"effective_until,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	DeletedAt               *time.Time      `json:"deleted_at,omitempty"`
}

// Covers reports whether date lies in [EffectiveFrom, EffectiveUntil).
func (r *BillingRate) Covers(date time.Time) bool {
	d := Day(date)
	if d.Before(Day(r.EffectiveFrom)) {
		return false
	}
	return r.EffectiveUntil == nil || d.Before(Day(*r.EffectiveUntil))
}

// Overlaps reports whether the effective windows of r and o intersect.
func (r *BillingRate) Overlaps(o *BillingRate) bool {
	// [a1, a2) and [b1, b2) intersect iff a1 < b2 and b1 < a2, with nil meaning +inf.
	aStartsBeforeBEnds := o.EffectiveUntil == nil || Day(r.EffectiveFrom).Before(Day(*o.EffectiveUntil))
	bStartsBeforeAEnds := r.EffectiveUntil == nil || Day(o.EffectiveFrom).Before(Day(*r.EffectiveUntil))
	return aStartsBeforeBEnds && bStartsBeforeAEnds
}

// Validate checks field ranges.
func (r *BillingRate) Validate() error {
	if err := r.Scope.Validate(); err != nil {
		return err
	}
	if r.HourlyRate.IsNegative() {
		return Validationf("hourly_rate", "must not be negative")
	}
	one := decimal.NewFromInt(1)
	multipliers := []struct {
		name  string
		value decimal.Decimal
	}{
		{"overtime_multiplier", r.OvertimeMultiplier},
		{"holiday_multiplier", r.HolidayMultiplier},
		{"weekend_multiplier", r.WeekendMultiplier},
	}
	for _, m := range multipliers {
		if m.value.LessThan(one) {
			return Validationf(m.name, "must be at least 1, got %s", m.value)
		}
	}
	allowed := false
	for _, inc := range AllowedIncrements {
		if r.MinimumIncrementMinutes == inc {
			allowed = true
			break
		}
	}
	if !allowed {
		return Validationf("minimum_increment_minutes", "must be one of %v, got %d", AllowedIncrements, r.MinimumIncrementMinutes)
	}
	if r.EffectiveFrom.IsZero() {
		return Validationf("effective_from", "is required")
	}
	if r.EffectiveUntil != nil && !Day(*r.EffectiveUntil).After(Day(r.EffectiveFrom)) {
		return Validationf("effective_until", "must be after effective_from")
	}
	return nil
}

func (r *BillingRate) String() string {
	return fmt.Sprintf("rate %s (%s, %s/h from %s)", r.ID, r.Scope, r.HourlyRate, r.EffectiveFrom.Format(DateLayout))
}
