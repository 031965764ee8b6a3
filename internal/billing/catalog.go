package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// RateStore persists billing rates
type RateStore interface {
	SaveRate(rate *domain.BillingRate, guard func(siblings []domain.BillingRate) error) error
	GetRate(id string) (*domain.BillingRate, error)
	ListRates(scope *domain.RateScope) ([]domain.BillingRate, error)
}

// Query names everything a rate can be attached to for one priced date
type Query struct {
	UserID    string
	ProjectID string
	ClientID  string
	Role      string
	AsOf      time.Time
}

func (q Query) scope(kind domain.ScopeKind) (domain.RateScope, bool) {
	var id string
	switch kind {
	case domain.ScopeUser:
		id = q.UserID
	case domain.ScopeProject:
		id = q.ProjectID
	case domain.ScopeClient:
		id = q.ClientID
	case domain.ScopeRole:
		id = q.Role
	case domain.ScopeGlobal:
		return domain.GlobalScope(), true
	}
	if id == "" {
		return domain.RateScope{}, false
	}
	return domain.RateScope{Kind: kind, EntityID: id}, true
}

// Catalog resolves and maintains versioned billing rates
type Catalog struct {
	store       RateStore
	idGenerator domain.IDGenerator
	timeSource  domain.TimeSource
}

// NewCatalog creates a Catalog with UUID ids and the system clock
func NewCatalog(store RateStore) *Catalog {
	return NewCatalogWithDeps(store, domain.UUIDGenerator{}, domain.SystemClock{})
}

// NewCatalogWithDeps creates a Catalog with custom dependencies for testing
func NewCatalogWithDeps(store RateStore, idGen domain.IDGenerator, timeSrc domain.TimeSource) *Catalog {
	return &Catalog{
		store:       store,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Resolve returns the rate of the most specific scope that covers q.AsOf.
// Scopes are tried user, project, client, role, then global.
func (c *Catalog) Resolve(ctx context.Context, q Query) (*domain.BillingRate, error) {
	for _, kind := range domain.ResolutionOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scope, ok := q.scope(kind)
		if !ok {
			continue
		}

		rates, err := c.store.ListRates(&scope)
		if err != nil {
			return nil, fmt.Errorf("listing %s rates: %w", scope, err)
		}

		var covering []domain.BillingRate
		for _, r := range rates {
			if r.DeletedAt == nil && r.Covers(q.AsOf) {
				covering = append(covering, r)
			}
		}
		if len(covering) == 0 {
			continue
		}

		sort.SliceStable(covering, func(i, j int) bool {
			return covering[i].CreatedAt.After(covering[j].CreatedAt)
		})
		if len(covering) > 1 {
			ids := make([]string, len(covering))
			for i, r := range covering {
				ids[i] = r.ID
			}
			slog.Warn("Overlapping billing rates, using the newest",
				"scope", scope.String(),
				"date", q.AsOf.Format(domain.DateLayout),
				"rates", ids,
				"chosen", covering[0].ID)
		}
		chosen := covering[0]
		return &chosen, nil
	}

	return nil, &domain.NoApplicableRateError{
		UserID: q.UserID,
		AsOf:   q.AsOf.Format(domain.DateLayout),
	}
}

// Upsert validates and stores rate. A missing ID creates a new rate; an existing ID replaces
// that rate. Effective ranges may not overlap another live rate of the same scope.
func (c *Catalog) Upsert(ctx context.Context, rate domain.BillingRate) (*domain.BillingRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := c.timeSource.Now()
	rate.EffectiveFrom = domain.Day(rate.EffectiveFrom)
	if rate.EffectiveUntil != nil {
		until := domain.Day(*rate.EffectiveUntil)
		rate.EffectiveUntil = &until
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	if rate.ID == "" {
		rate.ID = c.idGenerator.Generate()
		rate.CreatedAt = now
	} else {
		existing, err := c.store.GetRate(rate.ID)
		if err != nil {
			return nil, err
		}
		if existing.DeletedAt != nil {
			return nil, &domain.InvalidStateError{Document: "billing rate", Current: "deleted", Attempted: "update"}
		}
		rate.CreatedAt = existing.CreatedAt
	}
	rate.UpdatedAt = now
	rate.DeletedAt = nil

	err := c.store.SaveRate(&rate, func(siblings []domain.BillingRate) error {
		for i := range siblings {
			if rate.Overlaps(&siblings[i]) {
				return domain.Validationf("effective_from",
					"overlaps %s for %s", siblings[i].ID, rate.Scope)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// Delete soft-deletes a rate. It stays listable for audit and re-billing.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rate, err := c.store.GetRate(id)
	if err != nil {
		return err
	}
	if rate.DeletedAt != nil {
		return nil
	}
	now := c.timeSource.Now()
	rate.DeletedAt = &now
	rate.UpdatedAt = now
	return c.store.SaveRate(rate, nil)
}

// List returns the rates of scope, or every rate when scope is nil, soft-deleted ones included
func (c *Catalog) List(ctx context.Context, scope *domain.RateScope) ([]domain.BillingRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scope != nil {
		if err := scope.Validate(); err != nil {
			return nil, err
		}
	}
	return c.store.ListRates(scope)
}
