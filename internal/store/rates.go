package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// SaveRate inserts or replaces a billing rate. guard receives the other live rates of the
// same scope inside the write transaction and can veto the write.
func (b *BoltDB) SaveRate(rate *domain.BillingRate, guard func(siblings []domain.BillingRate) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rateBucket))

		var siblings []domain.BillingRate
		err := bucket.ForEach(func(k, v []byte) error {
			var r domain.BillingRate
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling rate %s: %w", k, err)
			}
			if r.ID == rate.ID || r.DeletedAt != nil || !r.Scope.Equal(rate.Scope) {
				return nil
			}
			siblings = append(siblings, r)
			return nil
		})
		if err != nil {
			return err
		}

		if guard != nil {
			if err := guard(siblings); err != nil {
				return err
			}
		}
		return putJSON(bucket, rate.ID, rate)
	})
}

// GetRate retrieves a rate by ID, including soft-deleted ones
func (b *BoltDB) GetRate(id string) (*domain.BillingRate, error) {
	var rate domain.BillingRate
	err := b.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket([]byte(rateBucket)), id, &rate)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("billing rate", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// ListRates returns every rate of a scope, or of all scopes when scope is nil, including
// soft-deleted history, ordered by scope then effective date
func (b *BoltDB) ListRates(scope *domain.RateScope) ([]domain.BillingRate, error) {
	rates := make([]domain.BillingRate, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(rateBucket)).ForEach(func(k, v []byte) error {
			var r domain.BillingRate
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling rate %s: %w", k, err)
			}
			if scope != nil && !r.Scope.Equal(*scope) {
				return nil
			}
			rates = append(rates, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Scope.Key() != rates[j].Scope.Key() {
			return rates[i].Scope.Key() < rates[j].Scope.Key()
		}
		if !rates[i].EffectiveFrom.Equal(rates[j].EffectiveFrom) {
			return rates[i].EffectiveFrom.Before(rates[j].EffectiveFrom)
		}
		return rates[i].CreatedAt.Before(rates[j].CreatedAt)
	})
	return rates, nil
}
