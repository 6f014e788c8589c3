package directory

import (
	"context"
	"errors"
	"sync"
)

// Cache memoizes directory lookups for the lifetime of one batch run.
// Tax ids are stable, so entries never expire; drop the Cache when the run
// ends. Company-not-found answers are cached as well. Transport errors are
// not, so a later call retries.
type Cache struct {
	backend Directory

	mu             sync.Mutex
	companies      map[string]companyLookup
	counterparties map[string][]Entry
	roundTrips     int
}

type companyLookup struct {
	ref   CompanyRef
	found bool
}

// NewCache wraps backend. Cache itself satisfies Directory.
func NewCache(backend Directory) *Cache {
	return &Cache{
		backend:        backend,
		companies:      make(map[string]companyLookup),
		counterparties: make(map[string][]Entry),
	}
}

// ResolveCompany returns the cached answer or asks the backend once.
func (c *Cache) ResolveCompany(ctx context.Context, taxID string) (CompanyRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hit, ok := c.companies[taxID]; ok {
		if !hit.found {
			return CompanyRef{}, ErrCompanyNotFound
		}
		return hit.ref, nil
	}

	c.roundTrips++
	ref, err := c.backend.ResolveCompany(ctx, taxID)
	switch {
	case err == nil:
		c.companies[taxID] = companyLookup{ref: ref, found: true}
		return ref, nil
	case errors.Is(err, ErrCompanyNotFound):
		c.companies[taxID] = companyLookup{}
		return CompanyRef{}, err
	default:
		return CompanyRef{}, err
	}
}

// ListCounterparties returns the cached list or asks the backend once.
func (c *Cache) ListCounterparties(ctx context.Context, company CompanyRef) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entries, ok := c.counterparties[company.ID]; ok {
		return entries, nil
	}

	c.roundTrips++
	entries, err := c.backend.ListCounterparties(ctx, company)
	if err != nil {
		return nil, err
	}
	c.counterparties[company.ID] = entries
	return entries, nil
}

// RoundTrips reports how many calls reached the backend.
func (c *Cache) RoundTrips() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTrips
}
