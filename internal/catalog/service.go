package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/obs"
	"github.com/kuropos/backend-pos/internal/resilience"
	"github.com/kuropos/backend-pos/internal/store"
)

type productReader interface {
	Search(ctx context.Context, q string, limit int) ([]store.Product, error)
	GetByCode(ctx context.Context, code string) (store.Product, error)
}

// Service resolves operator input to catalog products. It serves both the
// HTTP search endpoint and the scanner session, which consume the same
// two operations: substring search and exact-code resolution.
type Service struct {
	products   productReader
	cache      *Cache
	breaker    *resilience.Breaker
	maxResults int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Products   productReader
	Cache      *Cache
	Breaker    *resilience.Breaker
	MaxResults int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Products == nil {
		return nil, errors.New("catalog: product store is required")
	}
	maxResults := cfg.MaxResults
	if maxResults < 1 {
		maxResults = 10
	}
	return &Service{
		products:   cfg.Products,
		cache:      cfg.Cache,
		breaker:    cfg.Breaker,
		maxResults: maxResults,
	}, nil
}

// searchStore runs the substring query through the breaker, if one is
// configured. A store.ErrNotFound counts as a healthy response.
func (s *Service) searchStore(ctx context.Context, q string) ([]store.Product, error) {
	if s.breaker != nil && !s.breaker.Allow(ctx) {
		return nil, resilience.ErrOpenCircuit
	}
	products, err := s.products.Search(ctx, q, s.maxResults)
	if s.breaker != nil {
		s.breaker.Report(ctx, err == nil || errors.Is(err, store.ErrNotFound))
	}
	return products, err
}

func (s *Service) getByCode(ctx context.Context, code string) (store.Product, error) {
	if s.breaker != nil && !s.breaker.Allow(ctx) {
		return store.Product{}, resilience.ErrOpenCircuit
	}
	p, err := s.products.GetByCode(ctx, code)
	if s.breaker != nil {
		s.breaker.Report(ctx, err == nil || errors.Is(err, store.ErrNotFound))
	}
	return p, err
}

// Search returns active products whose code or name contains q, capped at
// the configured maximum. An empty query returns an empty list without
// touching the store.
func (s *Service) Search(ctx context.Context, q string) ([]store.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []store.Product{}, nil
	}

	key := searchCacheKey(q)
	var cached []store.Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		recordLookup("search", "cache_hit")
		return cached, nil
	}

	products, err := s.searchStore(ctx, q)
	if err != nil {
		recordLookup("search", "error")
		return nil, fmt.Errorf("search products: %w", err)
	}
	if products == nil {
		products = []store.Product{}
	}
	recordLookup("search", "ok")
	_ = s.cache.SetJSON(ctx, key, products)
	return products, nil
}

// ResolveExact maps a complete query to exactly one product: an exact
// (case-insensitive) code match wins, otherwise the first substring hit.
// The boolean reports whether anything matched.
func (s *Service) ResolveExact(ctx context.Context, q string) (store.Product, bool, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return store.Product{}, false, nil
	}

	p, err := s.getByCode(ctx, q)
	if err == nil {
		recordLookup("resolve", "hit")
		return p, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		recordLookup("resolve", "error")
		return store.Product{}, false, lookupError(err)
	}

	matches, err := s.searchStore(ctx, q)
	if err != nil {
		recordLookup("resolve", "error")
		return store.Product{}, false, lookupError(err)
	}
	if len(matches) == 0 {
		recordLookup("resolve", "miss")
		return store.Product{}, false, nil
	}
	recordLookup("resolve", "hit")
	return matches[0], true, nil
}

// InvalidateSearches drops cached search results after a catalog write.
func (s *Service) InvalidateSearches(ctx context.Context) error {
	return s.cache.InvalidatePrefix(ctx, searchCachePrefix)
}

const searchCachePrefix = "catalog:search:"

func searchCacheKey(q string) string {
	return searchCachePrefix + strings.ToLower(q)
}

func lookupError(err error) *common.AppError {
	return common.NewAppError(common.CodeLookup, "product lookup failed", http.StatusServiceUnavailable, err)
}

func recordLookup(kind, result string) {
	if obs.ProductLookupTotal != nil {
		obs.ProductLookupTotal.WithLabelValues(kind, result).Inc()
	}
}
