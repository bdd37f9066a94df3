package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/resilience"
	"github.com/kuropos/backend-pos/internal/store"
)

type stubProducts struct {
	searchFn    func(ctx context.Context, q string, limit int) ([]store.Product, error)
	byCodeFn    func(ctx context.Context, code string) (store.Product, error)
	searchCalls int
}

func (s *stubProducts) Search(ctx context.Context, q string, limit int) ([]store.Product, error) {
	s.searchCalls++
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, q, limit)
}

func (s *stubProducts) GetByCode(ctx context.Context, code string) (store.Product, error) {
	if s.byCodeFn == nil {
		return store.Product{}, store.ErrNotFound
	}
	return s.byCodeFn(ctx, code)
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestSearchEmptyQuerySkipsStore(t *testing.T) {
	products := &stubProducts{}
	svc, err := NewService(ServiceConfig{Products: products})
	require.NoError(t, err)

	result, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, result)
	require.Zero(t, products.searchCalls)
}

func TestSearchServesRepeatQueryFromCache(t *testing.T) {
	milk := store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L", BasePrice: 2000}
	products := &stubProducts{
		searchFn: func(context.Context, string, int) ([]store.Product, error) {
			return []store.Product{milk}, nil
		},
	}
	svc, err := NewService(ServiceConfig{Products: products, Cache: newTestCache(t)})
	require.NoError(t, err)

	first, err := svc.Search(context.Background(), "milk")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Search(context.Background(), "MILK")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, products.searchCalls, "second query must be served from cache")
}

func TestResolveExactPrefersCodeMatch(t *testing.T) {
	exact := store.Product{ID: "p1", Code: "8991234", Name: "Milk 1L"}
	products := &stubProducts{
		byCodeFn: func(_ context.Context, code string) (store.Product, error) {
			require.Equal(t, "8991234", code)
			return exact, nil
		},
	}
	svc, err := NewService(ServiceConfig{Products: products})
	require.NoError(t, err)

	p, found, err := svc.ResolveExact(context.Background(), "8991234")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, exact, p)
	require.Zero(t, products.searchCalls, "exact code hit must not trigger substring search")
}

func TestResolveExactFallsBackToSubstring(t *testing.T) {
	first := store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L"}
	second := store.Product{ID: "p2", Code: "MILK2", Name: "Milk UHT"}
	products := &stubProducts{
		searchFn: func(context.Context, string, int) ([]store.Product, error) {
			return []store.Product{first, second}, nil
		},
	}
	svc, err := NewService(ServiceConfig{Products: products})
	require.NoError(t, err)

	p, found, err := svc.ResolveExact(context.Background(), "milk")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, first, p)
}

func TestResolveExactMiss(t *testing.T) {
	svc, err := NewService(ServiceConfig{Products: &stubProducts{}})
	require.NoError(t, err)

	_, found, err := svc.ResolveExact(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestResolveExactStoreFailure(t *testing.T) {
	products := &stubProducts{
		byCodeFn: func(context.Context, string) (store.Product, error) {
			return store.Product{}, errors.New("connection refused")
		},
	}
	svc, err := NewService(ServiceConfig{Products: products})
	require.NoError(t, err)

	_, _, err = svc.ResolveExact(context.Background(), "8991234")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeLookup, appErr.Code)
}

func TestSearchFastFailsWhenBreakerOpen(t *testing.T) {
	products := &stubProducts{
		searchFn: func(context.Context, string, int) ([]store.Product, error) {
			return nil, errors.New("connection refused")
		},
	}
	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	svc, err := NewService(ServiceConfig{Products: products, Breaker: breaker})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Search(ctx, "milk")
	require.Error(t, err)
	_, err = svc.Search(ctx, "milk")
	require.Error(t, err)
	require.Equal(t, 2, products.searchCalls)

	_, err = svc.Search(ctx, "milk")
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, products.searchCalls, "open breaker must not reach the store")
}
