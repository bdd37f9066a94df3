package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/store"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func testProduct() store.Product {
	return store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L", BasePrice: 1000, IsActive: true}
}

func TestAddOrIncrement(t *testing.T) {
	c := New("c1")
	state := c.AddOrIncrement(testProduct())
	require.Len(t, state.Lines, 1)
	require.Equal(t, float64(1), state.Lines[0].Quantity)
	require.Equal(t, int64(1000), state.Lines[0].LineTotal)

	state = c.AddOrIncrement(testProduct())
	require.Len(t, state.Lines, 1, "same product must merge into one line")
	require.Equal(t, float64(2), state.Lines[0].Quantity)
	require.Equal(t, int64(2000), state.Lines[0].LineTotal)

	require.Equal(t, int64(2000), state.Summary.Subtotal)
	require.Equal(t, int64(300), state.Summary.Tax)
	require.Equal(t, int64(2300), state.Summary.Total)
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(store.Product{ID: "p1", Code: "A", BasePrice: 100})
	c.AddOrIncrement(store.Product{ID: "p2", Code: "B", BasePrice: 200})
	state := c.AddOrIncrement(store.Product{ID: "p1", Code: "A", BasePrice: 100})

	require.Equal(t, "p1", state.Lines[0].ProductID)
	require.Equal(t, "p2", state.Lines[1].ProductID)
}

func TestSetQuantityRejectsNonPositive(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(testProduct())

	state, err := c.SetQuantity("p1", 0)
	require.NoError(t, err)
	require.Equal(t, float64(1), state.Lines[0].Quantity, "rejected edit must not mutate the line")
	require.NotEmpty(t, state.Warning)
}

func TestSetQuantityFloorsWholeUnitProducts(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(testProduct())

	state, err := c.SetQuantity("p1", 2.7)
	require.NoError(t, err)
	require.Equal(t, float64(2), state.Lines[0].Quantity)
	require.Equal(t, int64(2000), state.Lines[0].LineTotal)
	require.NotEmpty(t, state.Warning)
}

func TestSetQuantityKeepsFractionForDecimalProducts(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(store.Product{ID: "p1", Code: "RICE", BasePrice: 1000, AllowDecimalQuantity: true})

	state, err := c.SetQuantity("p1", 2.5)
	require.NoError(t, err)
	require.Equal(t, 2.5, state.Lines[0].Quantity)
	require.Equal(t, int64(2500), state.Lines[0].LineTotal)
	require.Empty(t, state.Warning)
}

func TestWarningCooldown(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := New("c1")
	c.SetNow(fixedClock(&at))
	c.AddOrIncrement(testProduct())

	state, err := c.SetQuantity("p1", 2.5)
	require.NoError(t, err)
	require.NotEmpty(t, state.Warning)

	at = at.Add(300 * time.Millisecond)
	state, err = c.SetQuantity("p1", 3.5)
	require.NoError(t, err)
	require.Empty(t, state.Warning, "warning inside the cooldown window must be suppressed")
	require.Equal(t, float64(3), state.Lines[0].Quantity, "the floor still applies while the warning is throttled")

	at = at.Add(1100 * time.Millisecond)
	state, err = c.SetQuantity("p1", 4.5)
	require.NoError(t, err)
	require.NotEmpty(t, state.Warning)
}

func TestSetLineTotalBackComputesQuantity(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(store.Product{ID: "p1", Code: "RICE", BasePrice: 500, AllowDecimalQuantity: true})

	state, err := c.SetLineTotal("p1", 1250)
	require.NoError(t, err)
	require.Equal(t, 2.5, state.Lines[0].Quantity)
	require.Equal(t, int64(1250), state.Lines[0].LineTotal)
}

func TestSetLineTotalFloorsWholeUnitProducts(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(testProduct())

	state, err := c.SetLineTotal("p1", 2500)
	require.NoError(t, err)
	require.Equal(t, float64(2), state.Lines[0].Quantity)
	require.Equal(t, int64(2000), state.Lines[0].LineTotal)
	require.NotEmpty(t, state.Warning)
}

func TestSetLineTotalRejectsNonPositive(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(testProduct())

	state, err := c.SetLineTotal("p1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1000), state.Lines[0].LineTotal)
	require.NotEmpty(t, state.Warning)
}

func TestRemoveAndClear(t *testing.T) {
	c := New("c1")
	c.AddOrIncrement(testProduct())
	c.AddOrIncrement(store.Product{ID: "p2", Code: "B", BasePrice: 200})

	state, err := c.Remove("p1")
	require.NoError(t, err)
	require.Len(t, state.Lines, 1)

	_, err = c.Remove("p1")
	require.ErrorIs(t, err, ErrLineNotFound)

	state = c.Clear()
	require.Empty(t, state.Lines)
	require.Zero(t, state.Summary.Total)
}

func TestRegistryExpiresIdleCarts(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.SetNow(fixedClock(&at))

	c := r.Create()
	got, ok := r.Get(c.ID())
	require.True(t, ok)
	require.Same(t, c, got)

	at = at.Add(2 * time.Hour)
	_, ok = r.Get(c.ID())
	require.False(t, ok, "idle cart past the TTL must be dropped")
	require.Zero(t, r.Len())
}

func TestRegistrySweep(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.SetNow(fixedClock(&at))

	r.Create()
	r.Create()
	at = at.Add(30 * time.Minute)
	fresh := r.Create()

	at = at.Add(45 * time.Minute)
	removed := r.Sweep()
	require.Equal(t, 2, removed)
	_, ok := r.Get(fresh.ID())
	require.True(t, ok)
}
