package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

func newTestCart(t *testing.T) (*CartService, *flakyBackend, *store.Store) {
	t.Helper()
	backend := newFlakyBackend()
	st := store.New(backend, store.DefaultOptions())
	cart := NewCartService(st, nil)
	require.NoError(t, cart.Load(context.Background()))
	return cart, backend, st
}

func TestCartTotals(t *testing.T) {
	ctx := context.Background()
	cart, _, _ := newTestCart(t)

	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 2))
	require.NoError(t, cart.Add(ctx, testProduct(2, "5.00"), 1))

	assert.True(t, decimal.RequireFromString("25.00").Equal(cart.TotalPrice()))
	assert.Equal(t, 3, cart.TotalItems())
	assert.True(t, cart.Contains(1))
	assert.False(t, cart.Contains(3))
}

func TestCartAddIsAdditive(t *testing.T) {
	ctx := context.Background()
	cart, _, _ := newTestCart(t)

	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 1))
	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 2))

	items := cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestCartAddRejectsNonPositiveQuantity(t *testing.T) {
	cart, backend, _ := newTestCart(t)
	err := cart.Add(context.Background(), testProduct(1, "10.00"), 0)
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Empty(t, cart.Items())
	assert.Zero(t, backend.setCount())
}

func TestCartSetQuantity(t *testing.T) {
	ctx := context.Background()
	cart, backend, _ := newTestCart(t)
	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 1))
	require.NoError(t, cart.Add(ctx, testProduct(2, "4.00"), 1))

	require.NoError(t, cart.SetQuantity(ctx, 1, 5))
	assert.Equal(t, 6, cart.TotalItems())

	require.NoError(t, cart.SetQuantity(ctx, 1, 0))
	assert.False(t, cart.Contains(1))

	require.NoError(t, cart.SetQuantity(ctx, 2, -4))
	assert.Empty(t, cart.Items())

	writes := backend.setCount()
	require.NoError(t, cart.SetQuantity(ctx, 99, 3))
	require.NoError(t, cart.Remove(ctx, 99))
	assert.Equal(t, writes, backend.setCount())
	assert.Empty(t, cart.Items())
}

func TestCartPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	cart, _, st := newTestCart(t)
	require.NoError(t, cart.Add(ctx, testProduct(7, "39.99"), 2))

	reloaded := NewCartService(st, nil)
	require.NoError(t, reloaded.Load(ctx))
	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Product.ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, cart.Items()[0].AddedAt.Equal(items[0].AddedAt))
}

func TestCartClearRemovesRecord(t *testing.T) {
	ctx := context.Background()
	cart, backend, st := newTestCart(t)
	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 1))

	require.NoError(t, cart.Clear(ctx))
	assert.Zero(t, cart.TotalItems())
	assert.True(t, cart.TotalPrice().IsZero())
	_, err := backend.Get(ctx, "digistore-cart")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	items, err := store.ReadList[models.CartItem](ctx, st, store.KeyCart)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartMalformedRecordStartsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	require.NoError(t, backend.MemoryBackend.Set(ctx, "digistore-cart", []byte(`[{"addedAt":"hier"}]`)))

	cart := NewCartService(store.New(backend, store.DefaultOptions()), nil)
	require.NoError(t, cart.Load(ctx))
	assert.Empty(t, cart.Items())
}

func TestCartLoadDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	st := store.New(backend, store.DefaultOptions())
	require.NoError(t, store.WriteList(ctx, st, store.KeyCart, []models.CartItem{
		{Product: testProduct(1, "10.00"), Quantity: 2},
		{Product: testProduct(2, "5.00"), Quantity: 0},
		{Product: testProduct(3, "5.00"), Quantity: -4},
		{Product: testProduct(1, "99.00"), Quantity: 1},
		{Product: testProduct(0, "1.00"), Quantity: 1},
	}))

	cart := NewCartService(st, nil)
	require.NoError(t, cart.Load(ctx))
	items := cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Product.ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("20.00").Equal(cart.TotalPrice()))

	require.NoError(t, cart.Flush(ctx))
	stored, err := store.ReadList[models.CartItem](ctx, st, store.KeyCart)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCartWriteFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	cart, backend, st := newTestCart(t)
	backend.failKey(store.KeyCart)

	err := cart.Add(ctx, testProduct(1, "10.00"), 1)
	require.Error(t, err)
	assert.True(t, utils.IsWarning(err))
	assert.Equal(t, 1, cart.TotalItems())

	backend.heal()
	require.NoError(t, cart.Flush(ctx))
	items, err := store.ReadList[models.CartItem](ctx, st, store.KeyCart)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCartSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	cart, _, _ := newTestCart(t)
	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 2))

	snap := cart.Snapshot()
	require.NoError(t, cart.Add(ctx, testProduct(1, "10.00"), 5))

	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("20").Equal(snap.Total))
}
