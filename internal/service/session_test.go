package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

func testSessionConfig() SessionConfig {
	return SessionConfig{
		SeedCatalog:     true,
		PaymentDelay:    5 * time.Millisecond,
		MaxDownloads:    10,
		DownloadBaseURL: testBaseURL,
	}
}

func TestSessionPurchaseSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	st := store.New(backend, store.DefaultOptions())

	sess, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	require.Len(t, sess.Catalog.List(), 9)

	product, err := sess.Catalog.Get(4)
	require.NoError(t, err)
	require.NoError(t, sess.Cart.Add(ctx, product, 1))

	co := sess.NewCheckout()
	require.NoError(t, co.SetCustomer(validCustomer()))
	require.NoError(t, co.Review(models.PaymentInfo{Method: models.PaymentPayPal}, true))
	p, err := co.Submit(ctx)
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Close(closeCtx))

	restarted, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	assert.True(t, restarted.Entitlements.IsOwned(4))
	order, err := restarted.Checkout.Order(p.ID)
	require.NoError(t, err)
	assert.True(t, order.Lists(4))
	assert.Zero(t, restarted.Cart.TotalItems())
}

func TestSessionObservesReferencedIDs(t *testing.T) {
	ctx := context.Background()
	st := store.New(newFlakyBackend(), store.DefaultOptions())

	require.NoError(t, store.WriteList(ctx, st, store.KeyEntitlements, []models.Entitlement{
		{ProductID: 31, OrderID: "legacy001", MaxDownloads: 10},
	}))
	require.NoError(t, store.WriteList(ctx, st, store.KeyOrders, []models.Order{
		{ID: "legacy002", Items: []models.CartItem{{Product: testProduct(57, "1.00"), Quantity: 1}}},
	}))

	sess, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)

	p, err := sess.Catalog.Add(ctx, models.ProductDraft{
		Title:       "Pack",
		Description: "Sons",
		Price:       testProduct(0, "9.99").Price,
		Category:    models.CategoryAudio,
		Image:       "https://example.com/a.png",
		Author:      "Lina",
	})
	require.NoError(t, err)
	assert.Equal(t, 58, p.ID)
}

func TestSessionRemovedIDStaysRetiredAcrossRestart(t *testing.T) {
	ctx := context.Background()
	st := store.New(newFlakyBackend(), store.DefaultOptions())
	draft := func(title, price string) models.ProductDraft {
		return models.ProductDraft{
			Title:       title,
			Description: "Pack",
			Price:       testProduct(0, price).Price,
			Category:    models.CategoryTemplate,
			Image:       "https://example.com/p.png",
			Author:      "Lina",
		}
	}

	sess, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	old, err := sess.Catalog.Add(ctx, draft("Old", "99"))
	require.NoError(t, err)
	require.Equal(t, 10, old.ID)
	require.NoError(t, sess.Cart.Add(ctx, old, 1))
	require.NoError(t, sess.Catalog.Remove(ctx, old.ID))

	restarted, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	fresh, err := restarted.Catalog.Add(ctx, draft("New", "1"))
	require.NoError(t, err)
	assert.Equal(t, 11, fresh.ID)

	require.NoError(t, restarted.Cart.Add(ctx, fresh, 1))
	items := restarted.Cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Old", items[0].Product.Title)
	assert.Equal(t, "New", items[1].Product.Title)
}

func TestSessionRetiresRemovedSeedID(t *testing.T) {
	ctx := context.Background()
	st := store.New(newFlakyBackend(), store.DefaultOptions())

	sess, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	require.NoError(t, sess.Catalog.Remove(ctx, 9))

	restarted, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)
	require.Len(t, restarted.Catalog.List(), 8)
	p, err := restarted.Catalog.Add(ctx, models.ProductDraft{
		Title:       "Pack",
		Description: "Sons",
		Price:       testProduct(0, "4.99").Price,
		Category:    models.CategoryAudio,
		Image:       "https://example.com/a.png",
		Author:      "Lina",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.ID)
}

func TestSessionFlushRetriesAbandonedWrites(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	st := store.New(backend, store.DefaultOptions())
	sess, err := NewSession(ctx, st, nil, nil, testSessionConfig())
	require.NoError(t, err)

	backend.setFailAll(true)
	err = sess.Cart.Add(ctx, testProduct(1, "10.00"), 1)
	require.True(t, utils.IsWarning(err))
	_, err = sess.Entitlements.Grant(ctx, 2, "order0005")
	require.True(t, utils.IsWarning(err))

	err = sess.Flush(ctx)
	assert.True(t, utils.IsWarning(err))

	backend.heal()
	require.NoError(t, sess.Flush(ctx))

	items, err := store.ReadList[models.CartItem](ctx, st, store.KeyCart)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	ents, err := store.ReadList[models.Entitlement](ctx, st, store.KeyEntitlements)
	require.NoError(t, err)
	assert.Len(t, ents, 1)
}

func TestSessionEmitsEvents(t *testing.T) {
	ctx := context.Background()
	hub := sse.NewHub()
	client := hub.Register("ui")
	st := store.New(newFlakyBackend(), store.DefaultOptions())

	sess, err := NewSession(ctx, st, sse.NewHubNotifier(hub), nil, testSessionConfig())
	require.NoError(t, err)
	require.NoError(t, sess.Cart.Add(ctx, testProduct(1, "10.00"), 1))

	select {
	case msg := <-client.Events:
		assert.Equal(t, sse.EventCartChanged, msg.Event)
	case <-time.After(time.Second):
		t.Fatal("no cart event")
	}
}
