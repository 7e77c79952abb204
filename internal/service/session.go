package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
)

// SessionConfig tunes the services a Session creates.
type SessionConfig struct {
	SeedCatalog     bool
	PaymentDelay    time.Duration
	MaxDownloads    int
	DownloadBaseURL string
}

// Session owns the catalog, cart, entitlement and checkout services of one
// storefront session and the store they share.
type Session struct {
	Store        *store.Store
	Catalog      *CatalogService
	Cart         *CartService
	Entitlements *EntitlementService
	Checkout     *CheckoutService
}

// NewSession creates the services and loads their persisted state. Read
// failures leave the affected service at its default and are returned
// joined; the session is usable either way.
func NewSession(ctx context.Context, st *store.Store, notifier sse.Notifier, assets *AssetService, cfg SessionConfig) (*Session, error) {
	catalog := NewCatalogService(st, notifier, assets)
	cart := NewCartService(st, notifier)
	ents := NewEntitlementService(st, notifier, cfg.DownloadBaseURL, cfg.MaxDownloads)
	checkout := NewCheckoutService(st, notifier, cart, ents, cfg.PaymentDelay)

	s := &Session{
		Store:        st,
		Catalog:      catalog,
		Cart:         cart,
		Entitlements: ents,
		Checkout:     checkout,
	}

	err := errors.Join(
		catalog.Load(ctx, cfg.SeedCatalog),
		cart.Load(ctx),
		ents.Load(ctx),
		checkout.Load(ctx),
	)

	// ids held by history must never be handed out again
	for _, o := range checkout.Orders() {
		for _, it := range o.Items {
			catalog.ObserveIDs(it.Product.ID)
		}
	}
	for _, e := range ents.List() {
		catalog.ObserveIDs(e.ProductID)
	}
	for _, it := range cart.Items() {
		catalog.ObserveIDs(it.Product.ID)
	}

	log.Info().
		Int("products", len(catalog.List())).
		Int("cart_items", cart.TotalItems()).
		Int("entitlements", len(ents.List())).
		Int("orders", len(checkout.Orders())).
		Msg("session loaded")
	return s, err
}

// NewCheckout starts a checkout flow over the session cart.
func (s *Session) NewCheckout() *Checkout {
	return NewCheckout(s.Checkout, s.Cart)
}

// Flush retries every write that was abandoned earlier. One ledger failing
// does not stop the others.
func (s *Session) Flush(ctx context.Context) error {
	flushers := []func(context.Context) error{
		s.Catalog.Flush,
		s.Cart.Flush,
		s.Entitlements.Flush,
		s.Checkout.Flush,
	}
	errs := make([]error, len(flushers))

	var g errgroup.Group
	for i, flush := range flushers {
		g.Go(func() error {
			errs[i] = flush(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close waits for scheduled orders, then makes a final flush.
func (s *Session) Close(ctx context.Context) error {
	if err := s.Checkout.WaitPending(ctx); err != nil {
		log.Warn().Err(err).Msg("closing with orders still pending")
	}
	return s.Flush(ctx)
}
