package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

// CartService holds the cart lines of the session, at most one per product.
type CartService struct {
	mu       sync.RWMutex
	store    *store.Store
	notifier sse.Notifier
	items    []models.CartItem
	dirty    bool
	now      func() time.Time
}

// NewCartService constructs an empty CartService.
func NewCartService(st *store.Store, notifier sse.Notifier) *CartService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	return &CartService{store: st, notifier: notifier, now: time.Now}
}

// Load reads the persisted cart. A malformed record yields an empty cart.
func (s *CartService) Load(ctx context.Context) error {
	items, err := store.ReadList[models.CartItem](ctx, s.store, store.KeyCart)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mre *utils.MalformedRecordError
	switch {
	case errors.As(err, &mre):
		log.Warn().Err(err).Msg("cart record malformed, starting empty")
		err = nil
	case err != nil:
		log.Error().Err(err).Msg("failed to read cart, starting empty")
	}
	s.items, s.dirty = sanitizeCart(items)
	return err
}

// sanitizeCart drops stored lines that break the cart rules: a non-positive
// product id or quantity, or a second line for the same product. changed
// reports whether anything was dropped.
func sanitizeCart(items []models.CartItem) (out []models.CartItem, changed bool) {
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Product.ID <= 0 || it.Quantity < 1 || seen[it.Product.ID] {
			log.Warn().Int("product_id", it.Product.ID).Int("quantity", it.Quantity).Msg("dropping invalid stored cart line")
			changed = true
			continue
		}
		seen[it.Product.ID] = true
		out = append(out, it)
	}
	return out, changed
}

// Add puts quantity units of product in the cart, adding to an existing line.
func (s *CartService) Add(ctx context.Context, product models.Product, quantity int) error {
	if quantity < 1 {
		return utils.NewValidationError("quantity", "must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(product.ID); i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		s.items = append(s.items, models.CartItem{Product: product, Quantity: quantity, AddedAt: s.now()})
	}
	log.Debug().Int("product_id", product.ID).Int("quantity", quantity).Msg("added to cart")
	return s.commitLocked(ctx)
}

// Remove drops the line for productID. Missing lines are ignored.
func (s *CartService) Remove(ctx context.Context, productID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, productID)
}

// SetQuantity overwrites the quantity of an existing line. quantity <= 0
// removes it.
func (s *CartService) SetQuantity(ctx context.Context, productID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.removeLocked(ctx, productID)
	}
	i := s.indexLocked(productID)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = quantity
	return s.commitLocked(ctx)
}

// Clear empties the cart and removes its persisted record.
func (s *CartService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	var warn error
	if err := s.store.Clear(ctx, store.KeyCart); err != nil {
		log.Warn().Err(err).Msg("failed to clear cart record")
		warn = &utils.PersistenceWarning{Key: store.KeyCart, Err: err}
	}
	s.dirty = warn != nil
	s.notifier.NotifyCartChanged(models.NewCartSnapshot(nil))
	return warn
}

// TotalPrice returns the sum of price x quantity.
func (s *CartService) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// TotalItems returns the number of units in the cart.
func (s *CartService) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Contains reports whether productID has a line in the cart.
func (s *CartService) Contains(productID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(productID) >= 0
}

// Items returns a copy of the cart lines.
func (s *CartService) Items() []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Snapshot captures the cart for checkout.
func (s *CartService) Snapshot() models.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.NewCartSnapshot(s.items)
}

// Flush rewrites the cart if an earlier write was abandoned.
func (s *CartService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if len(s.items) == 0 {
		if err := s.store.Clear(ctx, store.KeyCart); err != nil {
			return &utils.PersistenceWarning{Key: store.KeyCart, Err: err}
		}
		s.dirty = false
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *CartService) removeLocked(ctx context.Context, productID int) error {
	i := s.indexLocked(productID)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return s.commitLocked(ctx)
}

func (s *CartService) indexLocked(productID int) int {
	for i, it := range s.items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

// commitLocked persists the cart and notifies listeners.
func (s *CartService) commitLocked(ctx context.Context) error {
	err := s.persistLocked(ctx)
	s.notifier.NotifyCartChanged(models.NewCartSnapshot(s.items))
	return err
}

func (s *CartService) persistLocked(ctx context.Context) error {
	err := store.WriteList(ctx, s.store, store.KeyCart, s.items)
	s.dirty = err != nil
	return err
}
