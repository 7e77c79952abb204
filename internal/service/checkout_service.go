package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

// DefaultPaymentDelay is the simulated payment processing time.
const DefaultPaymentDelay = 3 * time.Second

// PendingOrder is a submitted order waiting for its simulated payment.
type PendingOrder struct {
	ID          string
	SubmittedAt time.Time

	done  chan struct{}
	order models.Order
	err   error
}

// Done is closed once the order is recorded, its products granted and the
// cart cleared.
func (p *PendingOrder) Done() <-chan struct{} { return p.done }

// Wait blocks until the order completes or ctx ends. The returned error may
// carry persistence warnings for a completed order; see utils.IsWarning.
func (p *PendingOrder) Wait(ctx context.Context) (models.Order, error) {
	select {
	case <-p.done:
		return p.order, p.err
	case <-ctx.Done():
		return models.Order{}, ctx.Err()
	}
}

// CheckoutService turns cart snapshots into orders. Completion runs after
// the payment delay and appends the order, grants every line item and clears
// the cart. Once scheduled a submission cannot be cancelled.
type CheckoutService struct {
	mu         sync.RWMutex
	completeMu sync.Mutex
	wg         sync.WaitGroup

	store    *store.Store
	notifier sse.Notifier
	cart     *CartService
	ents     *EntitlementService
	delay    time.Duration

	orders  []models.Order
	pending map[string]*PendingOrder
	dirty   bool

	now   func() time.Time
	newID func() (string, error)
}

// NewCheckoutService constructs a CheckoutService completing orders after delay.
func NewCheckoutService(st *store.Store, notifier sse.Notifier, cart *CartService, ents *EntitlementService, delay time.Duration) *CheckoutService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	if delay < 0 {
		delay = DefaultPaymentDelay
	}
	return &CheckoutService{
		store:    st,
		notifier: notifier,
		cart:     cart,
		ents:     ents,
		delay:    delay,
		pending:  make(map[string]*PendingOrder),
		now:      time.Now,
		newID:    utils.GenerateOrderID,
	}
}

// Load reads the persisted order history. A malformed record yields none.
func (s *CheckoutService) Load(ctx context.Context) error {
	orders, err := store.ReadList[models.Order](ctx, s.store, store.KeyOrders)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mre *utils.MalformedRecordError
	switch {
	case errors.As(err, &mre):
		log.Warn().Err(err).Msg("order record malformed, starting with no history")
		err = nil
	case err != nil:
		log.Error().Err(err).Msg("failed to read orders, starting with no history")
	}
	s.orders = orders
	s.dirty = false
	return err
}

// Submit validates the checkout input and schedules the order. Nothing is
// written when validation fails.
func (s *CheckoutService) Submit(ctx context.Context, snapshot models.CartSnapshot, customer models.Customer, payment models.PaymentInfo) (*PendingOrder, error) {
	if snapshot.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", utils.ErrValidation, utils.ErrEmptyCart)
	}
	if customer.Country == "" {
		customer.Country = models.DefaultCountry
	}
	if err := utils.Validate(customer); err != nil {
		return nil, err
	}
	if err := utils.Validate(payment); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order id: %w", err)
	}

	items := make([]models.CartItem, len(snapshot.Items))
	copy(items, snapshot.Items)
	order := models.Order{
		ID:       id,
		Items:    items,
		Total:    snapshot.Total,
		Customer: customer,
		Payment:  payment.Method,
		Status:   models.OrderStatusCompleted,
	}
	p := &PendingOrder{ID: id, SubmittedAt: s.now(), done: make(chan struct{})}

	s.mu.Lock()
	s.pending[id] = p
	s.mu.Unlock()

	log.Info().
		Str("order_id", id).
		Int("items", len(items)).
		Str("total", order.Total.StringFixed(2)).
		Str("payment", string(payment.Method)).
		Dur("delay", s.delay).
		Msg("order submitted")

	s.wg.Add(1)
	time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.complete(p, order)
	})
	return p, nil
}

// complete records the order, grants its products and clears the cart.
// Persistence problems are collected as warnings and never undo the order.
func (s *CheckoutService) complete(p *PendingOrder, order models.Order) {
	s.completeMu.Lock()
	defer s.completeMu.Unlock()

	ctx := context.Background()
	order.Date = s.now()

	var warnings []error

	// The order stays pending, and hidden from lookups, until its grants
	// and the cart clear are applied.
	s.mu.Lock()
	s.orders = append(s.orders, order)
	if err := s.persistLocked(ctx); err != nil {
		warnings = append(warnings, err)
	}
	s.mu.Unlock()

	for _, it := range order.Items {
		if _, err := s.ents.Grant(ctx, it.Product.ID, order.ID); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID).Int("product_id", it.Product.ID).Msg("grant not persisted")
			warnings = append(warnings, err)
		}
	}
	if err := s.cart.Clear(ctx); err != nil {
		warnings = append(warnings, err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("total", order.Total.StringFixed(2)).
		Int("warnings", len(warnings)).
		Msg("order completed")
	s.notifier.NotifyOrderCompleted(&order)

	p.order = order
	p.err = errors.Join(warnings...)

	s.mu.Lock()
	delete(s.pending, order.ID)
	s.mu.Unlock()
	close(p.done)
}

// Orders returns the completed order history, oldest first.
func (s *CheckoutService) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if _, inFlight := s.pending[o.ID]; !inFlight {
			out = append(out, o)
		}
	}
	return out
}

// Order returns the completed order with id. An order whose completion is
// still being applied is not found yet; see Pending.
func (s *CheckoutService) Order(id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, inFlight := s.pending[id]; !inFlight {
		for _, o := range s.orders {
			if o.ID == id {
				return o, nil
			}
		}
	}
	return models.Order{}, fmt.Errorf("order %s: %w", id, utils.ErrNotFound)
}

// Pending returns the in-flight submission with id.
func (s *CheckoutService) Pending(id string) (*PendingOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[id]
	return p, ok
}

// WaitPending blocks until every scheduled order has completed or ctx ends.
func (s *CheckoutService) WaitPending(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush rewrites the order history if an earlier write was abandoned.
func (s *CheckoutService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *CheckoutService) persistLocked(ctx context.Context) error {
	err := store.WriteList(ctx, s.store, store.KeyOrders, s.orders)
	s.dirty = err != nil
	return err
}
