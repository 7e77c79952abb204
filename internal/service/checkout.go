package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/utils"
)

// CheckoutStep is a stage of the checkout flow. Steps only move forward.
type CheckoutStep string

const (
	StepCollecting CheckoutStep = "collecting"
	StepReviewing  CheckoutStep = "reviewing"
	StepProcessing CheckoutStep = "processing"
	StepCompleted  CheckoutStep = "completed"
)

// Checkout walks one purchase through customer details, payment review and
// submission of the current cart.
type Checkout struct {
	mu       sync.Mutex
	svc      *CheckoutService
	cart     *CartService
	step     CheckoutStep
	customer *models.Customer
	payment  models.PaymentInfo
	pending  *PendingOrder
}

// NewCheckout starts a checkout flow in the collecting step.
func NewCheckout(svc *CheckoutService, cart *CartService) *Checkout {
	return &Checkout{svc: svc, cart: cart, step: StepCollecting}
}

// Step returns the current step.
func (c *Checkout) Step() CheckoutStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepLocked()
}

func (c *Checkout) stepLocked() CheckoutStep {
	if c.step == StepProcessing {
		select {
		case <-c.pending.Done():
			c.step = StepCompleted
		default:
		}
	}
	return c.step
}

// SetCustomer validates and records the buyer details. An empty country
// takes the store default.
func (c *Checkout) SetCustomer(customer models.Customer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepCollecting {
		return fmt.Errorf("%w: customer details are fixed once %s", utils.ErrInvalidStep, c.step)
	}
	if customer.Country == "" {
		customer.Country = models.DefaultCountry
	}
	if err := utils.Validate(customer); err != nil {
		return err
	}
	c.customer = &customer
	return nil
}

// Review validates the payment details and the terms acceptance and moves
// the flow to reviewing.
func (c *Checkout) Review(payment models.PaymentInfo, acceptTerms bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepCollecting {
		return fmt.Errorf("%w: cannot review while %s", utils.ErrInvalidStep, c.step)
	}
	if c.customer == nil {
		return fmt.Errorf("%w: customer details missing", utils.ErrInvalidStep)
	}
	if err := utils.Validate(payment); err != nil {
		return err
	}
	if !acceptTerms {
		return utils.NewValidationError("acceptTerms", "must be accepted")
	}
	c.payment = payment
	c.step = StepReviewing
	return nil
}

// Submit places the order for the current cart contents. On a validation
// failure the flow stays in reviewing.
func (c *Checkout) Submit(ctx context.Context) (*PendingOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepReviewing {
		return nil, fmt.Errorf("%w: cannot submit while %s", utils.ErrInvalidStep, c.step)
	}
	p, err := c.svc.Submit(ctx, c.cart.Snapshot(), *c.customer, c.payment)
	if err != nil {
		return nil, err
	}
	c.pending = p
	c.step = StepProcessing
	return p, nil
}

// Pending returns the submitted order, or nil before submission.
func (c *Checkout) Pending() *PendingOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
