package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/service"
	"github.com/GTDGit/digistore/internal/utils"
)

// maxOrderWait caps the ?wait= long-poll on GET /v1/orders/:id.
const maxOrderWait = 10 * time.Second

// CheckoutHandler handles checkout and order HTTP endpoints.
type CheckoutHandler struct {
	session *service.Session
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(session *service.Session) *CheckoutHandler {
	return &CheckoutHandler{session: session}
}

// CheckoutRequest is the body of POST /v1/checkout.
type CheckoutRequest struct {
	Customer    models.Customer    `json:"customer"`
	Payment     models.PaymentInfo `json:"payment"`
	AcceptTerms bool               `json:"acceptTerms"`
}

// PendingView describes an order still in payment processing.
type PendingView struct {
	OrderID     string               `json:"orderId"`
	Step        service.CheckoutStep `json:"step"`
	SubmittedAt time.Time            `json:"submittedAt"`
}

// Checkout handles POST /v1/checkout. The order is accepted for processing
// and completes after the payment delay.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	co := h.session.NewCheckout()
	if err := co.SetCustomer(req.Customer); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	if err := co.Review(req.Payment, req.AcceptTerms); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	p, err := co.Submit(c.Request.Context())
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.Success(c, http.StatusAccepted, "Order accepted for processing", PendingView{
		OrderID:     p.ID,
		Step:        co.Step(),
		SubmittedAt: p.SubmittedAt,
	})
}

// ListOrders handles GET /v1/orders
func (h *CheckoutHandler) ListOrders(c *gin.Context) {
	orders := h.session.Checkout.Orders()
	if orders == nil {
		orders = []models.Order{}
	}
	utils.Success(c, http.StatusOK, "Orders retrieved", orders)
}

// GetOrder handles GET /v1/orders/:id?wait=5s. A pending order answers 202
// unless it completes within the optional wait.
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	id := c.Param("id")

	if p, ok := h.session.Checkout.Pending(id); ok {
		wait, err := parseWait(c.Query("wait"))
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "INVALID_QUERY", "wait must be a duration such as 3s")
			return
		}
		if wait <= 0 {
			writePending(c, p)
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		order, err := p.Wait(ctx)
		if err != nil && !utils.IsWarning(err) {
			writePending(c, p)
			return
		}
		utils.Respond(c, http.StatusOK, "Order retrieved", order, err)
		return
	}

	order, err := h.session.Checkout.Order(id)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Order retrieved", order)
}

func writePending(c *gin.Context, p *service.PendingOrder) {
	utils.Success(c, http.StatusAccepted, "Order is processing", PendingView{
		OrderID:     p.ID,
		Step:        service.StepProcessing,
		SubmittedAt: p.SubmittedAt,
	})
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d > maxOrderWait {
		d = maxOrderWait
	}
	return d, nil
}
