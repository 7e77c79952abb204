package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/service"
	"github.com/GTDGit/digistore/internal/utils"
)

// CartHandler handles shopping cart HTTP endpoints.
type CartHandler struct {
	cart    *service.CartService
	catalog *service.CatalogService
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(cart *service.CartService, catalog *service.CatalogService) *CartHandler {
	return &CartHandler{cart: cart, catalog: catalog}
}

// CartView is the cart as shown to the storefront.
type CartView struct {
	Items      []models.CartItem `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	TotalItems int               `json:"totalItems"`
}

// AddItemRequest is the body of POST /v1/cart/items.
type AddItemRequest struct {
	ProductID int `json:"productId" binding:"required"`
	Quantity  int `json:"quantity"`
}

// SetQuantityRequest is the body of PUT /v1/cart/items/:productId.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *CartHandler) view() CartView {
	items := h.cart.Items()
	if items == nil {
		items = []models.CartItem{}
	}
	return CartView{Items: items, Total: h.cart.TotalPrice(), TotalItems: h.cart.TotalItems()}
}

// GetCart handles GET /v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	utils.Success(c, http.StatusOK, "Cart retrieved", h.view())
}

// AddItem handles POST /v1/cart/items. Quantity defaults to 1.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := h.catalog.Get(req.ProductID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	err = h.cart.Add(c.Request.Context(), p, req.Quantity)
	utils.Respond(c, http.StatusOK, "Item added", h.view(), err)
}

// SetQuantity handles PUT /v1/cart/items/:productId. Zero or less removes the line.
func (h *CartHandler) SetQuantity(c *gin.Context) {
	id, ok := paramID(c, "productId")
	if !ok {
		return
	}
	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	err := h.cart.SetQuantity(c.Request.Context(), id, *req.Quantity)
	utils.Respond(c, http.StatusOK, "Quantity updated", h.view(), err)
}

// RemoveItem handles DELETE /v1/cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := paramID(c, "productId")
	if !ok {
		return
	}
	err := h.cart.Remove(c.Request.Context(), id)
	utils.Respond(c, http.StatusOK, "Item removed", h.view(), err)
}

// ClearCart handles DELETE /v1/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	err := h.cart.Clear(c.Request.Context())
	utils.Respond(c, http.StatusOK, "Cart cleared", h.view(), err)
}
