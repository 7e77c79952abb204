package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one cart line. Quantity is always >= 1.
type CartItem struct {
	Product  Product   `json:"product"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

// Subtotal returns price x quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSnapshot is an immutable copy of the cart taken at checkout time.
type CartSnapshot struct {
	Items      []CartItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// NewCartSnapshot copies items and computes their total.
func NewCartSnapshot(items []CartItem) CartSnapshot {
	copied := make([]CartItem, len(items))
	copy(copied, items)
	total := decimal.Zero
	for _, it := range copied {
		total = total.Add(it.Subtotal())
	}
	return CartSnapshot{Items: copied, Total: total, CapturedAt: time.Now()}
}

// IsEmpty reports whether the snapshot holds no items.
func (s CartSnapshot) IsEmpty() bool { return len(s.Items) == 0 }
