package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string
type OrderStatus string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentPayPal PaymentMethod = "paypal"
)

// Orders are created completed; no pending or failed states are modeled.
const OrderStatusCompleted OrderStatus = "completed"

// DefaultCountry is preselected on the customer form.
const DefaultCountry = "Tunisie"

// Customer holds the buyer details collected during checkout.
type Customer struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"`
}

// PaymentInfo is the payment step input. Card fields are only required for
// card payments and are never stored on the order.
type PaymentInfo struct {
	Method     PaymentMethod `json:"paymentMethod" validate:"required,oneof=card paypal"`
	CardNumber string        `json:"cardNumber" validate:"required_if=Method card"`
	ExpiryDate string        `json:"expiryDate" validate:"required_if=Method card"`
	CVV        string        `json:"cvv" validate:"required_if=Method card"`
	CardName   string        `json:"cardName" validate:"required_if=Method card"`
}

// Order is the immutable record of a completed checkout. Orders are
// append-only.
type Order struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Items    []CartItem      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Customer Customer        `json:"customer"`
	Payment  PaymentMethod   `json:"payment"`
	Status   OrderStatus     `json:"status"`
}

// Lists reports whether the order contains productID.
func (o *Order) Lists(productID int) bool {
	for _, it := range o.Items {
		if it.Product.ID == productID {
			return true
		}
	}
	return false
}
