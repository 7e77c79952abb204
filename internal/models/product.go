package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category enumerates the product categories offered by the store.
type Category string

const (
	CategoryCourse        Category = "cours"
	CategoryEbook         Category = "ebook"
	CategoryCertification Category = "certification"
	CategorySubscription  Category = "abonnement"
	CategoryTemplate      Category = "template"
	CategoryAudio         Category = "audio"
	CategorySoftware      Category = "logiciel"
)

// BadgeNew is stamped on every product added through the catalog.
const BadgeNew = "Nouveau"

// Product represents a sellable digital product.
// Only CatalogService mutates products.
type Product struct {
	ID              int              `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	Category        Category         `json:"category"`
	Rating          float64          `json:"rating"`
	ReviewCount     int              `json:"reviewCount"`
	Image           string           `json:"image"`
	Badge           string           `json:"badge,omitempty"`
	Author          string           `json:"author"`
	SellerEmail     string           `json:"sellerEmail,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	ProductFile     string           `json:"productFile,omitempty"`
	ProductFileName string           `json:"productFileName,omitempty"`
}

// ProductDraft is the seller input for a new product. The catalog assigns id,
// rating, review count, creation time and badge.
type ProductDraft struct {
	Title           string           `json:"title" validate:"required"`
	Description     string           `json:"description" validate:"required"`
	Price           decimal.Decimal  `json:"price"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	Category        Category         `json:"category" validate:"required,oneof=cours ebook certification abonnement template audio logiciel"`
	Image           string           `json:"image" validate:"required"`
	Author          string           `json:"author" validate:"required"`
	SellerEmail     string           `json:"sellerEmail,omitempty" validate:"omitempty,email"`
	ProductFile     string           `json:"productFile,omitempty"`
	ProductFileName string           `json:"productFileName,omitempty"`

	// Payload holds raw file bytes to be stored before the product is saved.
	Payload            []byte `json:"-"`
	PayloadContentType string `json:"-"`
}

// ProductUpdate carries a partial update; nil fields are left untouched.
type ProductUpdate struct {
	Title           *string          `json:"title,omitempty" validate:"omitempty,min=1"`
	Description     *string          `json:"description,omitempty" validate:"omitempty,min=1"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	Category        *Category        `json:"category,omitempty" validate:"omitempty,oneof=cours ebook certification abonnement template audio logiciel"`
	Rating          *float64         `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewCount     *int             `json:"reviewCount,omitempty" validate:"omitempty,gte=0"`
	Image           *string          `json:"image,omitempty" validate:"omitempty,min=1"`
	Badge           *string          `json:"badge,omitempty"`
	Author          *string          `json:"author,omitempty" validate:"omitempty,min=1"`
	SellerEmail     *string          `json:"sellerEmail,omitempty" validate:"omitempty,email"`
	ProductFile     *string          `json:"productFile,omitempty"`
	ProductFileName *string          `json:"productFileName,omitempty"`
}

// Apply merges the non-nil fields of u into p.
func (u *ProductUpdate) Apply(p *Product) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.OriginalPrice != nil {
		op := *u.OriginalPrice
		p.OriginalPrice = &op
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Rating != nil {
		p.Rating = *u.Rating
	}
	if u.ReviewCount != nil {
		p.ReviewCount = *u.ReviewCount
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Badge != nil {
		p.Badge = *u.Badge
	}
	if u.Author != nil {
		p.Author = *u.Author
	}
	if u.SellerEmail != nil {
		p.SellerEmail = *u.SellerEmail
	}
	if u.ProductFile != nil {
		p.ProductFile = *u.ProductFile
	}
	if u.ProductFileName != nil {
		p.ProductFileName = *u.ProductFileName
	}
}
