package models

// SortOrder selects how browsed products are ordered.
type SortOrder string

const (
	SortPopular   SortOrder = "popular"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// CategoryAll disables the category filter.
const CategoryAll Category = "all"

// CatalogQuery filters and orders the catalog for browsing. Zero values mean
// every category, no search and popularity order.
type CatalogQuery struct {
	Category Category  `form:"category"`
	Search   string    `form:"search"`
	Sort     SortOrder `form:"sort"`
}

// CatalogMeta is persisted next to the catalog. HighWater is the largest
// product id ever handed out, so ids of removed products stay retired.
type CatalogMeta struct {
	HighWater int `json:"highWater"`
}
