package models

import "time"

// DefaultMaxDownloads is the download allowance of a fresh entitlement.
const DefaultMaxDownloads = 10

// Entitlement records that the session owns a product and tracks its
// remaining download allowance. DownloadCount never exceeds MaxDownloads.
type Entitlement struct {
	ProductID     int       `json:"productId"`
	PurchaseDate  time.Time `json:"purchaseDate"`
	OrderID       string    `json:"orderId"`
	DownloadURL   string    `json:"downloadUrl,omitempty"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
}

// CanDownload reports whether the allowance is not yet used up.
func (e Entitlement) CanDownload() bool { return e.DownloadCount < e.MaxDownloads }

// Remaining returns the number of downloads still allowed.
func (e Entitlement) Remaining() int {
	if r := e.MaxDownloads - e.DownloadCount; r > 0 {
		return r
	}
	return 0
}
