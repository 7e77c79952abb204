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

// EntitlementService records purchased products and their download
// allowance, at most one entitlement per product.
type EntitlementService struct {
	mu           sync.RWMutex
	store        *store.Store
	notifier     sse.Notifier
	baseURL      string
	maxDownloads int
	ents         []models.Entitlement
	dirty        bool
	now          func() time.Time
}

// NewEntitlementService constructs an empty EntitlementService. Download
// links are issued under baseURL.
func NewEntitlementService(st *store.Store, notifier sse.Notifier, baseURL string, maxDownloads int) *EntitlementService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	if maxDownloads <= 0 {
		maxDownloads = models.DefaultMaxDownloads
	}
	return &EntitlementService{
		store:        st,
		notifier:     notifier,
		baseURL:      baseURL,
		maxDownloads: maxDownloads,
		now:          time.Now,
	}
}

// Load reads the persisted entitlements. A malformed record yields none.
func (s *EntitlementService) Load(ctx context.Context) error {
	ents, err := store.ReadList[models.Entitlement](ctx, s.store, store.KeyEntitlements)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mre *utils.MalformedRecordError
	switch {
	case errors.As(err, &mre):
		log.Warn().Err(err).Msg("entitlement record malformed, starting empty")
		err = nil
	case err != nil:
		log.Error().Err(err).Msg("failed to read entitlements, starting empty")
	}
	s.ents, s.dirty = s.sanitize(ents)
	return err
}

// sanitize repairs stored entitlements so the download rules hold: a missing
// allowance takes the configured one and the count stays within it. Entries
// without a product id are dropped, and for a repeated product the later
// grant wins. changed reports whether anything was altered.
func (s *EntitlementService) sanitize(ents []models.Entitlement) (out []models.Entitlement, changed bool) {
	index := make(map[int]int, len(ents))
	for _, e := range ents {
		if e.ProductID <= 0 {
			log.Warn().Int("product_id", e.ProductID).Msg("dropping stored entitlement without product")
			changed = true
			continue
		}
		if e.MaxDownloads <= 0 {
			e.MaxDownloads = s.maxDownloads
			changed = true
		}
		if e.DownloadCount < 0 {
			e.DownloadCount = 0
			changed = true
		}
		if e.DownloadCount > e.MaxDownloads {
			e.DownloadCount = e.MaxDownloads
			changed = true
		}
		if i, dup := index[e.ProductID]; dup {
			log.Warn().Int("product_id", e.ProductID).Msg("replacing duplicate stored entitlement")
			out[i] = e
			changed = true
			continue
		}
		index[e.ProductID] = len(out)
		out = append(out, e)
	}
	return out, changed
}

// Grant creates or replaces the entitlement for productID with a fresh
// download link and a reset counter.
func (s *EntitlementService) Grant(ctx context.Context, productID int, orderID string) (models.Entitlement, error) {
	if productID <= 0 {
		return models.Entitlement{}, utils.NewValidationError("productId", "must be positive")
	}
	if orderID == "" {
		return models.Entitlement{}, utils.NewValidationError("orderId", "is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ent := models.Entitlement{
		ProductID:    productID,
		PurchaseDate: now,
		OrderID:      orderID,
		DownloadURL:  fmt.Sprintf("%s/product-%d-%d.zip", s.baseURL, productID, now.UnixMilli()),
		MaxDownloads: s.maxDownloads,
	}
	if i := s.indexLocked(productID); i >= 0 {
		log.Info().Int("product_id", productID).Str("order_id", orderID).Str("previous_order_id", s.ents[i].OrderID).Msg("entitlement replaced")
		s.ents[i] = ent
	} else {
		log.Info().Int("product_id", productID).Str("order_id", orderID).Msg("entitlement granted")
		s.ents = append(s.ents, ent)
	}

	err := s.persistLocked(ctx)
	s.notifier.NotifyEntitlementGranted(&ent)
	return ent, err
}

// IsOwned reports whether productID has an entitlement.
func (s *EntitlementService) IsOwned(productID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(productID) >= 0
}

// Get returns the entitlement for productID.
func (s *EntitlementService) Get(productID int) (models.Entitlement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(productID); i >= 0 {
		return s.ents[i], true
	}
	return models.Entitlement{}, false
}

// CanDownload reports whether productID is owned with allowance left.
func (s *EntitlementService) CanDownload(productID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(productID)
	return i >= 0 && s.ents[i].CanDownload()
}

// List returns every entitlement in grant order.
func (s *EntitlementService) List() []models.Entitlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Entitlement, len(s.ents))
	copy(out, s.ents)
	return out
}

// RecordDownload counts one download of productID. It does nothing when the
// product is not owned or the allowance is used up; callers check
// CanDownload first.
func (s *EntitlementService) RecordDownload(ctx context.Context, productID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.recordLocked(ctx, productID)
	return err
}

// Download checks the allowance and records one download. It returns the
// updated entitlement, with a persistence warning if the new count could not
// be saved.
func (s *EntitlementService) Download(ctx context.Context, productID int) (models.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(productID)
	if i < 0 {
		return models.Entitlement{}, fmt.Errorf("product %d: %w", productID, utils.ErrNotOwned)
	}
	if !s.ents[i].CanDownload() {
		return s.ents[i], fmt.Errorf("product %d: %w", productID, utils.ErrDownloadLimit)
	}
	return s.recordLocked(ctx, productID)
}

// Flush rewrites the entitlements if an earlier write was abandoned.
func (s *EntitlementService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *EntitlementService) recordLocked(ctx context.Context, productID int) (models.Entitlement, error) {
	i := s.indexLocked(productID)
	if i < 0 || !s.ents[i].CanDownload() {
		return models.Entitlement{}, nil
	}
	s.ents[i].DownloadCount++
	ent := s.ents[i]
	log.Info().
		Int("product_id", productID).
		Int("download_count", ent.DownloadCount).
		Int("max_downloads", ent.MaxDownloads).
		Msg("download recorded")

	err := s.persistLocked(ctx)
	s.notifier.NotifyDownloadRecorded(&ent)
	return ent, err
}

func (s *EntitlementService) indexLocked(productID int) int {
	for i, e := range s.ents {
		if e.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *EntitlementService) persistLocked(ctx context.Context) error {
	err := store.WriteList(ctx, s.store, store.KeyEntitlements, s.ents)
	s.dirty = err != nil
	return err
}
