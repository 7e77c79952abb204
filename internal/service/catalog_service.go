package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

// Catalog change actions carried by notifications.
const (
	CatalogAdded   = "added"
	CatalogUpdated = "updated"
	CatalogRemoved = "removed"
)

// CatalogService owns the product list. It is the only writer of products.
type CatalogService struct {
	mu        sync.RWMutex
	store     *store.Store
	notifier  sse.Notifier
	assets    *AssetService
	products  []models.Product
	highWater int
	dirty     bool
	now       func() time.Time

	// savedHighWater is the mark last written to the catalog-meta record.
	savedHighWater int
}

// NewCatalogService constructs an empty CatalogService. assets may be nil, in
// which case draft payloads are rejected.
func NewCatalogService(st *store.Store, notifier sse.Notifier, assets *AssetService) *CatalogService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	return &CatalogService{store: st, notifier: notifier, assets: assets, now: time.Now}
}

// Load reads the persisted catalog. An absent or malformed record yields the
// default products when seed is set, held in memory only. A backend read
// failure also falls back and is returned.
func (s *CatalogService) Load(ctx context.Context, seed bool) error {
	products, err := store.ReadList[models.Product](ctx, s.store, store.KeyCatalog)
	meta, _, metaErr := store.ReadValue[models.CatalogMeta](ctx, s.store, store.KeyCatalogMeta)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mre *utils.MalformedRecordError
	switch {
	case errors.As(err, &mre):
		log.Warn().Err(err).Msg("catalog record malformed, using defaults")
		err = nil
	case err != nil:
		log.Error().Err(err).Msg("failed to read catalog, using defaults")
	}
	switch {
	case errors.As(metaErr, &mre):
		log.Warn().Err(metaErr).Msg("catalog meta record malformed, deriving ids from products")
		metaErr = nil
	case metaErr != nil:
		log.Error().Err(metaErr).Msg("failed to read catalog meta, deriving ids from products")
	}
	if products == nil && seed {
		products = DefaultProducts()
	}
	s.products = products
	s.dirty = false
	s.savedHighWater = meta.HighWater
	s.observeLocked(meta.HighWater)
	for _, p := range products {
		s.observeLocked(p.ID)
	}
	log.Info().Int("count", len(products)).Int("high_water", s.highWater).Msg("catalog loaded")
	return errors.Join(err, metaErr)
}

// ObserveIDs records product ids referenced elsewhere so they are never
// assigned to new products.
func (s *CatalogService) ObserveIDs(ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.observeLocked(id)
	}
}

func (s *CatalogService) observeLocked(id int) {
	if id > s.highWater {
		s.highWater = id
	}
}

// List returns the products in insertion order.
func (s *CatalogService) List() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get returns the product with id.
func (s *CatalogService) Get(id int) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.products[i], nil
	}
	return models.Product{}, fmt.Errorf("product %d: %w", id, utils.ErrNotFound)
}

// Add validates draft and appends it as a new product with the next id. A
// non-nil error alongside a valid product is a persistence warning.
func (s *CatalogService) Add(ctx context.Context, draft models.ProductDraft) (models.Product, error) {
	if err := utils.Validate(draft); err != nil {
		return models.Product{}, err
	}
	if !draft.Price.IsPositive() {
		return models.Product{}, utils.NewValidationError("price", "must be positive")
	}
	if draft.OriginalPrice != nil && draft.OriginalPrice.IsNegative() {
		return models.Product{}, utils.NewValidationError("originalPrice", "must be >= 0")
	}

	if len(draft.Payload) > 0 && s.assets == nil {
		return models.Product{}, utils.NewValidationError("productFile", "uploads are not configured")
	}

	// The id is reserved before the upload so readers are not blocked by it.
	s.mu.Lock()
	id := s.nextIDLocked()
	s.observeLocked(id)
	s.mu.Unlock()

	file := draft.ProductFile
	if len(draft.Payload) > 0 {
		ref, err := s.assets.Store(ctx, id, draft.ProductFileName, draft.Payload, draft.PayloadContentType)
		if err != nil {
			return models.Product{}, err
		}
		file = ref
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Product{
		ID:              id,
		Title:           draft.Title,
		Description:     draft.Description,
		Price:           draft.Price,
		OriginalPrice:   draft.OriginalPrice,
		Category:        draft.Category,
		Image:           draft.Image,
		Badge:           models.BadgeNew,
		Author:          draft.Author,
		SellerEmail:     draft.SellerEmail,
		CreatedAt:       s.now(),
		ProductFile:     file,
		ProductFileName: draft.ProductFileName,
	}
	s.products = append(s.products, p)

	log.Info().Int("product_id", id).Str("title", p.Title).Str("category", string(p.Category)).Msg("product added")
	err := s.persistLocked(ctx)
	s.notifier.NotifyCatalogChanged(CatalogAdded, id)
	return p, err
}

// Update merges the non-nil fields of upd into the product with id.
func (s *CatalogService) Update(ctx context.Context, id int, upd models.ProductUpdate) (models.Product, error) {
	if err := utils.Validate(upd); err != nil {
		return models.Product{}, err
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return models.Product{}, utils.NewValidationError("price", "must be >= 0")
	}
	if upd.OriginalPrice != nil && upd.OriginalPrice.IsNegative() {
		return models.Product{}, utils.NewValidationError("originalPrice", "must be >= 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Product{}, fmt.Errorf("product %d: %w", id, utils.ErrNotFound)
	}
	upd.Apply(&s.products[i])
	p := s.products[i]

	log.Info().Int("product_id", id).Msg("product updated")
	err := s.persistLocked(ctx)
	s.notifier.NotifyCatalogChanged(CatalogUpdated, id)
	return p, err
}

// Remove deletes the product with id. Carts, orders and entitlements that
// reference it are left as they are.
func (s *CatalogService) Remove(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("product %d: %w", id, utils.ErrNotFound)
	}
	s.products = append(s.products[:i:i], s.products[i+1:]...)

	log.Info().Int("product_id", id).Msg("product removed")
	err := s.persistLocked(ctx)
	s.notifier.NotifyCatalogChanged(CatalogRemoved, id)
	return err
}

// Browse filters and sorts the catalog for the storefront.
func (s *CatalogService) Browse(q models.CatalogQuery) []models.Product {
	all := s.List()
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := all[:0]
	for _, p := range all {
		if q.Category != "" && q.Category != models.CategoryAll && p.Category != q.Category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case models.SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case models.SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case models.SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case models.SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReviewCount > out[j].ReviewCount })
	}
	return out
}

// Flush rewrites the catalog if an earlier write was abandoned.
func (s *CatalogService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *CatalogService) nextIDLocked() int {
	highest := s.highWater
	for _, p := range s.products {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest + 1
}

func (s *CatalogService) indexLocked(id int) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the catalog and, when it has grown, the id mark.
func (s *CatalogService) persistLocked(ctx context.Context) error {
	err := store.WriteList(ctx, s.store, store.KeyCatalog, s.products)
	if s.highWater > s.savedHighWater {
		mark := s.highWater
		if merr := store.WriteValue(ctx, s.store, store.KeyCatalogMeta, models.CatalogMeta{HighWater: mark}); merr != nil {
			err = errors.Join(err, merr)
		} else {
			s.savedHighWater = mark
		}
	}
	s.dirty = err != nil
	return err
}
