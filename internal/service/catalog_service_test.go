package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/GTDGit/digistore/internal/config"
	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

type CatalogServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	backend *flakyBackend
	st      *store.Store
	svc     *CatalogService
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceTestSuite))
}

func (s *CatalogServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = newFlakyBackend()
	s.st = store.New(s.backend, store.DefaultOptions())
	s.svc = NewCatalogService(s.st, nil, nil)
	s.Require().NoError(s.svc.Load(s.ctx, true))
}

func (s *CatalogServiceTestSuite) draft() models.ProductDraft {
	return models.ProductDraft{
		Title:       "Guide Go",
		Description: "Concurrence et outillage",
		Price:       decimal.RequireFromString("24.50"),
		Category:    models.CategoryEbook,
		Image:       "https://example.com/go.png",
		Author:      "Nadia",
	}
}

func (s *CatalogServiceTestSuite) TestSeedsDefaultsWithoutWriting() {
	products := s.svc.List()
	s.Len(products, 9)
	s.Equal(1, products[0].ID)
	s.Equal(9, products[8].ID)
	s.Zero(s.backend.setCount())
}

func (s *CatalogServiceTestSuite) TestNoSeedStartsEmpty() {
	svc := NewCatalogService(s.st, nil, nil)
	s.Require().NoError(svc.Load(s.ctx, false))
	s.Empty(svc.List())

	p, err := svc.Add(s.ctx, s.draft())
	s.Require().NoError(err)
	s.Equal(1, p.ID)
}

func (s *CatalogServiceTestSuite) TestMalformedRecordFallsBackToDefaults() {
	s.Require().NoError(s.backend.MemoryBackend.Set(s.ctx, "digistore-catalog", []byte(`{"broken":`)))
	svc := NewCatalogService(s.st, nil, nil)
	s.NoError(svc.Load(s.ctx, true))
	s.Len(svc.List(), 9)
}

func (s *CatalogServiceTestSuite) TestAddAssignsNextIDAndPersists() {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.svc.now = func() time.Time { return fixed }

	p, err := s.svc.Add(s.ctx, s.draft())
	s.Require().NoError(err)
	s.Equal(10, p.ID)
	s.Equal(models.BadgeNew, p.Badge)
	s.Zero(p.Rating)
	s.Zero(p.ReviewCount)
	s.True(fixed.Equal(p.CreatedAt))

	stored, err := store.ReadList[models.Product](s.ctx, s.st, store.KeyCatalog)
	s.Require().NoError(err)
	s.Len(stored, 10)
	s.Equal("Guide Go", stored[9].Title)
}

func (s *CatalogServiceTestSuite) TestAddRejectsInvalidDrafts() {
	noTitle := s.draft()
	noTitle.Title = ""
	freebie := s.draft()
	freebie.Price = decimal.Zero
	badCategory := s.draft()
	badCategory.Category = "video"
	badEmail := s.draft()
	badEmail.SellerEmail = "not-an-email"

	for _, d := range []models.ProductDraft{noTitle, freebie, badCategory, badEmail} {
		_, err := s.svc.Add(s.ctx, d)
		s.ErrorIs(err, utils.ErrValidation)
	}
	s.Len(s.svc.List(), 9)
	s.Zero(s.backend.setCount())
}

func (s *CatalogServiceTestSuite) TestAddInlinesPayload() {
	assets, err := NewAssetService(s.ctx, &config.AssetConfig{MaxInlineBytes: 1024})
	s.Require().NoError(err)
	svc := NewCatalogService(s.st, nil, assets)
	s.Require().NoError(svc.Load(s.ctx, true))

	d := s.draft()
	d.ProductFileName = "guide.txt"
	d.Payload = []byte("hello")
	d.PayloadContentType = "text/plain"

	p, err := svc.Add(s.ctx, d)
	s.Require().NoError(err)
	s.Equal("data:text/plain;base64,aGVsbG8=", p.ProductFile)
	s.Equal("guide.txt", p.ProductFileName)
}

func (s *CatalogServiceTestSuite) TestAddPayloadWithoutAssets() {
	d := s.draft()
	d.Payload = []byte("x")
	_, err := s.svc.Add(s.ctx, d)
	s.ErrorIs(err, utils.ErrValidation)
}

func (s *CatalogServiceTestSuite) TestUpdateMergesFields() {
	title := "Nouveau titre"
	rating := 4.2
	p, err := s.svc.Update(s.ctx, 2, models.ProductUpdate{Title: &title, Rating: &rating})
	s.Require().NoError(err)
	s.Equal("Nouveau titre", p.Title)
	s.Equal(4.2, p.Rating)
	s.Equal("Pierre Martin", p.Author)

	got, err := s.svc.Get(2)
	s.Require().NoError(err)
	s.Equal(p, got)
}

func (s *CatalogServiceTestSuite) TestUploadDoesNotBlockReaders() {
	reached := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(reached)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assets := newAssetService(&config.AssetConfig{Bucket: "files", Region: "eu-west-3", Endpoint: srv.URL}, staticCreds())
	svc := NewCatalogService(s.st, nil, assets)
	s.Require().NoError(svc.Load(s.ctx, true))

	type result struct {
		p   models.Product
		err error
	}
	done := make(chan result, 1)
	go func() {
		d := s.draft()
		d.ProductFileName = "guide.pdf"
		d.Payload = []byte("%PDF")
		p, err := svc.Add(s.ctx, d)
		done <- result{p, err}
	}()

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		s.FailNow("upload never started")
	}

	listed := make(chan int, 1)
	go func() { listed <- len(svc.List()) }()
	select {
	case n := <-listed:
		s.Equal(9, n)
	case <-time.After(time.Second):
		s.Fail("List blocked by upload")
	}

	close(release)
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(10, res.p.ID)
	s.Contains(res.p.ProductFile, "/files/products/10/")
}

func (s *CatalogServiceTestSuite) TestUpdateCannotBlankRequiredFields() {
	empty := ""
	for _, upd := range []models.ProductUpdate{
		{Title: &empty},
		{Description: &empty},
		{Image: &empty},
		{Author: &empty},
	} {
		_, err := s.svc.Update(s.ctx, 1, upd)
		s.ErrorIs(err, utils.ErrValidation)
	}
	p, err := s.svc.Get(1)
	s.Require().NoError(err)
	s.NotEmpty(p.Title)
	s.Zero(s.backend.setCount())
}

func (s *CatalogServiceTestSuite) TestUpdateRejections() {
	_, err := s.svc.Update(s.ctx, 404, models.ProductUpdate{})
	s.ErrorIs(err, utils.ErrNotFound)

	tooHigh := 5.5
	_, err = s.svc.Update(s.ctx, 1, models.ProductUpdate{Rating: &tooHigh})
	s.ErrorIs(err, utils.ErrValidation)

	negative := decimal.RequireFromString("-1")
	_, err = s.svc.Update(s.ctx, 1, models.ProductUpdate{Price: &negative})
	s.ErrorIs(err, utils.ErrValidation)

	reviews := -3
	_, err = s.svc.Update(s.ctx, 1, models.ProductUpdate{ReviewCount: &reviews})
	s.ErrorIs(err, utils.ErrValidation)

	s.Zero(s.backend.setCount())
}

func (s *CatalogServiceTestSuite) TestRemove() {
	s.Require().NoError(s.svc.Remove(s.ctx, 3))
	_, err := s.svc.Get(3)
	s.ErrorIs(err, utils.ErrNotFound)
	s.Len(s.svc.List(), 8)

	s.ErrorIs(s.svc.Remove(s.ctx, 3), utils.ErrNotFound)
}

func (s *CatalogServiceTestSuite) TestRemovedIDIsNeverReused() {
	p, err := s.svc.Add(s.ctx, s.draft())
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Remove(s.ctx, p.ID))

	next, err := s.svc.Add(s.ctx, s.draft())
	s.Require().NoError(err)
	s.Equal(p.ID+1, next.ID)
}

func (s *CatalogServiceTestSuite) TestObservedIDsRaiseNextID() {
	s.svc.ObserveIDs(3, 42, 7)
	p, err := s.svc.Add(s.ctx, s.draft())
	s.Require().NoError(err)
	s.Equal(43, p.ID)
}

func (s *CatalogServiceTestSuite) TestRemoveLeavesDanglingEntitlement() {
	ents := NewEntitlementService(s.st, nil, testBaseURL, 10)
	_, err := ents.Grant(s.ctx, 2, "order0001")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Remove(s.ctx, 2))
	s.True(ents.IsOwned(2))
	s.True(ents.CanDownload(2))
	_, err = s.svc.Get(2)
	s.ErrorIs(err, utils.ErrNotFound)
}

func (s *CatalogServiceTestSuite) TestWriteFailureKeepsMemoryAndFlushes() {
	s.backend.setFailAll(true)
	p, err := s.svc.Add(s.ctx, s.draft())
	s.Require().Error(err)
	s.True(utils.IsWarning(err))
	s.Equal(10, p.ID)
	s.Len(s.svc.List(), 10)

	s.backend.heal()
	s.Require().NoError(s.svc.Flush(s.ctx))
	stored, err := store.ReadList[models.Product](s.ctx, s.st, store.KeyCatalog)
	s.Require().NoError(err)
	s.Len(stored, 10)

	before := s.backend.setCount()
	s.NoError(s.svc.Flush(s.ctx))
	s.Equal(before, s.backend.setCount())
}

func (s *CatalogServiceTestSuite) TestBrowse() {
	ids := func(ps []models.Product) []int {
		out := make([]int, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	s.Equal([]int{6, 1, 8}, ids(s.svc.Browse(models.CatalogQuery{Category: models.CategoryCourse, Sort: models.SortPriceLow})))
	s.Equal([]int{8, 1, 6}, ids(s.svc.Browse(models.CatalogQuery{Category: models.CategoryCourse, Sort: models.SortPriceHigh})))
	s.Equal([]int{9, 4}, ids(s.svc.Browse(models.CatalogQuery{Category: models.CategoryAll, Search: "CERTIFICATION", Sort: models.SortNewest})))
	s.Equal([]int{6}, ids(s.svc.Browse(models.CatalogQuery{Search: "youtube"})))
	s.Equal([]int{9, 8, 7}, ids(s.svc.Browse(models.CatalogQuery{Sort: models.SortNewest})[:3]))

	popular := s.svc.Browse(models.CatalogQuery{})
	s.Len(popular, 9)
	s.Equal(3, popular[0].ID)
	s.Equal(5, popular[8].ID)

	s.Empty(s.svc.Browse(models.CatalogQuery{Search: "introuvable"}))
}
