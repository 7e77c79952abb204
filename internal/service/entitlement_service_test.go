package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
)

func newTestEntitlements(t *testing.T) (*EntitlementService, *flakyBackend, *store.Store) {
	t.Helper()
	backend := newFlakyBackend()
	st := store.New(backend, store.DefaultOptions())
	svc := NewEntitlementService(st, nil, testBaseURL, models.DefaultMaxDownloads)
	require.NoError(t, svc.Load(context.Background()))
	return svc, backend, st
}

func TestGrantIssuesFreshEntitlement(t *testing.T) {
	svc, _, _ := newTestEntitlements(t)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ent, err := svc.Grant(context.Background(), 3, "abc123xyz")
	require.NoError(t, err)

	assert.Equal(t, 3, ent.ProductID)
	assert.Equal(t, "abc123xyz", ent.OrderID)
	assert.Equal(t, 0, ent.DownloadCount)
	assert.Equal(t, 10, ent.MaxDownloads)
	assert.Equal(t, "https://downloads.digistore.com/product-3-1700000000000.zip", ent.DownloadURL)
	assert.True(t, svc.IsOwned(3))
	assert.True(t, svc.CanDownload(3))
	assert.False(t, svc.IsOwned(4))
}

func TestGrantRejectsBadInput(t *testing.T) {
	svc, backend, _ := newTestEntitlements(t)
	_, err := svc.Grant(context.Background(), 0, "order")
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = svc.Grant(context.Background(), 1, "")
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Zero(t, backend.setCount())
}

func TestDownloadAllowanceIsCapped(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEntitlements(t)
	_, err := svc.Grant(ctx, 5, "order00001")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, svc.CanDownload(5))
		require.NoError(t, svc.RecordDownload(ctx, 5))
	}
	ent, ok := svc.Get(5)
	require.True(t, ok)
	assert.Equal(t, 10, ent.DownloadCount)
	assert.False(t, svc.CanDownload(5))
	assert.Zero(t, ent.Remaining())

	require.NoError(t, svc.RecordDownload(ctx, 5))
	ent, _ = svc.Get(5)
	assert.Equal(t, 10, ent.DownloadCount)
}

func TestRecordDownloadNotOwnedIsNoop(t *testing.T) {
	svc, backend, _ := newTestEntitlements(t)
	require.NoError(t, svc.RecordDownload(context.Background(), 42))
	assert.Empty(t, svc.List())
	assert.Zero(t, backend.setCount())
}

func TestGuardedDownload(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEntitlements(t)

	_, err := svc.Download(ctx, 8)
	assert.ErrorIs(t, err, utils.ErrNotOwned)

	_, err = svc.Grant(ctx, 8, "order00002")
	require.NoError(t, err)
	ent, err := svc.Download(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, ent.DownloadCount)
	assert.Equal(t, 9, ent.Remaining())

	for i := 0; i < 9; i++ {
		_, err = svc.Download(ctx, 8)
		require.NoError(t, err)
	}
	ent, err = svc.Download(ctx, 8)
	assert.ErrorIs(t, err, utils.ErrDownloadLimit)
	assert.Equal(t, 10, ent.DownloadCount)
}

func TestRegrantResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEntitlements(t)
	svc.now = func() time.Time { return time.UnixMilli(1000) }
	_, err := svc.Grant(ctx, 2, "first0001")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordDownload(ctx, 2))
	}

	svc.now = func() time.Time { return time.UnixMilli(2000) }
	ent, err := svc.Grant(ctx, 2, "second001")
	require.NoError(t, err)

	assert.Equal(t, 0, ent.DownloadCount)
	assert.Equal(t, "second001", ent.OrderID)
	assert.Equal(t, "https://downloads.digistore.com/product-2-2000.zip", ent.DownloadURL)
	assert.Len(t, svc.List(), 1)
}

func TestEntitlementsPersistAndReload(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newTestEntitlements(t)
	_, err := svc.Grant(ctx, 1, "order00003")
	require.NoError(t, err)
	require.NoError(t, svc.RecordDownload(ctx, 1))

	reloaded := NewEntitlementService(st, nil, testBaseURL, 10)
	require.NoError(t, reloaded.Load(ctx))
	ent, ok := reloaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, ent.DownloadCount)
	orig, _ := svc.Get(1)
	assert.True(t, orig.PurchaseDate.Equal(ent.PurchaseDate))
}

func TestEntitlementLoadRepairsRecords(t *testing.T) {
	ctx := context.Background()
	st := store.New(newFlakyBackend(), store.DefaultOptions())
	require.NoError(t, store.WriteList(ctx, st, store.KeyEntitlements, []models.Entitlement{
		{ProductID: 1, OrderID: "order0001", MaxDownloads: 0},
		{ProductID: 2, OrderID: "order0001", MaxDownloads: 3, DownloadCount: 7},
		{ProductID: 3, OrderID: "order0001", MaxDownloads: 10, DownloadCount: 4},
		{ProductID: 3, OrderID: "order0002", MaxDownloads: 10},
		{ProductID: 0, OrderID: "order0002", MaxDownloads: 10},
	}))

	svc := NewEntitlementService(st, nil, testBaseURL, 10)
	require.NoError(t, svc.Load(ctx))
	require.Len(t, svc.List(), 3)

	first, ok := svc.Get(1)
	require.True(t, ok)
	assert.Equal(t, 10, first.MaxDownloads)
	assert.True(t, svc.CanDownload(1))

	capped, _ := svc.Get(2)
	assert.Equal(t, 3, capped.DownloadCount)
	assert.False(t, svc.CanDownload(2))

	regranted, _ := svc.Get(3)
	assert.Equal(t, "order0002", regranted.OrderID)
	assert.Zero(t, regranted.DownloadCount)

	require.NoError(t, svc.Flush(ctx))
	stored, err := store.ReadList[models.Entitlement](ctx, st, store.KeyEntitlements)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestEntitlementWriteFailureKeepsGrant(t *testing.T) {
	ctx := context.Background()
	svc, backend, _ := newTestEntitlements(t)
	backend.failKey(store.KeyEntitlements)

	_, err := svc.Grant(ctx, 1, "order00004")
	require.Error(t, err)
	assert.True(t, utils.IsWarning(err))
	assert.True(t, svc.IsOwned(1))

	backend.heal()
	assert.NoError(t, svc.Flush(ctx))
}
