package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	apperrors "github.com/lehoangthuan4568/game-key-store/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func int64Ptr(v int64) *int64 { return &v }

func sampleCart() *domain.Cart {
	return &domain.Cart{
		UserID: "user-001",
		Items: []domain.LineItem{
			{
				Product: domain.Product{
					ID:              "prod-1",
					Name:            "Elden Ring",
					Slug:            "elden-ring",
					Price:           100_000,
					SalePrice:       int64Ptr(80_000),
					StockByPlatform: map[string]int{"steam": 5, "psn": 2},
					CoverImageURL:   "https://img.example.com/elden-ring.jpg",
				},
				Platform: domain.Platform{ID: "steam", Name: "Steam"},
				Quantity: 2,
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	data, err := json.Marshal(cart.Items)
	require.NoError(t, err)

	require.NoError(t, mr.Set("cartItems:"+cart.UserID, string(data)))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.UserID, got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "prod-1", got.Items[0].Product.ID)
	assert.Equal(t, "steam", got.Items[0].Platform.ID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, int64(80_000), got.Items[0].UnitPrice())
	assert.Equal(t, 5, got.Items[0].AvailableStock())
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "nonexistent-user")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_CorruptSlot(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("cartItems:user-001", "{not json"))

	got, err := repo.Get(context.Background(), "user-001")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptState)
}

// ---------------------------------------------------------------------------
// Save / round-trip
// ---------------------------------------------------------------------------

func TestCartRepository_SaveThenGet_RoundTrip(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.Save(ctx, cart))

	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)

	// A reload must reproduce the cart exactly, snapshots included.
	assert.Equal(t, cart, got)
}

func TestCartRepository_Save_SetsTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, repo.Save(context.Background(), sampleCart()))

	assert.Equal(t, 24*time.Hour, mr.TTL("cartItems:user-001"))
}

func TestCartRepository_Save_OverwritesExistingSlot(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.Save(ctx, cart))

	cart.Items[0].Quantity = 5
	require.NoError(t, repo.Save(ctx, cart))

	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items[0].Quantity)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestCartRepository_Delete(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.Save(ctx, cart))
	require.NoError(t, repo.Delete(ctx, cart.UserID))

	_, err := repo.Get(ctx, cart.UserID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Delete_MissingSlot(t *testing.T) {
	repo, _ := setupTestRedis(t)

	// Deleting a slot that never existed is not an error.
	assert.NoError(t, repo.Delete(context.Background(), "nonexistent-user"))
}
