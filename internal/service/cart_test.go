package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	"github.com/lehoangthuan4568/game-key-store/internal/event"
	apperrors "github.com/lehoangthuan4568/game-key-store/pkg/errors"
	pkgkafka "github.com/lehoangthuan4568/game-key-store/pkg/kafka"
)

// mockCartRepository is a testify mock of repository.CartRepository.
type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// testEventProducer returns a producer pointed at a closed port. Publishing
// fails fast and the services only log publish failures, so tests exercise
// the real code path without a broker.
func testEventProducer() *event.Producer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kp := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      []string{"localhost:19092"},
		BatchSize:    1,
		BatchTimeout: time.Millisecond,
	}, log)
	return event.NewProducer(kp, log)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

func steamProduct(stock int) domain.Product {
	return domain.Product{
		ID:              "prod-1",
		Name:            "Elden Ring",
		Slug:            "elden-ring",
		Price:           100_000,
		SalePrice:       int64Ptr(80_000),
		StockByPlatform: map[string]int{"steam": stock},
	}
}

func steamPlatform() domain.Platform {
	return domain.Platform{ID: "steam", Name: "Steam"}
}

func cartWithLine(userID string, quantity, stock int) *domain.Cart {
	cart := domain.NewCart(userID)
	cart.Items = append(cart.Items, domain.LineItem{
		Product:  steamProduct(stock),
		Platform: steamPlatform(),
		Quantity: quantity,
	})
	return cart
}

// ---------------------------------------------------------------------------
// GetCart
// ---------------------------------------------------------------------------

func TestCartService_GetCart_MissingSlotYieldsEmptyCart(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cart.UserID)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestCartService_GetCart_CorruptSlotYieldsEmptyCart(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.CorruptState("cart slot is undecodable"))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestCartService_GetCart_EmptyUserID(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	_, err := svc.GetCart(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// AddItem
// ---------------------------------------------------------------------------

func TestCartService_AddItem_NewLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddItem(context.Background(), "user-1", AddItemInput{
		Product:  steamProduct(5),
		Platform: steamPlatform(),
		Quantity: 2,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	repo.AssertExpectations(t)
}

func TestCartService_AddItem_MergesExistingLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 3, 5), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddItem(context.Background(), "user-1", AddItemInput{
		Product:  steamProduct(5),
		Platform: steamPlatform(),
		Quantity: 2,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	repo.AssertExpectations(t)
}

func TestCartService_AddItem_MergeAboveStockRejected(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	// 5 already in the cart with a stock ceiling of 5; one more must fail
	// and nothing may be written back.
	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 5, 5), nil)

	cart, err := svc.AddItem(context.Background(), "user-1", AddItemInput{
		Product:  steamProduct(5),
		Platform: steamPlatform(),
		Quantity: 1,
	})
	assert.Nil(t, cart)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStockExceeded)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartService_AddItem_NewLineAboveStockRejected(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	cart, err := svc.AddItem(context.Background(), "user-1", AddItemInput{
		Product:  steamProduct(2),
		Platform: steamPlatform(),
		Quantity: 3,
	})
	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrStockExceeded)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartService_AddItem_ValidatesInput(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	tests := []struct {
		name  string
		input AddItemInput
	}{
		{"missing product id", AddItemInput{Platform: steamPlatform(), Quantity: 1}},
		{"missing platform id", AddItemInput{Product: steamProduct(5), Quantity: 1}},
		{"zero quantity", AddItemInput{Product: steamProduct(5), Platform: steamPlatform(), Quantity: 0}},
		{"negative quantity", AddItemInput{Product: steamProduct(5), Platform: steamPlatform(), Quantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), "user-1", tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// UpdateQuantity
// ---------------------------------------------------------------------------

func TestCartService_UpdateQuantity_SetsQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 2, 5), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", "steam", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	repo.AssertExpectations(t)
}

func TestCartService_UpdateQuantity_ClampsBelowOne(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 3, 5), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", "steam", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestCartService_UpdateQuantity_ClampsAboveStock(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 3, 5), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", "steam", 99)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestCartService_UpdateQuantity_AbsentLineIsNoop(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 2, 5), nil)

	cart, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-404", "steam", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartService_UpdateQuantity_UnchangedSkipsSave(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 3, 5), nil)

	_, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", "steam", 3)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// RemoveItem
// ---------------------------------------------------------------------------

func TestCartService_RemoveItem(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 2, 5), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.RemoveItem(context.Background(), "user-1", "prod-1", "steam")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestCartService_RemoveItem_AbsentLineIsNoop(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 2, 5), nil)

	cart, err := svc.RemoveItem(context.Background(), "user-1", "prod-1", "psn")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// ClearCart / Totals
// ---------------------------------------------------------------------------

func TestCartService_ClearCart(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Delete", mock.Anything, "user-1").Return(nil)

	require.NoError(t, svc.ClearCart(context.Background(), "user-1"))
	repo.AssertExpectations(t)
}

func TestCartService_Totals(t *testing.T) {
	repo := new(mockCartRepository)
	svc := NewCartService(repo, testEventProducer(), testLogger())

	repo.On("Get", mock.Anything, "user-1").Return(cartWithLine("user-1", 2, 5), nil)

	totals, err := svc.Totals(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(160_000), totals.TotalAmount)
	assert.Equal(t, 2, totals.ItemCount)
	assert.Equal(t, 1, totals.LineCount)
}
