package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	"github.com/lehoangthuan4568/game-key-store/internal/event"
	"github.com/lehoangthuan4568/game-key-store/internal/repository"
	apperrors "github.com/lehoangthuan4568/game-key-store/pkg/errors"
)

// AddItemInput holds the parameters for adding an item to the cart. Product
// and Platform are snapshots taken by the caller at browse time; the embedded
// per-platform stock map is the ceiling every quantity is checked against.
type AddItemInput struct {
	Product  domain.Product  `json:"product" validate:"required"`
	Platform domain.Platform `json:"platform" validate:"required"`
	Quantity int             `json:"quantity" validate:"required,gte=1"`
}

// CartService is the single owner of cart state. Every mutation re-reads the
// persisted slot, applies the change in memory, and writes the whole cart
// back before returning (write-through), so the in-memory view and the slot
// never disagree after a successful call.
type CartService struct {
	repo     repository.CartRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, producer *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// GetCart retrieves the cart for a user. A missing slot yields an empty cart.
// A corrupt slot is swallowed the same way: a cart that cannot be decoded
// must never block the storefront, the user just starts from empty.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(userID), nil
		}
		if errors.Is(err, apperrors.ErrCorruptState) {
			s.logger.WarnContext(ctx, "discarding undecodable cart slot",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// AddItem adds an item to the user's cart. If a line for the same
// product+platform exists, quantities merge. A requested or merged quantity
// above the snapshot stock rejects the whole mutation and leaves the cart,
// in memory and persisted, unchanged.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.Product.ID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Platform.ID == "" {
		return nil, apperrors.InvalidInput("platform id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Product.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	available := input.Product.StockFor(input.Platform.ID)

	if idx := cart.FindItemIndex(input.Product.ID, input.Platform.ID); idx >= 0 {
		proposed := cart.Items[idx].Quantity + input.Quantity
		if proposed > available {
			return nil, apperrors.StockExceeded(input.Product.Name, input.Platform.Name, available)
		}
		cart.Items[idx].Quantity = proposed
	} else {
		if input.Quantity > available {
			return nil, apperrors.StockExceeded(input.Product.Name, input.Platform.Name, available)
		}
		cart.Items = append(cart.Items, domain.LineItem{
			Product:  input.Product,
			Platform: input.Platform,
			Quantity: input.Quantity,
		})
	}

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", input.Product.ID),
		slog.String("platform_id", input.Platform.ID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// UpdateQuantity sets the quantity of an existing line, clamped into
// [1, snapshot stock]. Out-of-range requests are clamped rather than
// rejected; the UI already disables out-of-range controls, so keeping the
// cart usable beats strictness here. A missing line is a no-op.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID, platformID string, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if platformID == "" {
		return nil, apperrors.InvalidInput("platform id is required")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(productID, platformID)
	if idx < 0 {
		return cart, nil
	}

	clamped := clampQuantity(quantity, cart.Items[idx].AvailableStock())
	if clamped == cart.Items[idx].Quantity {
		return cart, nil
	}
	cart.Items[idx].Quantity = clamped

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart line quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.String("platform_id", platformID),
		slog.Int("quantity", clamped),
	)

	return cart, nil
}

// RemoveItem removes the line matching the pair. Removing an absent pair is
// a no-op, not an error, so removal is idempotent.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID, platformID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if platformID == "" {
		return nil, apperrors.InvalidInput("platform id is required")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(productID, platformID)
	if idx < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.String("platform_id", platformID),
	)

	return cart, nil
}

// ClearCart removes all items from the user's cart. Called after a confirmed
// successful payment, or on explicit user action.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return nil
}

// Totals computes the derived totals for the user's cart.
func (s *CartService) Totals(ctx context.Context, userID string) (domain.Totals, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Totals{}, err
	}
	return cart.Totals(), nil
}

// clampQuantity forces a requested quantity into [1, available]. An available
// count below 1 still yields 1; lines always carry at least one unit.
func clampQuantity(quantity, available int) int {
	if quantity < 1 {
		quantity = 1
	}
	if available >= 1 && quantity > available {
		quantity = available
	}
	return quantity
}
