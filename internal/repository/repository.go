package repository

import (
	"context"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
)

// CartRepository defines the interface for cart persistence. The cart service
// is the sole owner of the persisted slot; no other component reads or
// writes it.
type CartRepository interface {
	// Get retrieves the cart stored for the user. Returns an error matching
	// apperrors.ErrNotFound when no slot exists, and one matching
	// apperrors.ErrCorruptState when the slot exists but cannot be decoded.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists the cart's line items, overwriting any existing slot.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the user's slot.
	Delete(ctx context.Context, userID string) error
}
