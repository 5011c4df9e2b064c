package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	pkgkafka "github.com/lehoangthuan4568/game-key-store/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated       = "storefront.cart.updated"
	TopicCartCleared       = "storefront.cart.cleared"
	TopicCheckoutSubmitted = "storefront.checkout.submitted"
)

// Source identifier for events originating from the storefront service.
const SourceStorefront = "storefront-service"

// CartLineData is the item payload within cart events.
type CartLineData struct {
	ProductID  string `json:"product_id"`
	PlatformID string `json:"platform_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID      string         `json:"user_id"`
	Items       []CartLineData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount int64          `json:"total_amount"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// CheckoutSubmittedData is the payload for a checkout.submitted event.
type CheckoutSubmittedData struct {
	UserID        string         `json:"user_id"`
	PaymentMethod string         `json:"payment_method"`
	Items         []CartLineData `json:"items"`
	TotalAmount   int64          `json:"total_amount"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func cartLines(cart *domain.Cart) []CartLineData {
	items := make([]CartLineData, len(cart.Items))
	for i := range cart.Items {
		li := &cart.Items[i]
		items[i] = CartLineData{
			ProductID:  li.Product.ID,
			PlatformID: li.Platform.ID,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice(),
		}
	}
	return items
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	data := CartUpdatedData{
		UserID:      cart.UserID,
		Items:       cartLines(cart),
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.UserID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("user_id", cart.UserID),
		slog.Int("item_count", cart.ItemCount()),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	data := CartClearedData{UserID: userID}

	event, err := pkgkafka.NewEvent(TopicCartCleared, userID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishCheckoutSubmitted publishes a checkout.submitted event.
func (p *Producer) PublishCheckoutSubmitted(ctx context.Context, cart *domain.Cart, paymentMethod string) error {
	data := CheckoutSubmittedData{
		UserID:        cart.UserID,
		PaymentMethod: paymentMethod,
		Items:         cartLines(cart),
		TotalAmount:   cart.TotalAmount(),
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutSubmitted, cart.UserID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create checkout.submitted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutSubmitted, event); err != nil {
		return fmt.Errorf("publish checkout.submitted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.submitted event",
		slog.String("user_id", cart.UserID),
		slog.String("payment_method", paymentMethod),
	)

	return nil
}
