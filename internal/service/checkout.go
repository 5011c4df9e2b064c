package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	"github.com/lehoangthuan4568/game-key-store/internal/event"
	apperrors "github.com/lehoangthuan4568/game-key-store/pkg/errors"
)

// HTTPDoer is the interface for executing HTTP requests. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// orderIntentRequest is the body POSTed to the backend's order-intent endpoint.
type orderIntentRequest struct {
	PaymentMethod string            `json:"payment_method"`
	CartItems     []orderIntentItem `json:"cart_items"`
}

type orderIntentItem struct {
	ProductID  string `json:"product_id"`
	PlatformID string `json:"platform_id"`
	Quantity   int    `json:"quantity"`
}

// orderIntentResponse is the backend's success response; PaymentURL is the
// gateway redirect target the browser must navigate to.
type orderIntentResponse struct {
	PaymentURL string `json:"payment_url"`
}

// orderIntentRejection is the backend's failure response.
type orderIntentRejection struct {
	Message string `json:"message"`
}

// CheckoutService converts the current cart into a payment-gateway redirect
// and tracks the per-user session state machine. Sessions live in memory
// only: the redirect handoff is terminal for this process, and the return
// from the gateway arrives as a fresh request interpreted elsewhere.
type CheckoutService struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession

	httpClient     HTTPDoer
	orderIntentURL string
	producer       *event.Producer
	logger         *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(httpClient HTTPDoer, orderIntentURL string, producer *event.Producer, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions:       make(map[string]*domain.CheckoutSession),
		httpClient:     httpClient,
		orderIntentURL: orderIntentURL,
		producer:       producer,
		logger:         logger,
	}
}

// Reset discards any prior session for the user and returns a fresh idle one.
// Called on every checkout page entry so a stale redirecting or failed state
// never leaks into a new visit.
func (s *CheckoutService) Reset(userID string) *domain.CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := domain.NewCheckoutSession(userID)
	s.sessions[userID] = session
	return snapshot(session)
}

// Session returns the user's current session, creating an idle one if none
// exists.
func (s *CheckoutService) Session(userID string) *domain.CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		session = domain.NewCheckoutSession(userID)
		s.sessions[userID] = session
	}
	return snapshot(session)
}

// Submit sends the cart as an order intent to the backend and, on success,
// transitions the session to redirecting with the gateway URL the caller must
// navigate to. The cart itself is never touched: on rejection the user
// adjusts and retries, and clearing after payment is the return handler's
// job. Submission is never retried automatically; initiating a payment twice
// is worse than asking the user to click again.
func (s *CheckoutService) Submit(ctx context.Context, cart *domain.Cart, paymentMethod string) (*domain.CheckoutSession, error) {
	if cart == nil || cart.UserID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if paymentMethod == "" {
		return nil, apperrors.InvalidInput("payment method is required")
	}
	if cart.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	if err := s.beginSubmit(cart.UserID); err != nil {
		return s.Session(cart.UserID), err
	}

	body := orderIntentRequest{
		PaymentMethod: paymentMethod,
		CartItems:     make([]orderIntentItem, len(cart.Items)),
	}
	for i := range cart.Items {
		li := &cart.Items[i]
		body.CartItems[i] = orderIntentItem{
			ProductID:  li.Product.ID,
			PlatformID: li.Platform.ID,
			Quantity:   li.Quantity,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return s.fail(ctx, cart.UserID, "could not encode order intent", fmt.Errorf("marshal order intent: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.orderIntentURL, bytes.NewReader(payload))
	if err != nil {
		return s.fail(ctx, cart.UserID, "could not build order intent request", fmt.Errorf("create order intent request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", cart.UserID)

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		return s.fail(ctx, cart.UserID, "payment service is unreachable, please try again",
			apperrors.ServiceUnavailable("order intent request failed: "+err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := rejectionMessage(resp.Body)
		return s.fail(ctx, cart.UserID, message, apperrors.CheckoutRejected(message))
	}

	var intent orderIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil || intent.PaymentURL == "" {
		return s.fail(ctx, cart.UserID, "payment service returned an unusable response",
			apperrors.CheckoutRejected("order intent response is missing the payment redirect URL"))
	}

	session := s.redirect(cart.UserID, intent.PaymentURL)

	if err := s.producer.PublishCheckoutSubmitted(ctx, cart, paymentMethod); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.submitted event",
			slog.String("user_id", cart.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout handed off to payment gateway",
		slog.String("user_id", cart.UserID),
		slog.String("payment_method", paymentMethod),
		slog.Int64("total_amount", cart.TotalAmount()),
	)

	return session, nil
}

// beginSubmit transitions the user's session to submitting, guarding against
// a second submit while one is in flight or after the handoff happened.
func (s *CheckoutService) beginSubmit(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		session = domain.NewCheckoutSession(userID)
		s.sessions[userID] = session
	}

	if !session.CanSubmit() {
		if session.Status == domain.StatusSubmitting {
			return apperrors.Conflict("a checkout submission is already in progress")
		}
		return apperrors.Conflict("checkout was already handed off to the payment gateway")
	}

	session.Status = domain.StatusSubmitting
	session.PaymentRedirectURL = ""
	session.FailureReason = ""
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// fail records a failed submission and returns the session alongside err.
func (s *CheckoutService) fail(ctx context.Context, userID, reason string, err error) (*domain.CheckoutSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if ok {
		session.Status = domain.StatusFailed
		session.FailureReason = reason
		session.PaymentRedirectURL = ""
		session.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	s.logger.WarnContext(ctx, "checkout submission failed",
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)

	return s.Session(userID), err
}

// redirect records the terminal handoff state.
func (s *CheckoutService) redirect(userID, paymentURL string) *domain.CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		session = domain.NewCheckoutSession(userID)
		s.sessions[userID] = session
	}
	session.Status = domain.StatusRedirecting
	session.PaymentRedirectURL = paymentURL
	session.FailureReason = ""
	session.UpdatedAt = time.Now().UTC()
	return snapshot(session)
}

// rejectionMessage extracts the backend's human-readable message from a
// non-2xx response body, falling back to a generic message.
func rejectionMessage(body io.Reader) string {
	var rejection orderIntentRejection
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&rejection); err == nil && rejection.Message != "" {
		return rejection.Message
	}
	return "the order was rejected, please review your cart and try again"
}

// snapshot copies a session so callers never share the mutable map entry.
func snapshot(session *domain.CheckoutSession) *domain.CheckoutSession {
	copied := *session
	return &copied
}
