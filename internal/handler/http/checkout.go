package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lehoangthuan4568/game-key-store/internal/gateway/vnpay"
	"github.com/lehoangthuan4568/game-key-store/internal/service"
	"github.com/lehoangthuan4568/game-key-store/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout and payment-return endpoints.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	carts    *service.CartService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(checkout *service.CheckoutService, carts *service.CartService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		carts:    carts,
		logger:   logger,
	}
}

// SubmitRequest is the JSON request body for submitting a checkout.
type SubmitRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// paymentReturnResponse is the payload returned by the payment-return endpoint.
type paymentReturnResponse struct {
	vnpay.ReturnResult
	CartCleared bool `json:"cart_cleared"`
}

// StartSession handles POST /api/v1/checkout/session
//
// Called on every checkout page entry; any prior session state (a stale
// redirect, an old failure) is discarded.
func (h *CheckoutHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	session := h.checkout.Reset(userID)
	writeJSON(w, http.StatusOK, response{Data: session})
}

// GetSession handles GET /api/v1/checkout/session
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	writeJSON(w, http.StatusOK, response{Data: h.checkout.Session(userID)})
}

// Submit handles POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.checkout.Submit(r.Context(), cart, req.PaymentMethod)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: session})
}

// PaymentReturn handles GET /api/v1/payment/return
//
// The front-end return page forwards the gateway's redirect query parameters
// here. Interpretation itself is pure; this handler is the caller that clears
// the cart, and only on a confirmed approval. On any other outcome the cart
// is left exactly as it was so the user keeps their selection.
func (h *CheckoutHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	result := vnpay.InterpretReturn(r.URL.Query())

	cleared := false
	if result.Success {
		if err := h.carts.ClearCart(r.Context(), userID); err != nil {
			// The payment is approved regardless; report the outcome and let
			// the cart slot expire rather than fail the return page.
			h.logger.ErrorContext(r.Context(), "failed to clear cart after approved payment",
				slog.String("user_id", userID),
				slog.String("order_reference", result.OrderReference),
				slog.String("error", err.Error()),
			)
		} else {
			cleared = true
		}
	}

	h.logger.InfoContext(r.Context(), "payment return interpreted",
		slog.String("user_id", userID),
		slog.String("order_reference", result.OrderReference),
		slog.String("response_code", result.ResponseCode),
		slog.Bool("success", result.Success),
	)

	writeJSON(w, http.StatusOK, response{Data: paymentReturnResponse{
		ReturnResult: result,
		CartCleared:  cleared,
	}})
}
