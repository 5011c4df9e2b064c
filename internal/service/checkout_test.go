package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehoangthuan4568/game-key-store/internal/domain"
	apperrors "github.com/lehoangthuan4568/game-key-store/pkg/errors"
	"github.com/lehoangthuan4568/game-key-store/pkg/httpclient"
)

func testHTTPClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:    2 * time.Second,
		MaxRetries: 0,
	})
}

func newTestCheckoutService(orderIntentURL string) *CheckoutService {
	return NewCheckoutService(testHTTPClient(), orderIntentURL, testEventProducer(), testLogger())
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

func TestCheckoutService_Session_CreatesIdleSession(t *testing.T) {
	svc := newTestCheckoutService("http://localhost:1")

	session := svc.Session("user-1")
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, domain.StatusIdle, session.Status)
}

func TestCheckoutService_Reset_DiscardsStaleState(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "out of stock"})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)

	_, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "vnpay")
	require.Error(t, err)
	require.Equal(t, domain.StatusFailed, svc.Session("user-1").Status)

	session := svc.Reset("user-1")
	assert.Equal(t, domain.StatusIdle, session.Status)
	assert.Empty(t, session.FailureReason)
	assert.Empty(t, session.PaymentRedirectURL)
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func TestCheckoutService_Submit_Success(t *testing.T) {
	var gotBody orderIntentRequest
	var gotUserHeader string

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserHeader = r.Header.Get("X-User-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"payment_url": "https://pay.example.com/redirect?token=abc",
		})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)

	session, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "vnpay")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRedirecting, session.Status)
	assert.Equal(t, "https://pay.example.com/redirect?token=abc", session.PaymentRedirectURL)
	assert.Empty(t, session.FailureReason)

	assert.Equal(t, "user-1", gotUserHeader)
	assert.Equal(t, "vnpay", gotBody.PaymentMethod)
	require.Len(t, gotBody.CartItems, 1)
	assert.Equal(t, orderIntentItem{ProductID: "prod-1", PlatformID: "steam", Quantity: 2}, gotBody.CartItems[0])
}

func TestCheckoutService_Submit_BackendRejection(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "a key just went out of stock"})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)

	session, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "vnpay")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCheckoutRejected)

	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, "a key just went out of stock", session.FailureReason)
	assert.Empty(t, session.PaymentRedirectURL)
}

func TestCheckoutService_Submit_BackendUnreachable(t *testing.T) {
	svc := newTestCheckoutService("http://localhost:1/orders/intent")

	session, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "vnpay")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, domain.StatusFailed, session.Status)
}

func TestCheckoutService_Submit_MissingPaymentURL(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)

	session, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "vnpay")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCheckoutRejected)
	assert.Equal(t, domain.StatusFailed, session.Status)
}

func TestCheckoutService_Submit_EmptyCart(t *testing.T) {
	svc := newTestCheckoutService("http://localhost:1")

	_, err := svc.Submit(context.Background(), domain.NewCart("user-1"), "vnpay")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckoutService_Submit_MissingPaymentMethod(t *testing.T) {
	svc := newTestCheckoutService("http://localhost:1")

	_, err := svc.Submit(context.Background(), cartWithLine("user-1", 2, 5), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckoutService_Submit_AfterHandoffConflicts(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"payment_url": "https://pay.example.com/r"})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)
	cart := cartWithLine("user-1", 2, 5)

	_, err := svc.Submit(context.Background(), cart, "vnpay")
	require.NoError(t, err)

	session, err := svc.Submit(context.Background(), cart, "vnpay")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// The handoff state survives the rejected second submit.
	assert.Equal(t, domain.StatusRedirecting, session.Status)
	assert.Equal(t, "https://pay.example.com/r", session.PaymentRedirectURL)
}

func TestCheckoutService_Submit_RetryAfterFailure(t *testing.T) {
	attempts := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "rejected"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"payment_url": "https://pay.example.com/r"})
	}))
	defer backend.Close()

	svc := newTestCheckoutService(backend.URL)
	cart := cartWithLine("user-1", 2, 5)

	_, err := svc.Submit(context.Background(), cart, "vnpay")
	require.Error(t, err)

	// A failed session accepts another submit without an explicit reset.
	session, err := svc.Submit(context.Background(), cart, "vnpay")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRedirecting, session.Status)
	assert.Equal(t, 2, attempts)
}
