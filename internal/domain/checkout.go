package domain

import "time"

// Checkout session status constants.
//
// idle -> submitting -> redirecting is the happy path; redirecting is
// terminal from this process's perspective (the browser navigates away to the
// payment gateway). submitting -> failed allows a retry via submitting again.
const (
	StatusIdle        = "idle"
	StatusSubmitting  = "submitting"
	StatusRedirecting = "redirecting"
	StatusFailed      = "failed"
)

// CheckoutSession tracks one user's in-flight checkout handoff. Sessions are
// ephemeral by design: they live in memory only and never survive a restart,
// matching the rule that a stale session must not leak into a fresh visit.
type CheckoutSession struct {
	UserID             string    `json:"user_id"`
	Status             string    `json:"status"`
	PaymentRedirectURL string    `json:"payment_redirect_url,omitempty"`
	FailureReason      string    `json:"failure_reason,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewCheckoutSession creates an idle session for the given user.
func NewCheckoutSession(userID string) *CheckoutSession {
	return &CheckoutSession{
		UserID:    userID,
		Status:    StatusIdle,
		UpdatedAt: time.Now().UTC(),
	}
}

// CanSubmit reports whether a submit transition is allowed from the current
// status. Retrying after a failure is allowed; a second submit while one is
// in flight, or after the handoff already happened, is not.
func (s *CheckoutSession) CanSubmit() bool {
	return s.Status == StatusIdle || s.Status == StatusFailed
}

// IsTerminal reports whether the session reached the redirect handoff.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status == StatusRedirecting
}
