// Package vnpay interprets the query parameters VNPay appends when it
// redirects the customer back to the storefront after a payment attempt.
package vnpay

import (
	"net/url"
	"time"
)

// Return URL query parameter names, as documented by the gateway.
const (
	ParamResponseCode = "vnp_ResponseCode"
	ParamTxnRef       = "vnp_TxnRef"
	ParamAmount       = "vnp_Amount"
	ParamBankCode     = "vnp_BankCode"
	ParamPayDate      = "vnp_PayDate"
)

// ResponseCodeApproved is the gateway's sole success sentinel. Every other
// response code, and the absence of one, denotes failure or cancellation.
const ResponseCodeApproved = "00"

// payDateLayout is the gateway's timestamp format (yyyyMMddHHmmss).
const payDateLayout = "20060102150405"

// ReturnResult is the interpreted outcome of a gateway return. Everything
// except Success is echoed for display only and must not drive business
// decisions.
type ReturnResult struct {
	Success        bool      `json:"success"`
	ResponseCode   string    `json:"response_code"`
	OrderReference string    `json:"order_reference"`
	Amount         string    `json:"amount"`
	BankCode       string    `json:"bank_code"`
	PaidAt         time.Time `json:"paid_at,omitzero"`
}

// InterpretReturn derives the payment outcome from the redirect parameters.
// It is pure and never fails: missing or unparsable parameters simply yield
// a non-success result with whatever fields could be read.
func InterpretReturn(params url.Values) ReturnResult {
	code := params.Get(ParamResponseCode)

	result := ReturnResult{
		Success:        code == ResponseCodeApproved,
		ResponseCode:   code,
		OrderReference: params.Get(ParamTxnRef),
		Amount:         params.Get(ParamAmount),
		BankCode:       params.Get(ParamBankCode),
	}

	if raw := params.Get(ParamPayDate); raw != "" {
		if paidAt, err := time.Parse(payDateLayout, raw); err == nil {
			result.PaidAt = paidAt
		}
	}

	return result
}
