package payments

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"landlordpay/server/internal/ledger"
)

// STKCallback is the body the M-Pesa gateway posts once an STK push completes.
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []MetadataItem `json:"Item"`
			} `json:"CallbackMetadata,omitempty"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MetadataItem is one name/value pair of callback metadata. The gateway sends
// values as JSON numbers or strings depending on the field.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Callback is a gateway notification reduced to the fields reconciliation needs.
type Callback struct {
	Amount           decimal.Decimal
	AccountReference string
	ReceiptID        string
	ResultCode       int
	ResultDesc       string
	CheckoutID       string
}

// Succeeded reports whether the gateway completed the payment.
func (c Callback) Succeeded() bool {
	return c.ResultCode == 0
}

// ToCallback extracts the reconciliation fields. Metadata is only read for
// successful results; failed pushes carry none.
func (s *STKCallback) ToCallback() (Callback, error) {
	stk := s.Body.StkCallback
	cb := Callback{
		ResultCode: stk.ResultCode,
		ResultDesc: stk.ResultDesc,
		CheckoutID: stk.CheckoutRequestID,
	}
	if !cb.Succeeded() {
		return cb, nil
	}
	if stk.CallbackMetadata == nil {
		return cb, fmt.Errorf("%w: success callback without metadata", ledger.ErrReferenceParse)
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(rawString(item.Value))
			if err != nil {
				return cb, fmt.Errorf("%w: amount %s", ledger.ErrInvalidAmount, string(item.Value))
			}
			cb.Amount = amount
		case "MpesaReceiptNumber":
			cb.ReceiptID = rawString(item.Value)
		case "AccountReference":
			cb.AccountReference = rawString(item.Value)
		}
	}
	return cb, nil
}

// rawString renders a JSON scalar as text, unquoting strings.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// ParseReference splits an account reference of the form {propertyId}-{unitLabel}.
// Property ids contain hyphens, so the label is whatever follows the last one.
func ParseReference(ref string) (propertyID, label string, err error) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, "-")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("%w: %q", ledger.ErrReferenceParse, ref)
	}
	return ref[:i], ref[i+1:], nil
}
