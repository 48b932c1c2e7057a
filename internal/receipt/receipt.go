package receipt

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zombor/receipt-ocr/internal/normalize"
)

// Receipt is a normalized receipt as stored in the database. Optional
// fields are nil when the OCR backend did not detect them.
type Receipt struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`

	StoreName     *string                 `json:"store_name,omitempty"`
	Date          *string                 `json:"date,omitempty"` // YYYY-MM-DD, or the text as printed if it could not be parsed
	ReceiptNumber *string                 `json:"receipt_number,omitempty"`
	Total         *decimal.Decimal        `json:"total,omitempty"`
	PaymentMethod normalize.PaymentMethod `json:"payment_method,omitempty"`
	Items         []normalize.LineItem    `json:"items"`
	RawText       string                  `json:"raw_text"`
	Confidence    float64                 `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter selects receipts when listing. Zero values match everything.
type Filter struct {
	UserID         string
	PaymentMethods []normalize.PaymentMethod
	StoreName      string // case-insensitive substring
	From           string // inclusive YYYY-MM-DD
	To             string // inclusive YYYY-MM-DD
}

// Totals aggregates a set of receipts
type Totals struct {
	Count           int                                         `json:"count"`
	Total           decimal.Decimal                             `json:"total"`
	ByPaymentMethod map[normalize.PaymentMethod]decimal.Decimal `json:"by_payment_method"`
	Stores          []string                                    `json:"stores"`
}
