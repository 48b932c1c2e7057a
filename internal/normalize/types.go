package normalize

import "github.com/shopspring/decimal"

// PaymentMethod classifies how a receipt was paid
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentOther      PaymentMethod = "other"
)

// DefaultCategory is assigned to every extracted line item
const DefaultCategory = "other"

// LineItem is one purchased product or service on a receipt
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
}

// Summary holds the receipt-level fields. Every field is optional; nil means
// the field was not detected, which is different from detected as empty.
type Summary struct {
	StoreName     *string          `json:"store_name,omitempty"`
	Date          *string          `json:"date,omitempty"` // YYYY-MM-DD when the input could be parsed
	ReceiptNumber *string          `json:"receipt_number,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	PaymentMethod *PaymentMethod   `json:"payment_method,omitempty"`
}
