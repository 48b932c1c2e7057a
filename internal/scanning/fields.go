package scanning

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zombor/receipt-ocr/internal/normalize"
)

// DefaultConfidenceThreshold is the minimum confidence for a summary field to be used
const DefaultConfidenceThreshold = 70.0

// FieldKind is the normalized meaning of a summary field type label
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldStoreName
	FieldDate
	FieldTotal
	FieldReceiptNumber
	FieldPaymentMethod
)

var summaryFieldKinds = map[string]FieldKind{
	"vendor_name":          FieldStoreName,
	"merchant_name":        FieldStoreName,
	"invoice_receipt_date": FieldDate,
	"total":                FieldTotal,
	"invoice_receipt_id":   FieldReceiptNumber,
	"receipt_id":           FieldReceiptNumber,
	"payment_method":       FieldPaymentMethod,
	"payment_type":         FieldPaymentMethod,
}

// SummaryFieldKind maps a backend field type label to its kind, case-insensitively
func SummaryFieldKind(label string) FieldKind {
	return summaryFieldKinds[strings.ToLower(strings.TrimSpace(label))]
}

// ItemFieldKind is the normalized meaning of a line item field type label
type ItemFieldKind int

const (
	ItemFieldUnknown ItemFieldKind = iota
	ItemFieldName
	ItemFieldPrice
	ItemFieldQuantity
)

var itemFieldKinds = map[string]ItemFieldKind{
	"item":     ItemFieldName,
	"price":    ItemFieldPrice,
	"quantity": ItemFieldQuantity,
}

// LineItemFieldKind maps a line item field type label to its kind, case-insensitively
func LineItemFieldKind(label string) ItemFieldKind {
	return itemFieldKinds[strings.ToLower(strings.TrimSpace(label))]
}

// Extractor turns field observations into a receipt summary and line items
type Extractor struct {
	threshold float64
}

// NewExtractor creates an Extractor that skips summary fields below threshold
func NewExtractor(threshold float64) *Extractor {
	return &Extractor{threshold: threshold}
}

// Threshold returns the summary field confidence threshold
func (e *Extractor) Threshold() float64 {
	return e.threshold
}

// Summary extracts the receipt-level fields. When the same kind appears more
// than once, the last usable value wins.
func (e *Extractor) Summary(fields []FieldObservation) normalize.Summary {
	var summary normalize.Summary
	for _, field := range fields {
		if field.Confidence < e.threshold {
			continue
		}

		value := strings.TrimSpace(field.Text)
		switch SummaryFieldKind(field.Type) {
		case FieldStoreName:
			summary.StoreName = &value
		case FieldDate:
			if value == "" {
				continue
			}
			date := normalize.NormalizeDate(value)
			summary.Date = &date
		case FieldTotal:
			if total, ok := normalize.ParseAmount(value); ok {
				summary.Total = &total
			}
		case FieldReceiptNumber:
			summary.ReceiptNumber = &value
		case FieldPaymentMethod:
			// unrecognized labels leave the method to raw text classification
			if method := normalize.ClassifyPayment(value); method != normalize.PaymentOther {
				summary.PaymentMethod = &method
			}
		}
	}
	return summary
}

// LineItems extracts one LineItem per detected item that has a name. Line
// item fields carry no usable confidence and are not threshold-filtered.
func (e *Extractor) LineItems(groups []LineItemGroup) []normalize.LineItem {
	items := make([]normalize.LineItem, 0)
	for _, group := range groups {
		for _, fields := range group.Items {
			item := normalize.LineItem{
				Price:    decimal.Zero,
				Quantity: 1,
				Category: normalize.DefaultCategory,
			}
			for _, field := range fields {
				switch LineItemFieldKind(field.Type) {
				case ItemFieldName:
					item.Name = strings.TrimSpace(field.Text)
				case ItemFieldPrice:
					if price, ok := normalize.ParseAmount(field.Text); ok {
						item.Price = price
					}
				case ItemFieldQuantity:
					item.Quantity = normalize.ParseQuantity(field.Text)
				}
			}
			if item.Name != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// Confidence is the mean of the summary field confidences that were reported,
// or 0 when there are none.
func (e *Extractor) Confidence(fields []FieldObservation) float64 {
	var sum float64
	var n int
	for _, field := range fields {
		if field.Confidence > 0 {
			sum += field.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
