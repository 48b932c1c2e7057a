package scanning

import "github.com/zombor/receipt-ocr/internal/normalize"

// Result is the normalized outcome of one OCR invocation
type Result struct {
	RawText      string  `json:"raw_text"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Confidence   float64 `json:"confidence"`
	// PaymentMethod is set by the plain text path only. The structured path
	// reports it in Summary.PaymentMethod.
	PaymentMethod normalize.PaymentMethod `json:"payment_method,omitempty"`
	Summary       normalize.Summary       `json:"summary"`
	Items         []normalize.LineItem    `json:"items"`
}

// failedResult builds the result reported when no extraction strategy succeeded
func failedResult(err error) *Result {
	return &Result{
		RawText:      "",
		Success:      false,
		ErrorMessage: err.Error(),
		Items:        []normalize.LineItem{},
	}
}
