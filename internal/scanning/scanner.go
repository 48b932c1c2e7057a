package scanning

import (
	"context"
	"fmt"
)

// TextLine is one line of detected text with its confidence (0-100)
type TextLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FieldObservation is a single typed text extraction from the OCR backend
type FieldObservation struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0 when the backend reported none
}

// LineItemGroup is a table-like region of a receipt. Each entry of Items is
// the set of fields detected for one purchased item.
type LineItemGroup struct {
	Index int                  `json:"index"`
	Items [][]FieldObservation `json:"items"`
}

// ExpenseDocument is the structured extraction for one receipt
type ExpenseDocument struct {
	SummaryFields  []FieldObservation `json:"summary_fields"`
	LineItemGroups []LineItemGroup    `json:"line_item_groups"`
	Lines          []TextLine         `json:"lines,omitempty"` // raw LINE text of the document, if the backend returns it
}

// Backend defines the interface for OCR providers
type Backend interface {
	// DetectText returns the text lines of the image in reading order
	DetectText(ctx context.Context, image []byte) ([]TextLine, error)
	// AnalyzeExpense returns structured expense documents found in the image
	AnalyzeExpense(ctx context.Context, image []byte) ([]ExpenseDocument, error)
	// Close closes the backend and releases resources
	Close() error
}

// ProviderError reports that the OCR backend was unreachable or rejected the request
type ProviderError struct {
	Provider string
	Op       string
	Code     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
