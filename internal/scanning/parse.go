package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// defaultLLMConfidence is used when an LLM backend reports no confidence
const defaultLLMConfidence = 85.0

// extractJSONObject strips markdown fences and surrounding chatter from an
// LLM response and returns the outermost JSON object
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}

	return text[startIdx : endIdx+1], nil
}

type transcriptJSON struct {
	Lines []struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	} `json:"lines"`
}

// parseTranscriptJSON parses a text detection response into lines
func parseTranscriptJSON(text string) ([]TextLine, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var data transcriptJSON
	if err := json.Unmarshal([]byte(obj), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	lines := make([]TextLine, 0, len(data.Lines))
	for _, l := range data.Lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		confidence := defaultLLMConfidence
		if l.Confidence != nil && *l.Confidence > 0 {
			confidence = clampConfidence(*l.Confidence)
		}
		lines = append(lines, TextLine{Text: l.Text, Confidence: confidence})
	}
	return lines, nil
}

type expenseJSON struct {
	IsReceipt     *bool                `json:"is_receipt"`
	SummaryFields []FieldObservation   `json:"summary_fields"`
	LineItems     [][]FieldObservation `json:"line_items"`
	Lines         []string             `json:"lines"`
}

// parseExpenseJSON parses an expense analysis response. A response that is
// not a receipt, or carries no fields at all, yields zero documents.
func parseExpenseJSON(text string) ([]ExpenseDocument, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var data expenseJSON
	if err := json.Unmarshal([]byte(obj), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if data.IsReceipt != nil && !*data.IsReceipt {
		return []ExpenseDocument{}, nil
	}
	if len(data.SummaryFields) == 0 && len(data.LineItems) == 0 {
		return []ExpenseDocument{}, nil
	}

	doc := ExpenseDocument{
		SummaryFields:  make([]FieldObservation, 0, len(data.SummaryFields)),
		LineItemGroups: []LineItemGroup{{Index: 1, Items: data.LineItems}},
		Lines:          make([]TextLine, 0, len(data.Lines)),
	}
	for _, f := range data.SummaryFields {
		f.Confidence = clampConfidence(f.Confidence)
		if f.Confidence == 0 {
			f.Confidence = defaultLLMConfidence
		}
		doc.SummaryFields = append(doc.SummaryFields, f)
	}
	for _, l := range data.Lines {
		doc.Lines = append(doc.Lines, TextLine{Text: l, Confidence: defaultLLMConfidence})
	}
	return []ExpenseDocument{doc}, nil
}

// clampConfidence keeps LLM-reported confidence inside 0-100. Values in 0-1
// are taken as fractions.
func clampConfidence(c float64) float64 {
	switch {
	case c <= 0:
		return 0
	case c <= 1:
		return c * 100
	case c > 100:
		return 100
	default:
		return c
	}
}
