package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/receipt-ocr/internal/normalize"
)

// Stage is a state of the extraction state machine
type Stage int

const (
	StageStructured Stage = iota
	StagePlainText
	StageFailed
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStructured:
		return "structured"
	case StagePlainText:
		return "plain_text"
	case StageFailed:
		return "failed"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome is how an extraction attempt ended
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEmpty
	OutcomeError
)

// transition returns the stage that follows an attempt at from ending with outcome
func transition(from Stage, outcome Outcome) Stage {
	switch from {
	case StageStructured:
		if outcome == OutcomeOK {
			return StageDone
		}
		// zero documents and provider errors both degrade to plain text
		return StagePlainText
	case StagePlainText:
		if outcome == OutcomeError {
			return StageFailed
		}
		return StageDone
	default:
		return from
	}
}

// Assembler runs the OCR backend and normalizes its output into a Result
type Assembler struct {
	backend   Backend
	extractor *Extractor
}

// NewAssembler creates an Assembler using the default confidence threshold
func NewAssembler(backend Backend) *Assembler {
	return NewAssemblerWithExtractor(backend, NewExtractor(DefaultConfidenceThreshold))
}

// NewAssemblerWithExtractor creates an Assembler with a custom Extractor
func NewAssemblerWithExtractor(backend Backend, extractor *Extractor) *Assembler {
	return &Assembler{
		backend:   backend,
		extractor: extractor,
	}
}

// Scan converts the image if needed and extracts a normalized receipt. It
// never returns nil; failures are reported through Result.Success.
func (a *Assembler) Scan(ctx context.Context, imageData []byte, contentType string) *Result {
	image, _, converted, err := prepareImageData(imageData, contentType)
	if err != nil {
		slog.Error("Failed to prepare image", "content_type", contentType, "error", err)
		return failedResult(err)
	}
	if converted {
		slog.Info("Converted image to PNG", "content_type", contentType)
	}

	var (
		result  *Result
		lastErr error
	)
	stage := StageStructured
	for {
		var outcome Outcome
		switch stage {
		case StageStructured:
			result, outcome, lastErr = a.structured(ctx, image)
		case StagePlainText:
			result, outcome, lastErr = a.plainText(ctx, image)
		case StageFailed:
			slog.Error("Receipt extraction failed", "error", lastErr)
			return failedResult(lastErr)
		case StageDone:
			return result
		}

		next := transition(stage, outcome)
		if next == StagePlainText {
			slog.Warn("Falling back to plain text detection", "from", stage.String(), "error", lastErr)
		}
		stage = next
	}
}

// structured runs expense analysis over the first expense document
func (a *Assembler) structured(ctx context.Context, image []byte) (*Result, Outcome, error) {
	docs, err := a.backend.AnalyzeExpense(ctx, image)
	if err != nil {
		return nil, OutcomeError, err
	}
	if len(docs) == 0 {
		slog.Info("Expense analysis returned no documents")
		return nil, OutcomeEmpty, nil
	}

	doc := docs[0]
	summary := a.extractor.Summary(doc.SummaryFields)
	items := a.extractor.LineItems(doc.LineItemGroups)
	rawText, _ := joinLines(doc.Lines)

	if summary.PaymentMethod == nil {
		method := normalize.ClassifyPayment(rawText)
		summary.PaymentMethod = &method
	}

	slog.Info("Extracted receipt with expense analysis",
		"items", len(items),
		"documents", len(docs),
		"payment_method", *summary.PaymentMethod,
	)

	return &Result{
		RawText:    rawText,
		Success:    true,
		Confidence: a.extractor.Confidence(doc.SummaryFields),
		Summary:    summary,
		Items:      items,
	}, OutcomeOK, nil
}

// plainText runs text detection and only classifies the payment method
func (a *Assembler) plainText(ctx context.Context, image []byte) (*Result, Outcome, error) {
	lines, err := a.backend.DetectText(ctx, image)
	if err != nil {
		return nil, OutcomeError, err
	}

	rawText, confidence := joinLines(lines)
	method := normalize.ClassifyPayment(rawText)

	slog.Info("Extracted receipt text", "lines", len(lines), "confidence", confidence)

	return &Result{
		RawText:       rawText,
		Success:       true,
		Confidence:    confidence,
		PaymentMethod: method,
		Items:         []normalize.LineItem{},
	}, OutcomeOK, nil
}

// joinLines concatenates lines with newlines and averages their confidences
func joinLines(lines []TextLine) (string, float64) {
	if len(lines) == 0 {
		return "", 0
	}
	texts := make([]string, 0, len(lines))
	var sum float64
	for _, line := range lines {
		texts = append(texts, line.Text)
		sum += line.Confidence
	}
	return strings.Join(texts, "\n"), sum / float64(len(lines))
}
