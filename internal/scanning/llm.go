package scanning

import (
	"context"
	"log/slog"
)

// generator sends an image and a prompt to an LLM and returns its text response
type generator interface {
	generate(ctx context.Context, image []byte, prompt string) (string, error)
}

// detectTextWithLLM implements Backend.DetectText on top of an LLM
func detectTextWithLLM(ctx context.Context, provider string, g generator, image []byte) ([]TextLine, error) {
	text, err := g.generate(ctx, image, textDetectionPrompt)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Op: "DetectText", Err: err}
	}
	lines, err := parseTranscriptJSON(text)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Op: "DetectText", Err: err}
	}
	slog.Info("LLM text detection complete", "provider", provider, "lines", len(lines))
	return lines, nil
}

// analyzeExpenseWithLLM implements Backend.AnalyzeExpense on top of an LLM
func analyzeExpenseWithLLM(ctx context.Context, provider string, g generator, image []byte) ([]ExpenseDocument, error) {
	text, err := g.generate(ctx, image, expenseAnalysisPrompt)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Op: "AnalyzeExpense", Err: err}
	}
	docs, err := parseExpenseJSON(text)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Op: "AnalyzeExpense", Err: err}
	}
	slog.Info("LLM expense analysis complete", "provider", provider, "documents", len(docs))
	return docs, nil
}
