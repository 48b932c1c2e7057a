package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
)

// TextractAPI is the subset of the Textract client used by the backend
type TextractAPI interface {
	AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error)
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Textract implements the Backend interface using AWS Textract
type Textract struct {
	client TextractAPI
}

// NewTextract creates a Textract backend from the default AWS credential chain
func NewTextract(ctx context.Context, region string) (*Textract, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewTextractWithClient(textract.NewFromConfig(cfg)), nil
}

// NewTextractWithClient creates a Textract backend with a custom client for testing
func NewTextractWithClient(client TextractAPI) *Textract {
	return &Textract{client: client}
}

// DetectText runs DetectDocumentText and returns the LINE blocks
func (t *Textract) DetectText(ctx context.Context, image []byte) ([]TextLine, error) {
	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, textractError("DetectDocumentText", err)
	}
	return lineBlocks(out.Blocks), nil
}

// AnalyzeExpense runs AnalyzeExpense and converts every expense document
func (t *Textract) AnalyzeExpense(ctx context.Context, image []byte) ([]ExpenseDocument, error) {
	out, err := t.client.AnalyzeExpense(ctx, &textract.AnalyzeExpenseInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, textractError("AnalyzeExpense", err)
	}

	slog.Info("Textract expense analysis complete", "documents", len(out.ExpenseDocuments))

	docs := make([]ExpenseDocument, 0, len(out.ExpenseDocuments))
	for _, doc := range out.ExpenseDocuments {
		docs = append(docs, convertExpenseDocument(doc))
	}
	return docs, nil
}

// Close is a no-op; the AWS client holds no resources
func (t *Textract) Close() error {
	return nil
}

func textractError(op string, err error) error {
	pe := &ProviderError{Provider: "textract", Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
	}
	return pe
}

func convertExpenseDocument(doc types.ExpenseDocument) ExpenseDocument {
	out := ExpenseDocument{
		SummaryFields:  make([]FieldObservation, 0, len(doc.SummaryFields)),
		LineItemGroups: make([]LineItemGroup, 0, len(doc.LineItemGroups)),
		Lines:          lineBlocks(doc.Blocks),
	}
	for _, field := range doc.SummaryFields {
		out.SummaryFields = append(out.SummaryFields, convertExpenseField(field))
	}
	for _, group := range doc.LineItemGroups {
		g := LineItemGroup{
			Index: int(aws.ToInt32(group.LineItemGroupIndex)),
			Items: make([][]FieldObservation, 0, len(group.LineItems)),
		}
		for _, item := range group.LineItems {
			fields := make([]FieldObservation, 0, len(item.LineItemExpenseFields))
			for _, field := range item.LineItemExpenseFields {
				fields = append(fields, convertExpenseField(field))
			}
			g.Items = append(g.Items, fields)
		}
		out.LineItemGroups = append(out.LineItemGroups, g)
	}
	return out
}

// convertExpenseField takes the type label from Type and the text and
// confidence from ValueDetection
func convertExpenseField(field types.ExpenseField) FieldObservation {
	var obs FieldObservation
	if field.Type != nil {
		obs.Type = aws.ToString(field.Type.Text)
	}
	if field.ValueDetection != nil {
		obs.Text = aws.ToString(field.ValueDetection.Text)
		obs.Confidence = float64(aws.ToFloat32(field.ValueDetection.Confidence))
	}
	return obs
}

func lineBlocks(blocks []types.Block) []TextLine {
	lines := make([]TextLine, 0)
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine {
			continue
		}
		lines = append(lines, TextLine{
			Text:       aws.ToString(block.Text),
			Confidence: float64(aws.ToFloat32(block.Confidence)),
		})
	}
	return lines
}
