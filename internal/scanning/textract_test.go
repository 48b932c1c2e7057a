package scanning

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockTextractAPI is a mock implementation of TextractAPI
type mockTextractAPI struct {
	analyzeOut *textract.AnalyzeExpenseOutput
	analyzeErr error
	detectOut  *textract.DetectDocumentTextOutput
	detectErr  error
	lastBytes  []byte
}

func (m *mockTextractAPI) AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error) {
	m.lastBytes = params.Document.Bytes
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return m.analyzeOut, nil
}

func (m *mockTextractAPI) DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error) {
	m.lastBytes = params.Document.Bytes
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	return m.detectOut, nil
}

func expenseField(fieldType, text string, confidence float32) types.ExpenseField {
	return types.ExpenseField{
		Type: &types.ExpenseType{Text: aws.String(fieldType), Confidence: aws.Float32(99)},
		ValueDetection: &types.ExpenseDetection{
			Text:       aws.String(text),
			Confidence: aws.Float32(confidence),
		},
	}
}

var _ = Describe("Textract", func() {
	var (
		client  *mockTextractAPI
		backend *Textract
		image   []byte
	)

	BeforeEach(func() {
		client = &mockTextractAPI{}
		backend = NewTextractWithClient(client)
		image = []byte("png bytes")
	})

	Describe("AnalyzeExpense", func() {
		var (
			docs []ExpenseDocument
			err  error
		)

		JustBeforeEach(func() {
			docs, err = backend.AnalyzeExpense(context.Background(), image)
		})

		When("Textract returns an expense document", func() {
			BeforeEach(func() {
				client.analyzeOut = &textract.AnalyzeExpenseOutput{
					ExpenseDocuments: []types.ExpenseDocument{{
						SummaryFields: []types.ExpenseField{
							expenseField("TOTAL", "$45.67", 95),
							{Type: &types.ExpenseType{Text: aws.String("VENDOR_NAME")}},
						},
						LineItemGroups: []types.LineItemGroup{{
							LineItemGroupIndex: aws.Int32(1),
							LineItems: []types.LineItemFields{{
								LineItemExpenseFields: []types.ExpenseField{
									expenseField("ITEM", "Milk", 90),
									expenseField("PRICE", "$4.50", 90),
								},
							}},
						}},
						Blocks: []types.Block{
							{BlockType: types.BlockTypePage},
							{BlockType: types.BlockTypeLine, Text: aws.String("GROCER"), Confidence: aws.Float32(98.5)},
							{BlockType: types.BlockTypeWord, Text: aws.String("GROCER"), Confidence: aws.Float32(98.5)},
						},
					}},
				}
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should send the image bytes", func() {
				Expect(client.lastBytes).To(Equal(image))
			})

			It("should convert summary fields", func() {
				Expect(docs).To(HaveLen(1))
				Expect(docs[0].SummaryFields[0]).To(Equal(FieldObservation{Type: "TOTAL", Text: "$45.67", Confidence: 95}))
			})

			It("should tolerate fields without a value detection", func() {
				Expect(docs[0].SummaryFields[1]).To(Equal(FieldObservation{Type: "VENDOR_NAME"}))
			})

			It("should convert line item groups", func() {
				Expect(docs[0].LineItemGroups).To(HaveLen(1))
				Expect(docs[0].LineItemGroups[0].Index).To(Equal(1))
				Expect(docs[0].LineItemGroups[0].Items[0]).To(HaveLen(2))
			})

			It("should keep only LINE blocks as raw lines", func() {
				Expect(docs[0].Lines).To(Equal([]TextLine{{Text: "GROCER", Confidence: 98.5}}))
			})
		})

		When("Textract rejects the request", func() {
			BeforeEach(func() {
				client.analyzeErr = &smithy.GenericAPIError{Code: "UnsupportedDocumentException", Message: "bad document"}
			})

			It("returns a provider error with the AWS code", func() {
				var pe *ProviderError
				Expect(errors.As(err, &pe)).To(BeTrue())
				Expect(pe.Provider).To(Equal("textract"))
				Expect(pe.Op).To(Equal("AnalyzeExpense"))
				Expect(pe.Code).To(Equal("UnsupportedDocumentException"))
			})

			It("wraps the original error", func() {
				Expect(err).To(MatchError(client.analyzeErr))
			})
		})
	})

	Describe("DetectText", func() {
		var (
			lines []TextLine
			err   error
		)

		JustBeforeEach(func() {
			lines, err = backend.DetectText(context.Background(), image)
		})

		When("Textract returns blocks", func() {
			BeforeEach(func() {
				client.detectOut = &textract.DetectDocumentTextOutput{
					Blocks: []types.Block{
						{BlockType: types.BlockTypeLine, Text: aws.String("STORE"), Confidence: aws.Float32(80)},
						{BlockType: types.BlockTypeWord, Text: aws.String("STORE"), Confidence: aws.Float32(80)},
						{BlockType: types.BlockTypeLine, Text: aws.String("CASH"), Confidence: aws.Float32(90)},
					},
				}
			})

			It("should return LINE blocks in order", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(lines).To(Equal([]TextLine{
					{Text: "STORE", Confidence: 80},
					{Text: "CASH", Confidence: 90},
				}))
			})
		})

		When("Textract is unreachable", func() {
			BeforeEach(func() {
				client.detectErr = errors.New("dial tcp: connection refused")
			})

			It("returns a provider error", func() {
				var pe *ProviderError
				Expect(errors.As(err, &pe)).To(BeTrue())
				Expect(pe.Op).To(Equal("DetectDocumentText"))
				Expect(pe.Code).To(BeEmpty())
			})
		})
	})
})
