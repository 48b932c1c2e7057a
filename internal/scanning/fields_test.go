package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/normalize"
)

var _ = Describe("SummaryFieldKind", func() {
	DescribeTable("field type labels",
		func(label string, expected FieldKind) {
			Expect(SummaryFieldKind(label)).To(Equal(expected))
		},
		Entry("vendor name", "VENDOR_NAME", FieldStoreName),
		Entry("merchant name", "merchant_name", FieldStoreName),
		Entry("receipt date", "INVOICE_RECEIPT_DATE", FieldDate),
		Entry("total", "Total", FieldTotal),
		Entry("invoice receipt id", "INVOICE_RECEIPT_ID", FieldReceiptNumber),
		Entry("receipt id", "RECEIPT_ID", FieldReceiptNumber),
		Entry("payment method", "PAYMENT_METHOD", FieldPaymentMethod),
		Entry("payment type", "payment_type", FieldPaymentMethod),
		Entry("subtotal", "SUBTOTAL", FieldUnknown),
		Entry("empty", "", FieldUnknown),
	)
})

var _ = Describe("Extractor", func() {
	var extractor *Extractor

	BeforeEach(func() {
		extractor = NewExtractor(DefaultConfidenceThreshold)
	})

	Describe("Summary", func() {
		var (
			fields  []FieldObservation
			summary normalize.Summary
		)

		JustBeforeEach(func() {
			summary = extractor.Summary(fields)
		})

		When("all fields are confident", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "VENDOR_NAME", Text: "Shufersal Deal", Confidence: 99},
					{Type: "INVOICE_RECEIPT_DATE", Text: "25/12/2024", Confidence: 90},
					{Type: "TOTAL", Text: "₪1,234.56", Confidence: 95},
					{Type: "RECEIPT_ID", Text: "00123", Confidence: 80},
					{Type: "ADDRESS", Text: "Tel Aviv", Confidence: 99},
				}
			})

			It("should map the store name", func() {
				Expect(summary.StoreName).To(HaveValue(Equal("Shufersal Deal")))
			})

			It("should normalize the date", func() {
				Expect(summary.Date).To(HaveValue(Equal("2024-12-25")))
			})

			It("should parse the total exactly", func() {
				Expect(summary.Total).NotTo(BeNil())
				Expect(summary.Total.StringFixed(2)).To(Equal("1234.56"))
			})

			It("should map the receipt number", func() {
				Expect(summary.ReceiptNumber).To(HaveValue(Equal("00123")))
			})

			It("should leave the payment method for raw text classification", func() {
				Expect(summary.PaymentMethod).To(BeNil())
			})
		})

		When("a payment field is present", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "PAYMENT_TYPE", Text: "VISA", Confidence: 88},
				}
			})

			It("should classify it", func() {
				Expect(summary.PaymentMethod).To(HaveValue(Equal(normalize.PaymentCreditCard)))
			})
		})

		When("a payment field is in Hebrew", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "payment_method", Text: "מזומן", Confidence: 88},
				}
			})

			It("should classify cash", func() {
				Expect(summary.PaymentMethod).To(HaveValue(Equal(normalize.PaymentCash)))
			})
		})

		When("a payment field is not recognizable", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "PAYMENT_METHOD", Text: "voucher", Confidence: 88},
				}
			})

			It("should not set a payment method", func() {
				Expect(summary.PaymentMethod).To(BeNil())
			})
		})

		When("an unparseable total follows a parsed one", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "TOTAL", Text: "12.50", Confidence: 90},
					{Type: "TOTAL", Text: "N/A", Confidence: 90},
				}
			})

			It("should keep the parsed total", func() {
				Expect(summary.Total).NotTo(BeNil())
				Expect(summary.Total.StringFixed(2)).To(Equal("12.50"))
			})
		})

		When("a field is below the threshold", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "VENDOR_NAME", Text: "Blurry Store", Confidence: 69.99},
					{Type: "TOTAL", Text: "10.00", Confidence: 70.0},
				}
			})

			It("should drop the low confidence field", func() {
				Expect(summary.StoreName).To(BeNil())
			})

			It("should keep the field exactly at the threshold", func() {
				Expect(summary.Total).NotTo(BeNil())
			})
		})

		When("the total is unparseable", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "TOTAL", Text: "N/A", Confidence: 99},
				}
			})

			It("should leave the total absent", func() {
				Expect(summary.Total).To(BeNil())
			})
		})

		When("the date cannot be normalized", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "INVOICE_RECEIPT_DATE", Text: " Dec 25th ", Confidence: 99},
				}
			})

			It("should pass the trimmed text through", func() {
				Expect(summary.Date).To(HaveValue(Equal("Dec 25th")))
			})
		})

		When("the store name was detected as empty", func() {
			BeforeEach(func() {
				fields = []FieldObservation{
					{Type: "VENDOR_NAME", Text: "", Confidence: 99},
				}
			})

			It("should keep it as present and empty", func() {
				Expect(summary.StoreName).To(HaveValue(Equal("")))
			})
		})
	})

	Describe("LineItems", func() {
		var (
			groups []LineItemGroup
			items  []normalize.LineItem
		)

		JustBeforeEach(func() {
			items = extractor.LineItems(groups)
		})

		When("items have all fields", func() {
			BeforeEach(func() {
				groups = []LineItemGroup{{
					Index: 1,
					Items: [][]FieldObservation{
						{
							{Type: "ITEM", Text: "Milk", Confidence: 10},
							{Type: "PRICE", Text: "$4.50"},
							{Type: "QUANTITY", Text: "2"},
						},
						{
							{Type: "ITEM", Text: "לחם"},
							{Type: "PRICE", Text: "7,90"},
						},
					},
				}}
			})

			It("should extract every named item in order", func() {
				Expect(items).To(HaveLen(2))
				Expect(items[0].Name).To(Equal("Milk"))
				Expect(items[1].Name).To(Equal("לחם"))
			})

			It("should not filter line items by confidence", func() {
				Expect(items[0].Price.StringFixed(2)).To(Equal("4.50"))
				Expect(items[0].Quantity).To(Equal(2))
			})

			It("should default the quantity", func() {
				Expect(items[1].Quantity).To(Equal(1))
				Expect(items[1].Price.StringFixed(2)).To(Equal("7.90"))
			})

			It("should assign the default category", func() {
				Expect(items[0].Category).To(Equal("other"))
			})
		})

		When("an item has no name", func() {
			BeforeEach(func() {
				groups = []LineItemGroup{{
					Items: [][]FieldObservation{
						{{Type: "PRICE", Text: "3.00"}},
					},
				}}
			})

			It("should skip it", func() {
				Expect(items).To(BeEmpty())
			})
		})

		When("the price is unparseable", func() {
			BeforeEach(func() {
				groups = []LineItemGroup{{
					Items: [][]FieldObservation{
						{{Type: "ITEM", Text: "Bag"}, {Type: "PRICE", Text: "free"}},
					},
				}}
			})

			It("should default the price to zero", func() {
				Expect(items).To(HaveLen(1))
				Expect(items[0].Price.IsZero()).To(BeTrue())
			})
		})

		When("there are several groups", func() {
			BeforeEach(func() {
				groups = []LineItemGroup{
					{Index: 1, Items: [][]FieldObservation{{{Type: "ITEM", Text: "A"}}}},
					{Index: 2, Items: [][]FieldObservation{{{Type: "ITEM", Text: "B"}}}},
				}
			})

			It("should keep group order", func() {
				Expect(items).To(HaveLen(2))
				Expect(items[0].Name).To(Equal("A"))
				Expect(items[1].Name).To(Equal("B"))
			})
		})
	})

	Describe("Confidence", func() {
		It("should average the reported confidences", func() {
			fields := []FieldObservation{
				{Type: "TOTAL", Confidence: 90},
				{Type: "VENDOR_NAME", Confidence: 60},
				{Type: "OTHER", Confidence: 0},
			}
			Expect(extractor.Confidence(fields)).To(Equal(75.0))
		})

		It("should be zero without fields", func() {
			Expect(extractor.Confidence(nil)).To(Equal(0.0))
		})
	})
})
