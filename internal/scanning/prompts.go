package scanning

// textDetectionPrompt is the shared prompt used by LLM backends for plain text detection
const textDetectionPrompt = `You are reading a photo of a purchase receipt. Receipts may mix Hebrew and Latin scripts.

Transcribe every line of text exactly as printed, top to bottom. Do not translate, correct, or reorder anything. Keep Hebrew text in Hebrew characters.

Return ONLY valid JSON in this exact format:
{
  "lines": [
    {"text": "line text", "confidence": 0-100}
  ]
}

Important:
- confidence is how sure you are that the line was read correctly, from 0 to 100
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// expenseAnalysisPrompt is the shared prompt used by LLM backends for structured expense analysis
const expenseAnalysisPrompt = `You are analyzing a photo of a purchase receipt. Receipts may mix Hebrew and Latin scripts.

Report what is printed on the receipt as typed fields. Copy values exactly as printed (including currency symbols and separators); do not convert or reformat them.

Summary field types:
- VENDOR_NAME: the store or business name
- INVOICE_RECEIPT_DATE: the purchase date
- INVOICE_RECEIPT_ID: the receipt or transaction number
- TOTAL: the final amount paid
- PAYMENT_METHOD: how the receipt was paid (cash, card name), only if printed

Line item field types:
- ITEM: product name
- PRICE: line price
- QUANTITY: quantity purchased

Return ONLY valid JSON in this exact format:
{
  "is_receipt": true,
  "summary_fields": [
    {"type": "VENDOR_NAME", "text": "value as printed", "confidence": 0-100}
  ],
  "line_items": [
    [
      {"type": "ITEM", "text": "value as printed"},
      {"type": "PRICE", "text": "value as printed"},
      {"type": "QUANTITY", "text": "value as printed"}
    ]
  ],
  "lines": ["every line of text on the receipt, top to bottom"]
}

Important:
- confidence is how sure you are that the value was read correctly, from 0 to 100
- Omit a field entirely if it is not on the receipt
- Set "is_receipt" to false if the image is not a receipt
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
