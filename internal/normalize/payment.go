package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	cashIndicators = []string{"cash", "מזומן", "מזומנים"}
	cardIndicators = []string{
		"card", "credit", "debit", "visa", "mastercard",
		"אשראי", "כרטיס", "ויזה", "מאסטרקארד",
	}
)

// foldText lower-cases text and strips combining marks so that pointed
// Hebrew matches the unpointed indicators.
func foldText(text string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

func containsAny(text string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

// ClassifyPayment detects the payment method from receipt text. Cash
// indicators win over card indicators.
func ClassifyPayment(text string) PaymentMethod {
	folded := foldText(text)
	switch {
	case containsAny(folded, cashIndicators):
		return PaymentCash
	case containsAny(folded, cardIndicators):
		return PaymentCreditCard
	default:
		return PaymentOther
	}
}
