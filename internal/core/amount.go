package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"admissions/pkg/domain"
)

// DefaultStandardFee is charged when a payment is recorded without an amount.
const DefaultStandardFee = 500.0

// plainDecimal admits digits with at most one decimal point, e.g. "650",
// "120.50", ".5". Signs, exponents, hex and digit separators are refused.
var plainDecimal = regexp.MustCompile(`^(?:\d+(?:\.\d*)?|\.\d+)$`)

// ParseAmount validates a payment amount entered as text. Blank input yields
// fallback. Anything that is not a positive finite decimal is rejected.
func ParseAmount(input string, fallback float64) (float64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		trimmed = strconv.FormatFloat(fallback, 'f', -1, 64)
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, domain.ValidationError{Field: "amount", Message: "must be a positive amount"}
	}
	if !plainDecimal.MatchString(trimmed) {
		return 0, domain.ValidationError{Field: "amount", Message: "must be a number"}
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, domain.ValidationError{Field: "amount", Message: "must be a number"}
	}
	if math.IsInf(amount, 0) || amount <= 0 {
		return 0, domain.ValidationError{Field: "amount", Message: "must be a positive amount"}
	}
	return amount, nil
}

// checkRevenue rejects payments whose running total would overflow.
func checkRevenue(total, amount float64) error {
	if math.IsInf(total+amount, 0) {
		return domain.ValidationError{Field: "amount", Message: "would overflow total revenue"}
	}
	return nil
}
