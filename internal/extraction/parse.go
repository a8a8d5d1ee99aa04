package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	// 2025-01-16, 2025/01/16, 2025.01.16
	yearFirstDate = regexp.MustCompile(`(20\d{2})[-/.](\d{2})[-/.](\d{2})`)
	// 16.01.2025
	dayFirstDate = regexp.MustCompile(`(\d{2})[.](\d{2})[.](20\d{2})`)

	totalAmount = regexp.MustCompile(`(?i)(?:total|gesamt)\s*([0-9.,]+)`)
	vatAmount   = regexp.MustCompile(`(?i)(?:vat|mwst|tax)\s*([0-9.,]+)`)
)

// parseText extracts receipt fields from recognised text. It reports false when
// neither a date, a total nor a VAT amount could be found.
func parseText(text string, today civil.Date) (Result, bool) {
	vendor, ok := firstLine(text)
	if !ok {
		return Result{}, false
	}

	date, hasDate := extractDate(text)
	total, hasTotal := extractDecimal(text, totalAmount)
	vat, hasVAT := extractDecimal(text, vatAmount)
	if !hasDate && !hasTotal && !hasVAT {
		return Result{}, false
	}

	result := Result{
		Vendor:      vendor,
		InvoiceDate: today,
		Total:       defaultTotal,
		VAT:         defaultVAT,
		Currency:    defaultCurrency,
		RawText:     text,
		Source:      SourceParsed,
	}
	if hasDate {
		result.InvoiceDate = date
	}
	if hasTotal {
		result.Total = total
	}
	if hasVAT {
		result.VAT = vat
	}
	return result, true
}

// firstLine returns the first non-blank line, trimmed
func firstLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, true
		}
	}
	return "", false
}

// extractDate tries the year-first pattern, then the day-first one. A match that is
// not a real calendar date is skipped.
func extractDate(text string) (civil.Date, bool) {
	if m := yearFirstDate.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := dayFirstDate.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[3], m[2], m[1]); ok {
			return d, true
		}
	}
	return civil.Date{}, false
}

func makeDate(year, month, day string) (civil.Date, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	return date, date.IsValid()
}

// extractDecimal finds the first amount after a keyword
func extractDecimal(text string, pattern *regexp.Regexp) (decimal.Decimal, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return parseAmount(m[1])
}

// parseAmount reads German-style amounts: dots group thousands, the comma is the
// decimal separator. "1.234,56" is 1234.56.
func parseAmount(raw string) (decimal.Decimal, bool) {
	normalized := strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
