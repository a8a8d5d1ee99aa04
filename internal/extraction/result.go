package extraction

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Source tells how a Result was produced
type Source string

const (
	// SourceParsed means the fields came from recognised text
	SourceParsed Source = "parsed"
	// SourceCanned means a filename rule supplied the fields
	SourceCanned Source = "canned"
	// SourceDefault means nothing matched and the demo values were used
	SourceDefault Source = "default"
)

const (
	defaultVendor   = "Demo Store"
	defaultCurrency = "EUR"
	defaultRawText  = "Fallback OCR content"
)

var (
	defaultTotal = decimal.RequireFromString("12.34")
	defaultVAT   = decimal.RequireFromString("19.00")
)

// Result contains the fields extracted from a receipt
type Result struct {
	Vendor      string          `json:"vendor"`
	InvoiceDate civil.Date      `json:"invoiceDate"`
	Total       decimal.Decimal `json:"total"`
	VAT         decimal.Decimal `json:"vat"`
	Currency    string          `json:"currency"`
	RawText     string          `json:"rawText"`

	Source Source `json:"-"`
}
