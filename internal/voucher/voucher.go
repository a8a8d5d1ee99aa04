package voucher

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Line is a single voucher line item
type Line struct {
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
}

// Request is a voucher submission
type Request struct {
	Vendor   string          `json:"vendor"`
	Date     civil.Date      `json:"date"`
	Total    decimal.Decimal `json:"total"`
	VAT      decimal.Decimal `json:"vat"`
	Currency string          `json:"currency"`
	RawText  *string         `json:"rawText"`
	Lines    []Line          `json:"lines"`
}

// Voucher is a stored submission with its generated ID
type Voucher struct {
	VoucherID  string    `json:"voucherId"`
	Payload    Request   `json:"payload"`
	Remote     *string   `json:"remote"` // nil when the caller address is unknown
	ReceivedAt time.Time `json:"receivedAt"`
}

// requestBody mirrors Request with pointers so missing required fields can be told
// apart from zero values
type requestBody struct {
	Vendor   *string          `json:"vendor"`
	Date     *civil.Date      `json:"date"`
	Total    *decimal.Decimal `json:"total"`
	VAT      *decimal.Decimal `json:"vat"`
	Currency string           `json:"currency"`
	RawText  *string          `json:"rawText"`
	Lines    []Line           `json:"lines"`
}

// toRequest validates required fields
func (b requestBody) toRequest() (Request, error) {
	var missing []error
	if b.Vendor == nil {
		missing = append(missing, errors.New("vendor: field required"))
	}
	if b.Date == nil {
		missing = append(missing, errors.New("date: field required"))
	} else if !b.Date.IsValid() {
		missing = append(missing, errors.New("date: invalid date"))
	}
	if b.Total == nil {
		missing = append(missing, errors.New("total: field required"))
	}
	if b.VAT == nil {
		missing = append(missing, errors.New("vat: field required"))
	}
	if len(missing) > 0 {
		return Request{}, errors.Join(missing...)
	}

	lines := b.Lines
	if lines == nil {
		lines = []Line{}
	}

	return Request{
		Vendor:   *b.Vendor,
		Date:     *b.Date,
		Total:    *b.Total,
		VAT:      *b.VAT,
		Currency: b.Currency,
		RawText:  b.RawText,
		Lines:    lines,
	}, nil
}
