package scanning

import (
	"context"
	"errors"
)

// ErrRecognitionUnavailable is returned by scanners that have no recognition engine
var ErrRecognitionUnavailable = errors.New("text recognition unavailable")

// Scanner defines the interface for receipt text recognition
type Scanner interface {
	// ScanText reads the text printed on a receipt image/PDF
	ScanText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// None is a Scanner without a recognition engine. Callers fall back to the
// text embedded in sample fixtures.
type None struct{}

// ScanText always fails with ErrRecognitionUnavailable
func (None) ScanText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	return "", ErrRecognitionUnavailable
}

// Close is a no-op
func (None) Close() error {
	return nil
}
