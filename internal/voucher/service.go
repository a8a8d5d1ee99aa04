package voucher

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when the API key does not match
var ErrUnauthorized = errors.New("invalid API key")

// IDGenerator generates voucher IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDv4 strings
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the behaviour knobs of the accounting API mock
type Config struct {
	// APIKey is the expected x-api-key value; empty disables the check
	APIKey string
	// Delay is added before every create to simulate a slow upstream
	Delay time.Duration
	// DefaultCurrency fills in requests without a currency
	DefaultCurrency string
}

// Service handles voucher operations
type Service struct {
	store       Store
	cfg         Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(store Store, cfg Config) *Service {
	return NewServiceWithDeps(store, cfg, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, cfg Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	return &Service{
		store:       store,
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Authorize checks a caller supplied API key
func (s *Service) Authorize(apiKey string) error {
	if s.cfg.APIKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cfg.APIKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// CreateVoucher stores a submission and returns it with its new ID. remote is the
// caller's host, empty when unknown.
func (s *Service) CreateVoucher(ctx context.Context, req Request, remote string) (*Voucher, error) {
	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for simulated latency: %w", ctx.Err())
		}
	}

	if req.Currency == "" {
		req.Currency = s.cfg.DefaultCurrency
	}
	if req.Lines == nil {
		req.Lines = []Line{}
	}

	v := &Voucher{
		VoucherID:  s.idGenerator.Generate(),
		Payload:    req,
		ReceivedAt: s.timeSource.Now(),
	}
	if remote != "" {
		v.Remote = &remote
	}

	if err := s.store.Append(v); err != nil {
		return nil, fmt.Errorf("saving voucher: %w", err)
	}

	slog.Info("Voucher created", "voucher_id", v.VoucherID, "vendor", req.Vendor, "total", req.Total.String())
	return v, nil
}

// ListVouchers returns every stored voucher in insertion order
func (s *Service) ListVouchers() ([]*Voucher, error) {
	vouchers, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	if vouchers == nil {
		vouchers = []*Voucher{}
	}
	return vouchers, nil
}
