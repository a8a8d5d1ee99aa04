package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/zombor/lexiflow-mocks/internal/scanning"
)

var (
	// ErrNoInput is returned when neither a file nor a sample name was supplied
	ErrNoInput = errors.New("provide a file upload or sample_name")
	// ErrEmptyFile is returned for zero-byte uploads
	ErrEmptyFile = errors.New("empty file")
	// ErrSampleNotFound is returned when a sample name does not resolve to a file
	ErrSampleNotFound = errors.New("sample not found")
)

// defaultUploadSuffix is used when an upload has no file extension
const defaultUploadSuffix = ".png"

// IDGenerator generates names for temporary upload files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt extraction
type Service struct {
	scanner     scanning.Scanner
	samples     Storage
	temp        Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(scanner scanning.Scanner, samples, temp Storage) *Service {
	return NewServiceWithDeps(scanner, samples, temp, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, samples, temp Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		scanner:     scanner,
		samples:     samples,
		temp:        temp,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// EnsureSamples seeds the fixtures into the sample storage
func (s *Service) EnsureSamples() error {
	return EnsureSamples(s.samples)
}

// SampleDir returns the directory samples are read from
func (s *Service) SampleDir() string {
	return s.samples.Dir()
}

// ExtractSample extracts fields from a named sample fixture
func (s *Service) ExtractSample(ctx context.Context, name string) (*Result, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNoInput
	}

	filename := resolveSample(s.samples, name)
	if !s.samples.Exists(filename) {
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, filename)
	}

	data, err := s.samples.Get(filename)
	if err != nil {
		// Unreadable fixtures degrade like unreadable images
		slog.Warn("Failed to read sample", "filename", filename, "error", err)
	}

	text := s.readText(ctx, data, "")
	result := resolveText(text, filename, s.today())
	return &result, nil
}

// ExtractUpload extracts fields from an uploaded receipt. The upload is written to
// temp storage for the duration of the call and always removed.
func (s *Service) ExtractUpload(ctx context.Context, filename string, data []byte, contentType string) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	suffix := filepath.Ext(baseName(filename))
	if suffix == "" {
		suffix = defaultUploadSuffix
	}

	saved, err := s.temp.Save(s.idGenerator.Generate()+suffix, data)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	defer func() {
		if err := s.temp.Delete(saved); err != nil {
			slog.Warn("Failed to delete upload", "path", saved, "error", err)
		}
	}()

	stored, err := s.temp.Get(saved)
	if err != nil {
		slog.Warn("Failed to read upload", "path", saved, "error", err)
	}

	text := s.readText(ctx, stored, contentType)
	result := resolveText(text, baseName(filename), s.today())
	return &result, nil
}

// readText runs recognition, falling back to the text embedded in sample PNGs.
// Recognition failures are logged and yield empty text.
func (s *Service) readText(ctx context.Context, data []byte, contentType string) string {
	if len(data) == 0 {
		return ""
	}

	text, err := s.scanner.ScanText(ctx, data, contentType)
	if err != nil {
		if errors.Is(err, scanning.ErrRecognitionUnavailable) {
			slog.Debug("Recognition unavailable, using embedded text")
		} else {
			slog.Warn("Recognition failed", "content_type", contentType, "file_size", len(data), "error", err)
		}
		text = ""
	}

	if strings.TrimSpace(text) == "" {
		text, _ = scanning.ReadPNGText(data, scanning.SampleTextKey)
	}
	return strings.TrimSpace(text)
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.timeSource.Now())
}
