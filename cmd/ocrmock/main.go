package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/lexiflow-mocks/internal/extraction"
	"github.com/zombor/lexiflow-mocks/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	flags := ff.NewFlagSet("ocrmock")
	var (
		port        = flags.IntLong("port", 8081, "HTTP server port")
		samplePath  = flags.StringLong("sample-path", "/ocr/samples", "Directory holding the sample receipts")
		tempPath    = flags.StringLong("temp-path", "/tmp/ocr", "Directory for uploads while they are processed")
		scannerType = flags.StringLong("scanner", "none", "Text recognition: 'none', 'gemini' or 'ollama'")
		geminiKey   = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = flags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = flags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		enhance     = flags.BoolLong("enhance", "Grayscale and sharpen images before recognition")
		sample      = flags.StringLong("sample", "r1.png", "Sample to extract when not serving")
		serve       = flags.BoolLong("serve", "Run the HTTP server instead of extracting one sample")
		showVersion = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	scanner, err := newScanner(*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel, *enhance)
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	samples, err := extraction.NewLocalStorage(*samplePath)
	if err != nil {
		slog.Error("Failed to initialize sample storage", "error", err)
		os.Exit(1)
	}
	temp, err := extraction.NewLocalStorage(*tempPath)
	if err != nil {
		slog.Error("Failed to initialize temp storage", "error", err)
		os.Exit(1)
	}

	service := extraction.NewService(scanner, samples, temp)
	if err := service.EnsureSamples(); err != nil {
		slog.Error("Failed to create samples", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*serve {
		if err := printSample(ctx, service, *sample); err != nil {
			fmt.Fprintln(os.Stderr, err)
			scanner.Close()
			os.Exit(1)
		}
		return
	}

	server := extraction.NewServer(service)
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "scanner", *scannerType, "version", version)

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		scanner.Close()
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

// newScanner builds the recognition backend named by scannerType
func newScanner(scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string, enhance bool) (scanning.Scanner, error) {
	switch scannerType {
	case "none", "":
		slog.Info("Text recognition disabled, using embedded sample text")
		return scanning.None{}, nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required; set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", geminiModel)
		return scanning.NewGemini(apiKey, geminiModel, enhance)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel, enhance)
	default:
		return nil, fmt.Errorf("invalid scanner type %q, valid: none, gemini or ollama", scannerType)
	}
}

// printSample extracts one sample and writes the result to stdout as indented JSON
func printSample(ctx context.Context, service *extraction.Service, name string) error {
	result, err := service.ExtractSample(ctx, name)
	if err != nil {
		if errors.Is(err, extraction.ErrSampleNotFound) || errors.Is(err, extraction.ErrNoInput) {
			return fmt.Errorf("Sample '%s' not found in %s", name, service.SampleDir())
		}
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
