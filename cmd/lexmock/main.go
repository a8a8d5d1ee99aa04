package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/lexiflow-mocks/internal/voucher"
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

	// A missing .env is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	flags := ff.NewFlagSet("lexmock")
	var (
		port        = flags.IntLong("port", 8080, "HTTP server port")
		apiKey      = flags.StringLong("api-key", "demo-lexoffice-key", "Expected x-api-key header value (empty disables the check)")
		delayMS     = flags.IntLong("delay-ms", 0, "Artificial delay before each voucher is stored, in milliseconds")
		currency    = flags.StringLong("currency", "EUR", "Currency applied to vouchers that omit one")
		dbPath      = flags.StringLong("db", "", "BoltDB file for vouchers (empty keeps them in memory)")
		showVersion = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("LEXMOCK"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *delayMS < 0 {
		slog.Error("Delay must not be negative", "delay_ms", *delayMS)
		os.Exit(1)
	}

	// Initialize store
	var store voucher.Store
	if *dbPath != "" {
		slog.Info("Opening voucher database...", "path", *dbPath)
		bolt, err := voucher.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to open voucher database", "error", err)
			os.Exit(1)
		}
		store = bolt
	} else {
		slog.Info("Keeping vouchers in memory")
		store = voucher.NewMemoryStore()
	}
	defer store.Close()

	service := voucher.NewService(store, voucher.Config{
		APIKey:          *apiKey,
		Delay:           time.Duration(*delayMS) * time.Millisecond,
		DefaultCurrency: *currency,
	})
	server := voucher.NewServer(service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *apiKey == "" {
		slog.Warn("API key check disabled")
	}

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		store.Close()
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
