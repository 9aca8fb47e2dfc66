package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/terminowo/internal/document"
	"github.com/zombor/terminowo/internal/scanning"
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

	fs := ff.NewFlagSet("terminowo")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbPath           = fs.StringLong("db", "terminowo.db", "Database file path")
		storagePath      = fs.StringLong("storage", "./documents", "Storage directory path")
		scannerType      = fs.StringLong("scanner", "documentai", "Scanner type: 'documentai', 'gemini', 'ollama' or 'tesseract'")
		documentAIURL    = fs.StringLong("documentai-url", "", "Document AI process endpoint (or a proxy in front of it)")
		documentAIKey    = fs.StringLong("documentai-key", "", "API key sent to the Document AI proxy as X-API-Key")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL        = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel      = fs.StringLong("ollama-model", "qwen2-vl", "Ollama vision model name")
		tesseractLangs   = fs.StringLong("tesseract-langs", "pol,eng,ukr,rus", "Comma separated Tesseract languages")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		dispatchInterval = fs.DurationLong("dispatch-interval", time.Minute, "How often due reminders are sent")
		webhookURL       = fs.StringLong("webhook-url", "", "URL reminders are posted to as JSON (optional)")
		scanRetention    = fs.DurationLong("scan-retention", 24*time.Hour, "How long scans that were never saved are kept")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TERMINOWO"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing database...")
	db, err := document.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var scanner scanning.Scanner
	switch *scannerType {
	case "documentai":
		slog.Info("Initializing Document AI scanner...", "url", *documentAIURL)
		scanner, err = scanning.NewDocumentAI(*documentAIURL, *documentAIKey)
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "languages", *tesseractLangs)
		scanner, err = scanning.NewTesseract(strings.Split(*tesseractLangs, ","))
	default:
		err = fmt.Errorf("invalid scanner type %q, valid: documentai, gemini, ollama or tesseract", *scannerType)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "scanner", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...")
	store, err := document.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	documentService := document.NewService(db, scanner, store)

	var notifier document.Notifier = document.LogNotifier{}
	if *webhookURL != "" {
		notifier = document.MultiNotifier{notifier, document.NewWebhookNotifier(*webhookURL)}
	}
	dispatcher := document.NewDispatcher(db, notifier, *dispatchInterval)

	server := document.NewServer(documentService, document.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			slog.Error("Reminder dispatcher stopped", "error", err)
		}
	}()
	go func() {
		if err := documentService.RunScanPurge(ctx, time.Hour, *scanRetention); err != nil {
			slog.Error("Scan purge stopped", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
