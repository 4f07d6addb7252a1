package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailscope/internal/analyzer"
	"github.com/nhle/mailscope/internal/app"
	"github.com/nhle/mailscope/internal/credential"
	"github.com/nhle/mailscope/internal/identity"
	"github.com/nhle/mailscope/internal/ingest"
	"github.com/nhle/mailscope/internal/ingest/imap"
	"github.com/nhle/mailscope/internal/ingest/local"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	logger, logFile := setupLogger()
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data directory: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening message cache: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	coord := buildCoordinator(cfg, logger)

	var mailbox ingest.Ingestor
	remote := cfg.IMAP.Enabled
	if remote {
		mailbox = imap.New(
			cfg.IMAP.Host,
			cfg.IMAP.Port,
			cfg.IMAP.Username,
			cfg.IMAP.TLS,
			coord,
		)
		logger.Info("using imap mailbox",
			"host", cfg.IMAP.Host, "port", cfg.IMAP.Port)
	} else {
		mailbox = local.New(cfg.Mailbox.Root)
		logger.Info("using local mailbox", "root", cfg.Mailbox.Root)
	}

	root := app.New(s, cfg, *configPath, coord, mailbox, analyzer.NewHeuristic(), remote)

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("ui stopped", "error", err)
		os.Exit(1)
	}
}

// setupLogger writes structured logs to a file under the config
// directory so they do not fight the TUI for the terminal.
func setupLogger() (*slog.Logger, *os.File) {
	dir := model.ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nil
	}

	f, err := os.OpenFile(
		filepath.Join(dir, "mailscope.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nil
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), f
}

// buildCoordinator wires the OAuth client and session token store. The
// client secret lives in the system keyring; a missing secret still
// yields a working coordinator that reports unauthenticated.
func buildCoordinator(cfg *model.AppConfig, logger *slog.Logger) *identity.Coordinator {
	secret, err := credential.ClientSecret()
	if err != nil {
		logger.Warn("reading client secret from keyring", "error", err)
	}

	eps := identity.GmailEndpoints()
	if cfg.Provider.AuthURL != "" {
		eps.AuthURL = cfg.Provider.AuthURL
	}
	if cfg.Provider.TokenURL != "" {
		eps.TokenURL = cfg.Provider.TokenURL
	}
	if cfg.Provider.ProbeURL != "" {
		eps.ProbeURL = cfg.Provider.ProbeURL
	}

	client := identity.NewClient(
		cfg.Provider.ClientID,
		secret,
		cfg.Provider.RedirectURI,
		eps,
	)
	return identity.NewCoordinator(client, identity.NewMemoryStore())
}
