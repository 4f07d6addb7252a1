package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mailbox.Folder != "INBOX" {
		t.Errorf("default folder = %q, want INBOX", cfg.Mailbox.Folder)
	}
	if cfg.Display.PollIntervalSec != 120 {
		t.Errorf("default poll interval = %d, want 120", cfg.Display.PollIntervalSec)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig defaults: %v", err)
	}
	cfg.Provider.ClientID = "abc.apps.googleusercontent.com"
	cfg.Mailbox.Folder = "Archive"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after save: %v", err)
	}
	if got.Provider.ClientID != cfg.Provider.ClientID {
		t.Errorf("ClientID = %q, want %q", got.Provider.ClientID, cfg.Provider.ClientID)
	}
	if got.Mailbox.Folder != "Archive" {
		t.Errorf("Folder = %q, want Archive", got.Mailbox.Folder)
	}
	if got.Display.PollIntervalSec != cfg.Display.PollIntervalSec {
		t.Errorf("PollIntervalSec = %d, want %d", got.Display.PollIntervalSec, cfg.Display.PollIntervalSec)
	}
}
