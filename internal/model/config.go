package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ProviderConfig holds the OAuth provider settings for the identity layer.
type ProviderConfig struct {
	// ClientID is the OAuth client identifier. The client secret lives
	// in the system keyring, never in this file.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// RedirectURI is where the provider sends the authorization code.
	RedirectURI string `mapstructure:"redirect_uri" yaml:"redirect_uri"`

	// AuthURL, TokenURL, and ProbeURL override the provider endpoints.
	// Empty values fall back to the Gmail endpoints.
	AuthURL  string `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL string `mapstructure:"token_url" yaml:"token_url"`
	ProbeURL string `mapstructure:"probe_url" yaml:"probe_url"`

	// Scope is the OAuth scope requested during authorization.
	Scope string `mapstructure:"scope" yaml:"scope"`
}

// MailboxConfig holds settings for the local filesystem mailbox source.
type MailboxConfig struct {
	// Root is the directory containing one subdirectory per folder.
	Root string `mapstructure:"root" yaml:"root"`

	// Folder is the folder opened at startup.
	Folder string `mapstructure:"folder" yaml:"folder"`
}

// IMAPConfig holds settings for the remote IMAP mailbox source.
type IMAPConfig struct {
	// Enabled selects IMAP over the local mailbox.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// Username is the account mail address used for OAUTHBEARER.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`

	// DBPath is where the local message/analysis cache lives.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// ConfigDir returns the mailscope configuration directory,
// ~/.config/mailscope.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailscope")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		Provider: ProviderConfig{
			RedirectURI: "http://localhost:8080/callback",
			Scope:       "https://www.googleapis.com/auth/gmail.readonly",
		},
		Mailbox: MailboxConfig{
			Root:   filepath.Join(home, "mail"),
			Folder: "INBOX",
		},
		IMAP: IMAPConfig{
			Port: "993",
			TLS:  true,
		},
		Display: DisplayConfig{
			Theme:           "default",
			PollIntervalSec: 120,
		},
		DBPath: filepath.Join(ConfigDir(), "mailscope.db"),
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("provider.redirect_uri", defaults.Provider.RedirectURI)
	v.SetDefault("provider.scope", defaults.Provider.Scope)
	v.SetDefault("mailbox.root", defaults.Mailbox.Root)
	v.SetDefault("mailbox.folder", defaults.Mailbox.Folder)
	v.SetDefault("imap.port", defaults.IMAP.Port)
	v.SetDefault("imap.tls", defaults.IMAP.TLS)
	v.SetDefault("display.theme", defaults.Display.Theme)
	v.SetDefault("display.poll_interval_sec", defaults.Display.PollIntervalSec)
	v.SetDefault("db_path", defaults.DBPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("provider", cfg.Provider)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("imap", cfg.IMAP)
	v.Set("display", cfg.Display)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}

	return nil
}
