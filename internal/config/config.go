package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config is the full harbor configuration, persisted as TOML.
type Config struct {
	Reddit     RedditConfig     `toml:"reddit"`
	Storage    StorageConfig    `toml:"storage"`
	Tables     TablesConfig     `toml:"tables"`
	Redaction  RedactionConfig  `toml:"redaction"`
	Export     ExportConfig     `toml:"export"`
	Encryption EncryptionConfig `toml:"encryption"`
	Archive    ArchiveConfig    `toml:"archive"`
	Log        LogConfig        `toml:"log"`
}

// RedditConfig configures the public JSON client.
type RedditConfig struct {
	// UserAgent identifies the harvester to the platform. Required;
	// anonymous agents are throttled aggressively.
	UserAgent string `toml:"user_agent"`
	// RequestsPerMinute paces outbound calls. Zero uses the default
	// public-endpoint budget of 30.
	RequestsPerMinute int `toml:"requests_per_minute"`
	// BaseURL overrides the endpoint, for tests.
	BaseURL string `toml:"base_url"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Type string `toml:"type"` // "sqlite" or "memory"
	Path string `toml:"path"` // database file, sqlite only
}

// TablesConfig maps record kinds to table names. All four entries are
// required so that a dataset's layout is explicit in its config.
type TablesConfig struct {
	Authors  string `toml:"authors"`
	Posts    string `toml:"posts"`
	Comments string `toml:"comments"`
	Runs     string `toml:"runs"`
}

// RedactionConfig selects the PII masking backend.
type RedactionConfig struct {
	Type string `toml:"type"` // "none" or "presidio"
	// Presidio service endpoints.
	AnalyzerURL   string `toml:"analyzer_url"`
	AnonymizerURL string `toml:"anonymizer_url"`
}

// ExportConfig controls dataset dumps.
type ExportConfig struct {
	Dir string `toml:"dir"`
	// PageSize bounds rows loaded per chunk while dumping. Zero uses
	// the default of 1000.
	PageSize int `toml:"page_size"`
}

// EncryptionConfig controls at-rest encryption of export files. The
// public key seals exports; the private key is itself passphrase
// protected and only needed to open them again.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" or "age"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ArchiveConfig controls off-site upload of export archives.
type ArchiveConfig struct {
	Type   string `toml:"type"` // "none" or "s3"
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// LogConfig controls the operation log.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
	File  string `toml:"file"`  // empty logs to stderr only
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the parts of the configuration that every command
// depends on. Backend-specific fields are validated by the factories.
func (c *Config) Validate() error {
	if c.Reddit.UserAgent == "" {
		return fmt.Errorf("reddit.user_agent is required")
	}
	for name, value := range map[string]string{
		"tables.authors":  c.Tables.Authors,
		"tables.posts":    c.Tables.Posts,
		"tables.comments": c.Tables.Comments,
		"tables.runs":     c.Tables.Runs,
	} {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !identRe.MatchString(value) {
			return fmt.Errorf("%s: %q is not a valid table name", name, value)
		}
	}
	return nil
}

// Default returns the configuration written by `harbor config init`.
// dataDir roots the database, exports and logs.
func Default(dataDir string) *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent:         "harbor-go research harvester",
			RequestsPerMinute: 30,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: filepath.Join(dataDir, "harbor.db"),
		},
		Tables: TablesConfig{
			Authors:  "authors",
			Posts:    "posts",
			Comments: "comments",
			Runs:     "harvest_runs",
		},
		Redaction: RedactionConfig{
			Type: "none",
		},
		Export: ExportConfig{
			Dir:      filepath.Join(dataDir, "exports"),
			PageSize: 1000,
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(dataDir, "keys", "export.pub"),
			PrivateKeyPath: filepath.Join(dataDir, "keys", "export.key"),
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "harbor.log"),
		},
	}
}

// Manager reads and writes the configuration file.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// Exists reports whether the configuration file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Read loads and validates the configuration.
func (m *Manager) Read() (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(m.path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", m.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", m.path, err)
	}
	return &cfg, nil
}

// Write persists the configuration, creating parent directories as
// needed.
func (m *Manager) Write(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Init writes the default configuration unless the file already exists.
func (m *Manager) Init(dataDir string) (*Config, error) {
	if m.Exists() {
		return nil, fmt.Errorf("config already exists at %s", m.path)
	}
	cfg := Default(dataDir)
	if err := m.Write(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
