package config

import (
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := Default("/data/harbor")
	original.Reddit.UserAgent = "test-agent"
	original.Reddit.RequestsPerMinute = 12
	original.Redaction = RedactionConfig{
		Type:          "presidio",
		AnalyzerURL:   "http://localhost:5002",
		AnonymizerURL: "http://localhost:5001",
	}
	original.Tables.Posts = "finance_posts"

	m := NewManager(filepath.Join(t.TempDir(), "harbor.toml"))

	if err := m.Write(original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Reddit.UserAgent != "test-agent" {
		t.Errorf("Reddit.UserAgent = %q, want %q", got.Reddit.UserAgent, "test-agent")
	}
	if got.Reddit.RequestsPerMinute != 12 {
		t.Errorf("Reddit.RequestsPerMinute = %d, want 12", got.Reddit.RequestsPerMinute)
	}
	if got.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q, want %q", got.Storage.Type, "sqlite")
	}
	if got.Storage.Path != "/data/harbor/harbor.db" {
		t.Errorf("Storage.Path = %q", got.Storage.Path)
	}
	if got.Tables.Posts != "finance_posts" {
		t.Errorf("Tables.Posts = %q, want %q", got.Tables.Posts, "finance_posts")
	}
	if got.Redaction.AnalyzerURL != "http://localhost:5002" {
		t.Errorf("Redaction.AnalyzerURL = %q", got.Redaction.AnalyzerURL)
	}
	if got.Encryption.PublicKeyPath != "/data/harbor/keys/export.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", got.Encryption.PublicKeyPath)
	}
	if got.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", got.Log.Level, "info")
	}
}

func TestManager_Read_MissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := m.Read(); err == nil {
		t.Error("Read() of missing file succeeded")
	}
}

func TestManager_Init_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "harbor.toml"))

	if _, err := m.Init(dir); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !m.Exists() {
		t.Fatal("config file not written")
	}
	if _, err := m.Init(dir); err == nil {
		t.Error("second Init() succeeded, want refusal")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing user agent",
			mutate:  func(c *Config) { c.Reddit.UserAgent = "" },
			wantErr: true,
		},
		{
			name:    "missing table name",
			mutate:  func(c *Config) { c.Tables.Comments = "" },
			wantErr: true,
		},
		{
			name:    "table name with injection",
			mutate:  func(c *Config) { c.Tables.Posts = "posts; drop table posts" },
			wantErr: true,
		},
		{
			name:   "underscored table name",
			mutate: func(c *Config) { c.Tables.Posts = "esg_posts_2026" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/data/harbor")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
