package app

import (
	"context"
	"path/filepath"
	"testing"

	"harbor-go/internal/config"
	"harbor-go/internal/harbor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Storage.Type = "memory"
	cfg.Storage.Path = ""
	cfg.Log.File = filepath.Join(dir, "harbor.log")
	return cfg
}

func TestNewAppWiring(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewApp(cfg, "Refresh", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if a.collector == nil || a.scheduler == nil || a.exporter == nil {
		t.Fatal("NewApp() left a dependency nil")
	}
	if a.encryptor != nil {
		t.Error("encryptor should be nil when encryption is off")
	}
	if a.run.Persisted() {
		t.Error("run persisted before any mutating operation")
	}
}

func TestAppRunLifecycle(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewApp(cfg, "Refresh", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	// An empty store has nothing live, so a refresh pass touches no
	// network and persists the run record.
	remaining, stats, err := a.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
	if stats.Inserted != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if !a.run.Persisted() {
		t.Fatal("mutating operation did not persist the run")
	}

	runs, err := a.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Operation != "Refresh" {
		t.Errorf("Operation = %q, want %q", runs[0].Operation, "Refresh")
	}
	if runs[0].Status != "running" {
		t.Errorf("Status before Close = %q, want %q", runs[0].Status, "running")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	runs, err = a.store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runs[0].Status != "success" {
		t.Errorf("Status after Close = %q, want %q", runs[0].Status, "success")
	}
	if runs[0].FinishedAt == nil {
		t.Error("FinishedAt not set after Close")
	}
}

func TestAppReadOnlyOperationsSkipRunRecord(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewApp(cfg, "GetHistory", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.GetHistory(10); err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if _, _, _, err := a.Counts(); err != nil {
		t.Fatalf("Counts() error = %v", err)
	}

	runs, err := a.store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("read-only command recorded %d runs, want 0", len(runs))
	}
}

func TestAppRejectsBadSort(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewApp(cfg, "CollectPosts", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.CollectPosts(context.Background(), []string{"golang"}, []string{"hot", "bestest"}, 10, harbor.PostOptions{}); err == nil {
		t.Fatal("expected error for unknown sort order")
	}
	if _, err := a.CollectPosts(context.Background(), []string{"golang"}, nil, 10, harbor.PostOptions{}); err == nil {
		t.Fatal("expected error for empty sort list")
	}
	if a.run.Persisted() {
		t.Error("run persisted despite argument error")
	}
}

func TestAppSync(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewApp(cfg, "Sync", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.Sync(context.Background(), harbor.TaskPost, "fortnight"); err == nil {
		t.Fatal("expected error for unknown duration keyword")
	}
	if a.run.Persisted() {
		t.Error("run persisted despite argument error")
	}

	// An empty store finishes after a single pass.
	passes, err := a.Sync(context.Background(), harbor.TaskPost, "hour")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if passes != 1 {
		t.Errorf("passes = %d, want 1", passes)
	}
	if !a.run.Persisted() {
		t.Error("sync did not persist the run")
	}
}
