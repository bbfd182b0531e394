package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultPathsLiveUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := Default()
	root := filepath.Join(home, ".fnbridge", "data")
	if cfg.Storage.TodoDBPath != filepath.Join(root, "todos.db") {
		t.Fatalf("unexpected todo db path: %s", cfg.Storage.TodoDBPath)
	}
	if cfg.Discovery.SnapshotPath != filepath.Join(root, "snapshot.json") {
		t.Fatalf("unexpected snapshot path: %s", cfg.Discovery.SnapshotPath)
	}
	if cfg.Runtime.InvokeTimeout.Duration != 30*time.Second {
		t.Fatalf("unexpected invoke timeout: %s", cfg.Runtime.InvokeTimeout)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Owner != "cli" || cfg.Discovery.PackageName != "com.grixate.todo" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestSaveLoadJSONRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Owner = "agent"
	cfg.Runtime.InvokeTimeout = DurationValue{Duration: 5 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Owner != "agent" || loaded.Runtime.InvokeTimeout.Duration != 5*time.Second {
		t.Fatalf("unexpected loaded config: %+v", loaded)
	}
}

func TestLoadYAMLWithHomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"owner: planner",
		"storage:",
		"  todoDbPath: ~/tasks/todos.db",
		"discovery:",
		"  schedule: \"*/5 * * * *\"",
		"runtime:",
		"  invokeTimeout: 750ms",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Owner != "planner" {
		t.Fatalf("unexpected owner: %q", cfg.Owner)
	}
	if cfg.Storage.TodoDBPath != filepath.Join(home, "tasks", "todos.db") {
		t.Fatalf("home not expanded: %s", cfg.Storage.TodoDBPath)
	}
	if cfg.Discovery.Schedule != "*/5 * * * *" {
		t.Fatalf("unexpected schedule: %q", cfg.Discovery.Schedule)
	}
	if cfg.Runtime.InvokeTimeout.Duration != 750*time.Millisecond {
		t.Fatalf("unexpected timeout: %s", cfg.Runtime.InvokeTimeout)
	}
	if cfg.Storage.StatePath == "" {
		t.Fatal("fields absent from the file keep their defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FNBRIDGE_OWNER", "env-owner")
	t.Setenv("FNBRIDGE_METRICS_ENABLED", "false")
	t.Setenv("FNBRIDGE_INVOKE_TIMEOUT", "2s")
	t.Setenv("FNBRIDGE_EVENT_LIMIT", "nope")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Owner != "env-owner" || cfg.Runtime.MetricsEnabled {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Runtime.InvokeTimeout.Duration != 2*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.Runtime.InvokeTimeout)
	}
	if cfg.Runtime.EventLimit != 20 {
		t.Fatalf("invalid env value must be ignored, got %d", cfg.Runtime.EventLimit)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Config{}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"todoDbPath", "statePath", "snapshotPath"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestBuildStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Discovery.SnapshotPath = filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(cfg.Discovery.SnapshotPath, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	status := BuildStatus(filepath.Join(dir, "config.json"), cfg)
	if status.ConfigOK || !status.SnapshotOK {
		t.Fatalf("unexpected status: %+v", status)
	}
}
