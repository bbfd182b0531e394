package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Owner     string          `json:"owner" yaml:"owner"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Runtime   RuntimeConfig   `json:"runtime" yaml:"runtime"`
}

type StorageConfig struct {
	TodoDBPath string `json:"todoDbPath" yaml:"todoDbPath"`
	StatePath  string `json:"statePath" yaml:"statePath"`
}

type DiscoveryConfig struct {
	SnapshotPath string `json:"snapshotPath" yaml:"snapshotPath"`
	PackageName  string `json:"packageName" yaml:"packageName"`
	Schedule     string `json:"schedule" yaml:"schedule"`
	AutoPublish  bool   `json:"autoPublish" yaml:"autoPublish"`
}

type RuntimeConfig struct {
	InvokeTimeout  DurationValue     `json:"invokeTimeout" yaml:"invokeTimeout"`
	EventLimit     int               `json:"eventLimit" yaml:"eventLimit"`
	MetricsHTTP    MetricsHTTPConfig `json:"metricsHttp" yaml:"metricsHttp"`
	MetricsEnabled bool              `json:"metricsEnabled" yaml:"metricsEnabled"`
}

type MetricsHTTPConfig struct {
	ListenAddr    string `json:"listenAddr" yaml:"listenAddr"`
	LocalhostOnly bool   `json:"localhostOnly" yaml:"localhostOnly"`
	AuthToken     string `json:"authToken,omitempty" yaml:"authToken,omitempty"`
}

type DurationValue struct {
	time.Duration
}

func (d DurationValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DurationValue) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, parseErr := time.ParseDuration(asString)
		if parseErr != nil {
			return parseErr
		}
		d.Duration = parsed
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		d.Duration = time.Duration(asNumber)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", string(data))
}

func (d DurationValue) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *DurationValue) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("invalid duration value %q: %w", node.Value, err)
	}
	d.Duration = parsed
	return nil
}

func Default() Config {
	data := DataRoot()
	return Config{
		Owner: "cli",
		Storage: StorageConfig{
			TodoDBPath: filepath.Join(data, "todos.db"),
			StatePath:  filepath.Join(data, "fnbridge.db"),
		},
		Discovery: DiscoveryConfig{
			SnapshotPath: filepath.Join(data, "snapshot.json"),
			PackageName:  "com.grixate.todo",
			Schedule:     "@every 30s",
			AutoPublish:  true,
		},
		Runtime: RuntimeConfig{
			InvokeTimeout:  DurationValue{Duration: 30 * time.Second},
			MetricsEnabled: true,
			EventLimit:     20,
			MetricsHTTP: MetricsHTTPConfig{
				ListenAddr:    "127.0.0.1:9464",
				LocalhostOnly: true,
			},
		},
	}
}

func HomeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ".fnbridge"
	}
	return filepath.Join(h, ".fnbridge")
}

func ConfigPath() string {
	return filepath.Join(HomeDir(), "config.json")
}

func DataRoot() string {
	return filepath.Join(HomeDir(), "data")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		h, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(h, path[2:])
		}
	}
	return path
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a JSON config, or YAML when the file ends in .yaml or .yml.
// A missing file yields the defaults. Environment overrides apply last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)
	bytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			normalize(&cfg)
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(bytes, &cfg)
	} else {
		err = json.Unmarshal(bytes, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnvOverrides(cfg *Config) {
	env := map[string]*string{
		"FNBRIDGE_OWNER":                  &cfg.Owner,
		"FNBRIDGE_TODO_DB_PATH":           &cfg.Storage.TodoDBPath,
		"FNBRIDGE_STATE_PATH":             &cfg.Storage.StatePath,
		"FNBRIDGE_DISCOVERY_SNAPSHOT":     &cfg.Discovery.SnapshotPath,
		"FNBRIDGE_DISCOVERY_PACKAGE_NAME": &cfg.Discovery.PackageName,
		"FNBRIDGE_DISCOVERY_SCHEDULE":     &cfg.Discovery.Schedule,
		"FNBRIDGE_METRICS_LISTEN_ADDR":    &cfg.Runtime.MetricsHTTP.ListenAddr,
		"FNBRIDGE_METRICS_AUTH_TOKEN":     &cfg.Runtime.MetricsHTTP.AuthToken,
	}
	for key, target := range env {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*target = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("FNBRIDGE_DISCOVERY_AUTO_PUBLISH")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Discovery.AutoPublish = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("FNBRIDGE_METRICS_ENABLED")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Runtime.MetricsEnabled = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("FNBRIDGE_INVOKE_TIMEOUT")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.Runtime.InvokeTimeout = DurationValue{Duration: parsed}
		}
	}
	if value := strings.TrimSpace(os.Getenv("FNBRIDGE_EVENT_LIMIT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			cfg.Runtime.EventLimit = parsed
		}
	}
}

func normalize(cfg *Config) {
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	if cfg.Owner == "" {
		cfg.Owner = "cli"
	}
	cfg.Storage.TodoDBPath = expandPath(cfg.Storage.TodoDBPath)
	cfg.Storage.StatePath = expandPath(cfg.Storage.StatePath)
	cfg.Discovery.SnapshotPath = expandPath(cfg.Discovery.SnapshotPath)
	if cfg.Runtime.EventLimit <= 0 {
		cfg.Runtime.EventLimit = 20
	}
}

func Validate(cfg Config) error {
	var problems []string
	if strings.TrimSpace(cfg.Storage.TodoDBPath) == "" {
		problems = append(problems, "storage.todoDbPath is required")
	}
	if strings.TrimSpace(cfg.Storage.StatePath) == "" {
		problems = append(problems, "storage.statePath is required")
	}
	if strings.TrimSpace(cfg.Discovery.SnapshotPath) == "" {
		problems = append(problems, "discovery.snapshotPath is required")
	}
	if cfg.Runtime.InvokeTimeout.Duration < 0 {
		problems = append(problems, "runtime.invokeTimeout must not be negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
