package config

import "os"

type Status struct {
	ConfigPath   string
	ConfigOK     bool
	TodoDBPath   string
	TodoDBOK     bool
	StatePath    string
	StateOK      bool
	SnapshotPath string
	SnapshotOK   bool
}

func BuildStatus(configPath string, cfg Config) Status {
	if configPath == "" {
		configPath = ConfigPath()
	}
	status := Status{
		ConfigPath:   expandPath(configPath),
		TodoDBPath:   cfg.Storage.TodoDBPath,
		StatePath:    cfg.Storage.StatePath,
		SnapshotPath: cfg.Discovery.SnapshotPath,
	}
	status.ConfigOK = exists(status.ConfigPath)
	status.TodoDBOK = exists(status.TodoDBPath)
	status.StateOK = exists(status.StatePath)
	status.SnapshotOK = exists(status.SnapshotPath)
	return status
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
