package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grixate/fnbridge/internal/catalog"
	"github.com/grixate/fnbridge/internal/config"
	"github.com/grixate/fnbridge/internal/discovery"
	"github.com/grixate/fnbridge/internal/invoker"
	"github.com/grixate/fnbridge/internal/metadata"
	storepkg "github.com/grixate/fnbridge/internal/storage/bbolt"
	"github.com/grixate/fnbridge/internal/storage/sqlite"
	"github.com/grixate/fnbridge/internal/telemetry"
	"github.com/grixate/fnbridge/internal/todo"
)

// ErrUnknownFunction is returned by Invoke for a name the catalog does not
// hold under either its qualified or short form.
var ErrUnknownFunction = errors.New("unknown function")

const kvCapabilities = "capabilities"

type Runtime struct {
	Config  config.Config
	Store   *storepkg.Store
	Todos   *sqlite.TodoStore
	Catalog *catalog.Catalog
	Todo    *todo.Runtime
	Invoker *invoker.Invoker
	Poller  *discovery.Poller
	Metrics *telemetry.Metrics
	log     *log.Logger

	mu         sync.Mutex
	metricsSrv *http.Server
}

func BuildRuntime(cfg config.Config, logger *log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	store, err := storepkg.Open(cfg.Storage.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	todos, err := sqlite.Open(cfg.Storage.TodoDBPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open todo store: %w", err)
	}

	metrics := &telemetry.Metrics{}
	cat := catalog.New(metrics, logger)
	todoRuntime := todo.NewRuntime(todos, logger)
	r := &Runtime{
		Config:  cfg,
		Store:   store,
		Todos:   todos,
		Catalog: cat,
		Todo:    todoRuntime,
		Invoker: invoker.New(todoRuntime, metrics, store, logger),
		Poller:  discovery.NewPoller(discovery.FileSource{Path: cfg.Discovery.SnapshotPath}, cat, cfg.Discovery.PackageName, store, metrics, logger),
		Metrics: metrics,
		log:     logger,
	}

	if cfg.Discovery.AutoPublish {
		if _, err := os.Stat(cfg.Discovery.SnapshotPath); os.IsNotExist(err) {
			if err := r.Publish(cfg.Discovery.SnapshotPath); err != nil {
				logger.Printf("event=snapshot_publish_failed path=%s err=%v", cfg.Discovery.SnapshotPath, err)
			}
		}
	}
	if err := r.loadCapabilityOverrides(context.Background()); err != nil {
		logger.Printf("event=capability_overrides_load_failed owner=%s err=%v", cfg.Owner, err)
	}
	if err := r.Poller.Restore(context.Background()); err != nil {
		logger.Printf("event=discovery_restore_failed err=%v", err)
	}
	if _, err := r.Poller.Refresh(context.Background()); err != nil {
		logger.Printf("event=discovery_initial_refresh_failed err=%v", err)
	}
	return r, nil
}

// Publish writes the metadata of the bundled todo package as a snapshot
// file. The file is replaced atomically so a concurrent poll never reads a
// partial payload.
func (r *Runtime) Publish(path string) error {
	if strings.TrimSpace(path) == "" {
		path = r.Config.Discovery.SnapshotPath
	}
	payload, err := metadata.EncodeSnapshot([]metadata.PackageMetadata{todo.Metadata()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	r.log.Printf("event=snapshot_published path=%s bytes=%d", path, len(payload))
	return nil
}

// Invoke resolves name against the current catalog snapshot and runs it
// for the configured owner under the configured timeout.
func (r *Runtime) Invoke(ctx context.Context, name string, args map[string]json.RawMessage) (invoker.Result, error) {
	entry, ok := r.Catalog.Snapshot().Find(name)
	if !ok {
		return invoker.Result{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if timeout := r.Config.Runtime.InvokeTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Invoker.Invoke(ctx, r.Config.Owner, entry.Metadata, entry.Declaration, args), nil
}

// SetEnabled toggles a capability for the configured owner and persists the
// choice so later processes see it.
func (r *Runtime) SetEnabled(ctx context.Context, name string, enabled bool) (string, error) {
	entry, ok := r.Catalog.Snapshot().Find(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	fullName := entry.Declaration.Name
	if err := r.Todo.SetEnabled(r.Config.Owner, fullName, enabled); err != nil {
		return "", err
	}
	overrides, err := r.capabilityOverrides(ctx)
	if err != nil {
		return "", err
	}
	overrides[fullName] = enabled
	payload, err := json.Marshal(overrides)
	if err != nil {
		return "", err
	}
	if err := r.Store.PutKV(ctx, kvCapabilities, r.Config.Owner, payload); err != nil {
		return "", fmt.Errorf("persist capability override: %w", err)
	}
	r.log.Printf("event=capability_toggled owner=%s function=%s enabled=%v", r.Config.Owner, fullName, enabled)
	return fullName, nil
}

func (r *Runtime) capabilityOverrides(ctx context.Context) (map[string]bool, error) {
	overrides := map[string]bool{}
	payload, err := r.Store.GetKV(ctx, kvCapabilities, r.Config.Owner)
	if errors.Is(err, storepkg.ErrNotFound) {
		return overrides, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &overrides); err != nil {
		return nil, fmt.Errorf("decode capability overrides: %w", err)
	}
	return overrides, nil
}

func (r *Runtime) loadCapabilityOverrides(ctx context.Context) error {
	overrides, err := r.capabilityOverrides(ctx)
	if err != nil {
		return err
	}
	for name, enabled := range overrides {
		if err := r.Todo.SetEnabled(r.Config.Owner, name, enabled); err != nil {
			r.log.Printf("event=capability_override_skipped function=%s err=%v", name, err)
		}
	}
	return nil
}

// Watch polls the snapshot source on the configured schedule until ctx is
// done.
func (r *Runtime) Watch(ctx context.Context) error {
	if err := r.Poller.Start(r.Config.Discovery.Schedule); err != nil {
		return err
	}
	defer r.Poller.Stop()
	r.startMetricsHTTP()
	<-ctx.Done()
	return nil
}

func (r *Runtime) Close() error {
	r.Poller.Stop()
	r.mu.Lock()
	srv := r.metricsSrv
	r.metricsSrv = nil
	r.mu.Unlock()
	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
	return errors.Join(r.Todos.Close(), r.Store.Close())
}

func (r *Runtime) metricsHandler() http.Handler {
	settings := r.Config.Runtime.MetricsHTTP
	authToken := strings.TrimSpace(settings.AuthToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if settings.LocalhostOnly {
			host, _, err := net.SplitHostPort(req.RemoteAddr)
			if err == nil {
				ip := net.ParseIP(host)
				if ip == nil || !ip.IsLoopback() {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
		}
		if authToken != "" && req.Header.Get("Authorization") != "Bearer "+authToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(telemetry.PrometheusText(r.Metrics.Snapshot())))
	})
	return mux
}

func (r *Runtime) startMetricsHTTP() {
	if !r.Config.Runtime.MetricsEnabled {
		return
	}
	listenAddr := strings.TrimSpace(r.Config.Runtime.MetricsHTTP.ListenAddr)
	if listenAddr == "" {
		return
	}
	srv := &http.Server{Addr: listenAddr, Handler: r.metricsHandler()}
	r.mu.Lock()
	r.metricsSrv = srv
	r.mu.Unlock()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.log.Printf("event=metrics_http_stopped err=%v", err)
		}
	}()
}
