// Package discovery delivers metadata snapshots into the catalog, either on
// demand or on a cron schedule, and keeps the last good snapshot so the
// catalog can be restored at startup.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	gocron "github.com/robfig/cron/v3"

	"github.com/grixate/fnbridge/internal/catalog"
	"github.com/grixate/fnbridge/internal/metadata"
	storepkg "github.com/grixate/fnbridge/internal/storage/bbolt"
	"github.com/grixate/fnbridge/internal/telemetry"
)

const (
	kvNamespace = "discovery"
	kvSnapshot  = "snapshot"
)

type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads a snapshot published as a JSON file.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("snapshot path required")
	}
	return os.ReadFile(f.Path)
}

type SnapshotStore interface {
	PutKV(ctx context.Context, namespace, key string, value []byte) error
	GetKV(ctx context.Context, namespace, key string) ([]byte, error)
}

type Poller struct {
	source      Source
	catalog     *catalog.Catalog
	packageName string
	store       SnapshotStore
	metrics     *telemetry.Metrics
	log         *log.Logger

	mu      sync.Mutex
	last    []byte
	applied bool
	cron    *gocron.Cron
}

// NewPoller wires a poller. store and metrics are optional.
func NewPoller(source Source, cat *catalog.Catalog, packageName string, store SnapshotStore, metrics *telemetry.Metrics, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	return &Poller{
		source:      source,
		catalog:     cat,
		packageName: packageName,
		store:       store,
		metrics:     metrics,
		log:         logger,
	}
}

// Refresh fetches the source and replaces the catalog when the payload
// changed. It reports whether a replacement happened. A failed fetch or an
// undecodable payload leaves the catalog untouched.
func (p *Poller) Refresh(ctx context.Context) (bool, error) {
	payload, err := p.source.Fetch(ctx)
	if err != nil {
		p.metrics.DiscoveryErrors.Add(1)
		p.log.Printf("event=discovery_fetch_failed err=%v", err)
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applied && bytes.Equal(payload, p.last) {
		return false, nil
	}
	if err := p.apply(payload); err != nil {
		return false, err
	}
	if p.store != nil {
		if err := p.store.PutKV(ctx, kvNamespace, kvSnapshot, payload); err != nil {
			p.log.Printf("event=discovery_persist_failed err=%v", err)
		}
	}
	return true, nil
}

// Restore loads the last persisted snapshot into the catalog. A store
// without a snapshot is not an error.
func (p *Poller) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	payload, err := p.store.GetKV(ctx, kvNamespace, kvSnapshot)
	if errors.Is(err, storepkg.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(payload)
}

func (p *Poller) apply(payload []byte) error {
	pkgs, err := metadata.DecodeSnapshot(payload)
	if err != nil {
		p.metrics.DiscoveryErrors.Add(1)
		p.log.Printf("event=discovery_decode_failed err=%v", err)
		return err
	}
	pkg, _ := metadata.SelectPackage(pkgs, p.packageName)
	snap := p.catalog.Replace(pkg.Functions)
	p.last = append([]byte(nil), payload...)
	p.applied = true
	p.metrics.DiscoveryRefreshes.Add(1)
	p.log.Printf("event=discovery_applied package=%s declarations=%d dropped=%d", pkg.PackageName, snap.Len(), len(snap.Dropped()))
	return nil
}

// Start runs Refresh on a standard five-field cron expression or a
// descriptor such as "@every 30s".
func (p *Poller) Start(schedule string) error {
	parser := gocron.NewParser(gocron.Minute | gocron.Hour | gocron.Dom | gocron.Month | gocron.Dow | gocron.Descriptor)
	c := gocron.New(gocron.WithParser(parser))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := p.Refresh(context.Background()); err != nil {
			p.log.Printf("event=discovery_refresh_failed err=%v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid discovery schedule %q: %w", schedule, err)
	}
	p.mu.Lock()
	if p.cron != nil {
		p.mu.Unlock()
		return errors.New("poller already started")
	}
	p.cron = c
	p.mu.Unlock()
	c.Start()
	p.log.Printf("event=discovery_started schedule=%q", schedule)
	return nil
}

func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
