package catalog

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/grixate/fnbridge/internal/metadata"
	"github.com/grixate/fnbridge/internal/schema"
	"github.com/grixate/fnbridge/internal/telemetry"
)

type Entry struct {
	Declaration schema.FunctionDeclaration
	Metadata    metadata.FunctionMetadata
}

// Snapshot is one immutable generation of the catalog.
type Snapshot struct {
	version      uint64
	entries      map[string]Entry
	declarations []schema.FunctionDeclaration
	dropped      []error
}

// BuildSnapshot maps every function independently. A function whose
// metadata cannot be mapped is dropped and its error kept in Dropped.
func BuildSnapshot(fns []metadata.FunctionMetadata) *Snapshot {
	snap := &Snapshot{entries: make(map[string]Entry, len(fns))}
	for _, fn := range fns {
		if _, dup := snap.entries[fn.ID]; dup {
			snap.dropped = append(snap.dropped, fmt.Errorf("function %s: duplicate id", fn.ID))
			continue
		}
		decl, err := ToFunctionDeclaration(fn)
		if err != nil {
			snap.dropped = append(snap.dropped, err)
			continue
		}
		snap.entries[fn.ID] = Entry{Declaration: decl, Metadata: fn}
		snap.declarations = append(snap.declarations, decl)
	}
	sort.SliceStable(snap.declarations, func(i, j int) bool {
		if snap.declarations[i].ShortName == snap.declarations[j].ShortName {
			return snap.declarations[i].Name < snap.declarations[j].Name
		}
		return snap.declarations[i].ShortName < snap.declarations[j].ShortName
	})
	return snap
}

func (s *Snapshot) Version() uint64 { return s.version }

func (s *Snapshot) Len() int { return len(s.entries) }

func (s *Snapshot) Dropped() []error { return append([]error(nil), s.dropped...) }

// Declarations returns the declarations sorted by short name.
func (s *Snapshot) Declarations() []schema.FunctionDeclaration {
	return append([]schema.FunctionDeclaration(nil), s.declarations...)
}

func (s *Snapshot) Lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Find resolves a full name, or a short name when it is unambiguous.
func (s *Snapshot) Find(name string) (Entry, bool) {
	if e, ok := s.entries[name]; ok {
		return e, true
	}
	var found Entry
	matches := 0
	for _, decl := range s.declarations {
		if decl.ShortName == name {
			found = s.entries[decl.Name]
			matches++
		}
	}
	return found, matches == 1
}

// Catalog holds the current snapshot. Replace swaps it atomically, so
// readers always see one complete generation.
type Catalog struct {
	writeMu  sync.Mutex
	current  atomic.Pointer[Snapshot]
	versions atomic.Uint64
	metrics  *telemetry.Metrics
	log      *log.Logger
}

func New(metrics *telemetry.Metrics, logger *log.Logger) *Catalog {
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	if logger == nil {
		logger = log.Default()
	}
	c := &Catalog{metrics: metrics, log: logger}
	c.current.Store(&Snapshot{entries: map[string]Entry{}})
	return c
}

// Replace maps fns into a new snapshot and publishes it. Concurrent writers
// are serialized, so published versions only ever increase.
func (c *Catalog) Replace(fns []metadata.FunctionMetadata) *Snapshot {
	snap := BuildSnapshot(fns)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	snap.version = c.versions.Add(1)
	for _, err := range snap.dropped {
		c.log.Printf("event=declaration_dropped version=%d err=%v", snap.version, err)
	}
	c.current.Store(snap)
	c.metrics.CatalogReplacements.Add(1)
	c.metrics.DeclarationsDropped.Add(uint64(len(snap.dropped)))
	c.metrics.CatalogDeclarations.Store(int64(snap.Len()))
	c.log.Printf("event=catalog_replaced version=%d declarations=%d dropped=%d", snap.version, snap.Len(), len(snap.dropped))
	return snap
}

func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

func (c *Catalog) Declarations() []schema.FunctionDeclaration {
	return c.Snapshot().Declarations()
}

func (c *Catalog) Lookup(name string) (Entry, bool) {
	return c.Snapshot().Lookup(name)
}

// Metadata returns the metadata that produced decl in the current snapshot.
func (c *Catalog) Metadata(decl schema.FunctionDeclaration) (metadata.FunctionMetadata, bool) {
	e, ok := c.Snapshot().Lookup(decl.Name)
	if !ok {
		return metadata.FunctionMetadata{}, false
	}
	return e.Metadata, true
}
