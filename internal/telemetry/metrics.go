package telemetry

import (
	"sync/atomic"
)

type Metrics struct {
	Invocations           atomic.Uint64
	InvocationFailures    atomic.Uint64
	DisabledRejections    atomic.Uint64
	ArgumentErrors        atomic.Uint64
	RuntimeErrors         atomic.Uint64
	ResponseFieldsMissing atomic.Uint64
	CatalogReplacements   atomic.Uint64
	CatalogDeclarations   atomic.Int64
	DeclarationsDropped   atomic.Uint64
	DiscoveryRefreshes    atomic.Uint64
	DiscoveryErrors       atomic.Uint64
	InFlight              atomic.Int64
}

func (m *Metrics) Snapshot() map[string]uint64 {
	declarations := m.CatalogDeclarations.Load()
	if declarations < 0 {
		declarations = 0
	}
	inFlight := m.InFlight.Load()
	if inFlight < 0 {
		inFlight = 0
	}
	return map[string]uint64{
		"invocations_total":             m.Invocations.Load(),
		"invocation_failures_total":     m.InvocationFailures.Load(),
		"disabled_rejections_total":     m.DisabledRejections.Load(),
		"argument_errors_total":         m.ArgumentErrors.Load(),
		"runtime_errors_total":          m.RuntimeErrors.Load(),
		"response_fields_missing_total": m.ResponseFieldsMissing.Load(),
		"catalog_replacements_total":    m.CatalogReplacements.Load(),
		"catalog_declarations":          uint64(declarations),
		"declarations_dropped_total":    m.DeclarationsDropped.Load(),
		"discovery_refreshes_total":     m.DiscoveryRefreshes.Load(),
		"discovery_errors_total":        m.DiscoveryErrors.Load(),
		"invocations_in_flight":         uint64(inFlight),
	}
}
