package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

const metricPrefix = "fnbridge_"

var metricHelp = map[string]string{
	"invocations_total":             "Function invocations started.",
	"invocation_failures_total":     "Invocations that ended with an error.",
	"disabled_rejections_total":     "Invocations refused because the function is disabled.",
	"argument_errors_total":         "Invocations whose arguments could not be marshalled.",
	"runtime_errors_total":          "Failures reported by the capability runtime.",
	"response_fields_missing_total": "Required result fields absent from a response.",
	"catalog_replacements_total":    "Catalog snapshots published.",
	"catalog_declarations":          "Declarations in the current catalog snapshot.",
	"declarations_dropped_total":    "Declarations dropped while mapping metadata.",
	"discovery_refreshes_total":     "Metadata snapshots applied by discovery.",
	"discovery_errors_total":        "Discovery fetch or decode failures.",
	"invocations_in_flight":         "Invocations currently running.",
}

// PrometheusText renders a snapshot in the Prometheus text exposition
// format. Keys ending in _total are counters, everything else a gauge.
func PrometheusText(snapshot map[string]uint64) string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		metric := metricPrefix + key
		if help, ok := metricHelp[key]; ok {
			fmt.Fprintf(&b, "# HELP %s %s\n", metric, help)
		}
		kind := "gauge"
		if strings.HasSuffix(key, "_total") {
			kind = "counter"
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", metric, kind)
		fmt.Fprintf(&b, "%s %d\n", metric, snapshot[key])
	}
	return b.String()
}
