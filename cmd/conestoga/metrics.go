package main

import "github.com/coverclock/com-diag-diminuto-sub002/pkg/metrics"

// newMetricsServer binds the debug metrics endpoint when -M was given.
func newMetricsServer(addr string, m *metrics.Metrics) *metrics.Server {
	return metrics.NewServer(addr, m)
}
