// Package telemetry - metrics.go registers the Prometheus metrics for the
// roster engine. All metrics go to the default registry and are served on the
// side-channel metrics port started by cmd/server, never on the main API
// listener.
//
// HTTP metrics are labelled by the Gin route template (c.FullPath()), not the
// raw URL, so user-supplied path segments such as trip or channel IDs cannot
// blow up label cardinality.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chravel/chravel-backend/internal/safego"
)

var (
	// HTTPRequestsTotal counts requests by method, route template, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

// Authorization engine metrics.
//
// AuthzDecisionsTotal records every channel-access evaluation. The "path"
// label names which access path decided the outcome (role_grant, admin,
// creator, explicit, super_admin) or "none" for denials; "outcome" is
// allow/deny. The ratio of allow paths is useful for spotting channels that
// are only reachable through admin override.
var (
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_channel_decisions_total",
			Help: "Channel access decisions, by deciding access path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	// RoleAssignmentsTotal counts assignment ledger mutations by operation
	// (assign, leave) and result (ok, forbidden, not_a_member,
	// cross_trip_role, not_found, error).
	RoleAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_assignments_total",
			Help: "Role assignment ledger operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// ChannelSyncRowsTotal counts derived channel membership rows added and
	// removed by the synchronizer.
	ChannelSyncRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sync_rows_total",
			Help: "Derived channel membership rows reconciled, by direction (added/removed).",
		},
		[]string{"direction"},
	)

	// RosterSyncEntriesTotal counts entries processed by bulk roster syncs,
	// by result (applied, skipped, failed).
	RosterSyncEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_sync_entries_total",
			Help: "Roster sync entries processed, by result.",
		},
		[]string{"result"},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use.",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections in the pool.",
		},
	)
)

// StartDBPoolGauge polls the sql.DB pool stats every interval and exports them
// as gauges. The goroutine runs for the life of the process.
func StartDBPoolGauge(db *sqlx.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	safego.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			dbConnectionsInUse.Set(float64(stats.InUse))
			dbConnectionsIdle.Set(float64(stats.Idle))
		}
	})

	slog.Debug("database pool gauge started", "interval", interval)
}
