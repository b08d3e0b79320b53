package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ---------------------------------------------------------------------------
// Metric registration sanity checks — verify every exported metric is properly
// registered and carries the expected fully-qualified name.
//
// We check registration via Describe() rather than DefaultGatherer.Gather()
// because Gather() only returns series that have been observed at least once;
// *Vec metrics with no label combinations yet used are silently absent from
// Gather output even though they are correctly registered.
// ---------------------------------------------------------------------------

func TestMetrics_AllRegistered(t *testing.T) {
	type describer interface {
		Describe(chan<- *prometheus.Desc)
	}

	cases := []struct {
		name string
		c    describer
	}{
		{"http_requests_total", HTTPRequestsTotal},
		{"http_request_duration_seconds", HTTPRequestDuration},
		{"authz_channel_decisions_total", AuthzDecisionsTotal},
		{"role_assignments_total", RoleAssignmentsTotal},
		{"channel_sync_rows_total", ChannelSyncRowsTotal},
		{"roster_sync_entries_total", RosterSyncEntriesTotal},
		{"db_connections_in_use", dbConnectionsInUse},
		{"db_connections_idle", dbConnectionsIdle},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				// prometheus.Desc.String() returns a Go syntax string of the form:
				//   Desc{fqName: "<name>", help: "...", constLabels: {}, variableLabels: [...]}
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return // found — test passes
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_AuthzDecisionsTotal_CanBeIncremented(t *testing.T) {
	before := counterValue(t, AuthzDecisionsTotal, prometheus.Labels{
		"path": "creator", "outcome": "allow",
	})
	AuthzDecisionsTotal.WithLabelValues("creator", "allow").Inc()
	after := counterValue(t, AuthzDecisionsTotal, prometheus.Labels{
		"path": "creator", "outcome": "allow",
	})
	if after-before < 1 {
		t.Errorf("AuthzDecisionsTotal.Inc() did not increase counter (before=%.0f after=%.0f)", before, after)
	}
}

func TestMetrics_RoleAssignmentsTotal_CanBeIncremented(t *testing.T) {
	before := counterValue(t, RoleAssignmentsTotal, prometheus.Labels{
		"operation": "assign", "result": "ok",
	})
	RoleAssignmentsTotal.WithLabelValues("assign", "ok").Inc()
	after := counterValue(t, RoleAssignmentsTotal, prometheus.Labels{
		"operation": "assign", "result": "ok",
	})
	if after-before < 1 {
		t.Errorf("RoleAssignmentsTotal.Inc() did not increase counter")
	}
}

func TestMetrics_ChannelSyncRowsTotal_CanBeIncremented(t *testing.T) {
	before := counterValue(t, ChannelSyncRowsTotal, prometheus.Labels{"direction": "added"})
	ChannelSyncRowsTotal.WithLabelValues("added").Add(3)
	after := counterValue(t, ChannelSyncRowsTotal, prometheus.Labels{"direction": "added"})
	if after-before < 3 {
		t.Errorf("ChannelSyncRowsTotal.Add(3) did not increase counter by 3 (before=%.0f after=%.0f)", before, after)
	}
}

// counterValue reads the current value from a CounterVec for the given label
// values. Returns 0 if no matching series has been observed yet.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 20)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
