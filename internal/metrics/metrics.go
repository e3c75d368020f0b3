// Package metrics exposes Prometheus instrumentation for platform actions.
//
// Label cardinality is bounded: platform is the closed three-value set,
// action is one of the fixed action names, and outcome is "success" or
// "failure". All collectors are safe for concurrent use.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opencontrib/mentionbridge/internal/models"
)

var platformActions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mentionbridge_platform_actions_total",
		Help: "Total number of attempted platform actions by outcome.",
	},
	[]string{"platform", "action", "outcome"},
)

// RecordAction counts one attempted platform action.
func RecordAction(platform models.Platform, action string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	platformActions.WithLabelValues(string(platform), action, outcome).Inc()
}
