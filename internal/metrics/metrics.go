// Package metrics exposes prometheus counters for the interception path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Interceptions counts dispatcher check outcomes per request, labeled by
// check name and what the check did with the request.
var Interceptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "interceptions_total",
	Help:      "Middleware check outcomes per request.",
}, []string{"check", "outcome"})
