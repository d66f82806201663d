package expr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// canonicalizeTotal counts canonicalization runs.
	// Labels: result (ok, dcp_violation, error)
	canonicalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvxir",
		Name:      "canonicalize_total",
		Help:      "Total canonicalization runs by result",
	}, []string{"result"})

	// dcpViolations counts DCP rejections by offending atom.
	// Labels: atom
	dcpViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvxir",
		Name:      "dcp_violations_total",
		Help:      "Total DCP violations by offending atom",
	}, []string{"atom"})

	// auxVariables counts auxiliary variables introduced by lowering.
	auxVariables = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cvxir",
		Name:      "aux_variables_total",
		Help:      "Total auxiliary variables introduced during canonicalization",
	})

	// canonicalizeDuration measures canonicalization latency.
	canonicalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cvxir",
		Name:      "canonicalize_duration_seconds",
		Help:      "Canonicalization latency in seconds",
		Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	})
)

const (
	resultOK           = "ok"
	resultDCPViolation = "dcp_violation"
	resultError        = "error"
)
