// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WalletsGenerated prometheus.Counter
	FlightShared     prometheus.Counter
	CompilerRuns     prometheus.Counter
	CompilerFailures *prometheus.CounterVec
	CompileDuration  prometheus.Histogram
	StoreLookups     *prometheus.CounterVec
	SpendOutcomes    *prometheus.CounterVec
	APIRequests      *prometheus.CounterVec

	// only init the metrics once
	initOnce sync.Once
)

// Init registers all collectors on the default registry. Safe to call from
// every constructor that records metrics.
func Init() {
	initOnce.Do(register)
}

func register() {
	WalletsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "wallets_generated_total",
			Help:      "Number of wallets generated",
		},
	)
	FlightShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "generate_shared_total",
			Help:      "Number of wallet generations answered by another in-flight generation",
		},
	)
	CompilerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "compiler_runs_total",
			Help:      "Number of compiler invocations",
		},
	)
	CompilerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "compiler_failures_total",
			Help:      "Number of failed compiler invocations",
		},
		[]string{
			"reason", // exit, timeout, output
		},
	)
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "multisig",
			Name:      "compile_duration_seconds",
			Help:      "Duration of compiler invocations",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
	StoreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "bytecode_lookups_total",
			Help:      "Number of bytecode store lookups",
		},
		[]string{
			"result", // hit, miss
		},
	)
	SpendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "spend_outcomes_total",
			Help:      "Number of spend requests by final state",
		},
		[]string{
			"state", // confirmed, failed, unknown, replayed
		},
	)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "api_requests_total",
			Help:      "Number of API requests",
		},
		[]string{
			"endpoint",
			"status",
		},
	)
}
