package whitelist

import "github.com/prometheus/client_golang/prometheus"

// Metrics used in monitoring service.
var (
	keysInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of keys inserted into the set",
			Name:      "keys_inserted",
			Namespace: "cmtree",
			Subsystem: "whitelist",
		},
	)

	keysRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of keys removed from the set",
			Name:      "keys_removed",
			Namespace: "cmtree",
			Subsystem: "whitelist",
		},
	)

	proofsVerified = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of proof verifications performed",
			Name:      "proofs_verified",
			Namespace: "cmtree",
			Subsystem: "whitelist",
		},
	)

	verifyCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of proof verifications answered from the cache",
			Name:      "verify_cache_hits",
			Namespace: "cmtree",
			Subsystem: "whitelist",
		},
	)

	setSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Current number of keys in the set",
			Name:      "set_size",
			Namespace: "cmtree",
			Subsystem: "whitelist",
		},
	)
)

func init() {
	prometheus.MustRegister(
		keysInserted,
		keysRemoved,
		proofsVerified,
		verifyCacheHits,
		setSize,
	)
}

func updateOpMetrics(op string) {
	if op == OpInsert {
		keysInserted.Inc()
	} else {
		keysRemoved.Inc()
	}
}

func updateSizeMetric(sz int) {
	setSize.Set(float64(sz))
}

func updateVerifyMetric() {
	proofsVerified.Inc()
}

func updateCacheHitMetric() {
	verifyCacheHits.Inc()
}
