package observability

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type vaultMetrics struct {
	pauseEngaged prometheus.Gauge
	feePool      prometheus.Gauge
	jurorPool    prometheus.Gauge
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *vaultMetrics
)

// Vault returns the lazily-initialised registry tracking daemon level state.
func Vault() *vaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &vaultMetrics{
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crowdvault",
				Subsystem: "vaultd",
				Name:      "pause_engaged",
				Help:      "Indicates whether the global pause guard is active (1) or not (0).",
			}),
			feePool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crowdvault",
				Subsystem: "vaultd",
				Name:      "fee_pool",
				Help:      "Current dispute fee pool balance in base units.",
			}),
			jurorPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crowdvault",
				Subsystem: "vaultd",
				Name:      "juror_pool_size",
				Help:      "Number of registered jurors in the sampling pool.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.pauseEngaged,
			vaultRegistry.feePool,
			vaultRegistry.jurorPool,
		)
	})
	return vaultRegistry
}

// SetPause toggles the pause_engaged gauge.
func (m *vaultMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

// SetFeePool updates the fee pool gauge.
func (m *vaultMetrics) SetFeePool(balance *big.Int) {
	if m == nil {
		return
	}
	m.feePool.Set(bigToFloat(balance))
}

// SetJurorPoolSize updates the juror pool gauge.
func (m *vaultMetrics) SetJurorPoolSize(n int) {
	if m == nil {
		return
	}
	m.jurorPool.Set(float64(n))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
