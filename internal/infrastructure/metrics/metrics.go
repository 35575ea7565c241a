package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type AgreementMetrics struct {
	payments         *prometheus.CounterVec
	paymentVolume    *prometheus.CounterVec
	missedPayments   prometheus.Counter
	defaults         prometheus.Counter
	completions      prometheus.Counter
	transferFailures *prometheus.CounterVec
	roundingDust     *prometheus.CounterVec
	guardRejections  prometheus.Counter
}

var (
	agreementOnce     sync.Once
	agreementRegistry *AgreementMetrics
)

// Agreements returns the process-wide collectors, registering them on first use.
func Agreements() *AgreementMetrics {
	agreementOnce.Do(func() {
		agreementRegistry = &AgreementMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "agreement_payments_total",
				Help: "Accepted repayments by kind.",
			}, []string{"kind"}),
			paymentVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "agreement_payment_volume_total",
				Help: "Amount credited to totalRepaid by payment kind, in the smallest unit.",
			}, []string{"kind"}),
			missedPayments: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "agreement_missed_payments_total",
				Help: "Missed payments recorded by the default manager.",
			}),
			defaults: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "agreement_defaults_total",
				Help: "Agreements flagged as in default.",
			}),
			completions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "agreement_completions_total",
				Help: "Agreements that reached completion.",
			}),
			transferFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "agreement_transfer_failures_total",
				Help: "Outbound transfers compensated locally, by purpose.",
			}, []string{"purpose"}),
			roundingDust: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "agreement_distribution_rounding_dust_total",
				Help: "Integer-division remainder left undistributed per agreement.",
			}, []string{"agreement"}),
			guardRejections: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "agreement_guard_rejections_total",
				Help: "Fund-moving calls rejected because another was in flight.",
			}),
		}
		prometheus.MustRegister(
			agreementRegistry.payments,
			agreementRegistry.paymentVolume,
			agreementRegistry.missedPayments,
			agreementRegistry.defaults,
			agreementRegistry.completions,
			agreementRegistry.transferFailures,
			agreementRegistry.roundingDust,
			agreementRegistry.guardRejections,
		)
	})
	return agreementRegistry
}

func (m *AgreementMetrics) ObservePayment(kind string, amount uint64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(kind).Inc()
	m.paymentVolume.WithLabelValues(kind).Add(float64(amount))
}

func (m *AgreementMetrics) ObserveMissedPayment() {
	if m == nil {
		return
	}
	m.missedPayments.Inc()
}

func (m *AgreementMetrics) ObserveDefault() {
	if m == nil {
		return
	}
	m.defaults.Inc()
}

func (m *AgreementMetrics) ObserveCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *AgreementMetrics) ObserveTransferFailure(purpose string) {
	if m == nil {
		return
	}
	if purpose == "" {
		purpose = "unknown"
	}
	m.transferFailures.WithLabelValues(purpose).Inc()
}

func (m *AgreementMetrics) ObserveRoundingDust(agreement string, dust uint64) {
	if m == nil || dust == 0 {
		return
	}
	m.roundingDust.WithLabelValues(agreement).Add(float64(dust))
}

func (m *AgreementMetrics) ObserveGuardRejection() {
	if m == nil {
		return
	}
	m.guardRejections.Inc()
}
