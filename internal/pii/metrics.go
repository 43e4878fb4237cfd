package pii

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks codec health. A rising decrypt-failure count usually means
// a key was rotated without keeping the old version in the keyring.
type Metrics struct {
	decryptFailures *prometheus.CounterVec
	fieldsEncrypted prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		decryptFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_pii_decrypt_failures_total",
			Help: "PII fields that failed to decrypt and were nulled on read",
		}, []string{"entity_type"}),
		fieldsEncrypted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amparo_pii_fields_encrypted_total",
			Help: "PII fields encrypted on write",
		}),
	}
}

func (m *Metrics) IncDecryptFailures(entityType string) {
	m.decryptFailures.WithLabelValues(entityType).Inc()
}

func (m *Metrics) IncFieldsEncrypted() {
	m.fieldsEncrypted.Inc()
}
