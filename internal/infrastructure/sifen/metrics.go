package sifen

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observabilidad del cliente SIFEN.
type Metrics struct {
	// Intentos por operación y resultado (ok, rejected, transport, authentication…)
	Attempts *prometheus.CounterVec

	// Duración de cada llamada completa (con reintentos)
	CallDuration *prometheus.HistogramVec

	// Fuente de la descripción del servicio que atendió la llamada (live, static)
	DescriptionSource *prometheus.CounterVec
}

// NewMetrics registra las métricas en reg. Con reg nil devuelve nil (métricas desactivadas).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sifen_remote_attempts_total",
			Help: "Intentos de llamada al WS SIFEN por operación y resultado",
		}, []string{"operation", "outcome"}),

		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sifen_remote_call_duration_seconds",
			Help:    "Duración de las llamadas al WS SIFEN incluyendo reintentos",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),

		DescriptionSource: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sifen_description_source_total",
			Help: "Descripciones de servicio resueltas por servicio y fuente",
		}, []string{"service", "source"}),
	}
}

// IncAttempt registra un intento.
func (m *Metrics) IncAttempt(op Operation, outcome string) {
	if m != nil {
		m.Attempts.WithLabelValues(string(op), outcome).Inc()
	}
}

// ObserveCall registra la duración total de una llamada.
func (m *Metrics) ObserveCall(op Operation, d time.Duration) {
	if m != nil {
		m.CallDuration.WithLabelValues(string(op)).Observe(d.Seconds())
	}
}

// IncDescriptionSource registra la fuente que sirvió la descripción.
func (m *Metrics) IncDescriptionSource(op Operation, source string) {
	if m != nil {
		m.DescriptionSource.WithLabelValues(string(op), source).Inc()
	}
}
