package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// Metrics métricas del ciclo de vida. Un *Metrics nil no registra nada.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Operations  *prometheus.CounterVec
}

// NewMetrics registra las métricas en reg; con reg nil devuelve nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sifen_document_transitions_total",
			Help: "Transiciones de estado de documentos",
		}, []string{"from", "to"}),
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sifen_lifecycle_operations_total",
			Help: "Operaciones del ciclo de vida por resultado",
		}, []string{"operation", "result"}),
	}
}

func (m *Metrics) incTransition(from, to entity.DocumentState) {
	if m != nil {
		m.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (m *Metrics) incOperation(op, result string) {
	if m != nil {
		m.Operations.WithLabelValues(op, result).Inc()
	}
}
