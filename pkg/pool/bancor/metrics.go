package bancor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts processed instructions and settled volume.
type Metrics struct {
	Instructions *prometheus.CounterVec
	Lamports     *prometheus.CounterVec
	Tokens       *prometheus.CounterVec
}

// NewMetrics registers the processor collectors on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Instructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bondswap",
			Name:      "instructions_total",
			Help:      "Processed instructions by type and result.",
		}, []string{"instruction", "result"}),
		Lamports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bondswap",
			Name:      "settled_lamports_total",
			Help:      "Lamports moved by settled swaps.",
		}, []string{"side"}),
		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bondswap",
			Name:      "settled_tokens_total",
			Help:      "Tokens minted or burned by settled swaps.",
		}, []string{"side"}),
	}
}

func (m *Metrics) observe(instruction string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var e Error
		if errors.As(err, &e) {
			result = e.Name()
		}
	}
	m.Instructions.WithLabelValues(instruction, result).Inc()
}

func (m *Metrics) settled(side string, lamports, tokens uint64) {
	m.Lamports.WithLabelValues(side).Add(float64(lamports))
	m.Tokens.WithLabelValues(side).Add(float64(tokens))
}
