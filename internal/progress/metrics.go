package progress

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics exports progress as counters in a metrics.Set, one step counter
// and one declared-steps gauge per label. Scrape-friendly for long out-of-core
// runs where a terminal indicator is useless.
type Metrics struct {
	set   *metrics.Set
	label string

	steps *metrics.Counter
	total uint64
}

// NewMetrics creates a metrics-backed indicator writing into set. Pass a
// shared set to aggregate several phases into one scrape surface.
func NewMetrics(set *metrics.Set, label string) *Metrics {
	m := &Metrics{set: set, label: label}
	m.steps = set.NewCounter(fmt.Sprintf(`pipegrid_steps_total{phase=%q}`, label))
	return m
}

func (m *Metrics) Init(total uint64) {
	m.total = total
	m.set.NewGauge(fmt.Sprintf(`pipegrid_steps_declared{phase=%q}`, m.label), func() float64 {
		return float64(m.total)
	})
}

func (m *Metrics) Step(k uint64) {
	m.steps.Add(int(k))
}

func (m *Metrics) Refresh() {}

func (m *Metrics) Done() {}

// Steps returns the number of steps counted so far.
func (m *Metrics) Steps() uint64 {
	return m.steps.Get()
}

// WritePrometheus dumps the set in Prometheus text exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
