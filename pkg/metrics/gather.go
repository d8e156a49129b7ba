package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Gather sums every counter or gauge series of the named family in the
// custom registry.
func Gather(name string) (float64, error) {
	return sum(customRegistry, name)
}

func sum(g prometheus.Gatherer, name string) (float64, error) {
	families, err := g.Gather()
	if err != nil {
		return 0, errors.Join(ErrGatherFailed, err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total, nil
}
