package manifest

import (
	"time"

	"github.com/pbar1/ssh-benchmark/internal/metrics"
	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// Output is the result of a successful generation run.
type Output struct {
	Plan      topology.Plan
	Resources []Resource
	Documents []Document
}

// Generate builds, renders and encodes cfg. Nothing is returned unless every step
// succeeded, so callers never hold a partial manifest set.
func Generate(cfg topology.ScaleConfiguration) (*Output, error) {
	start := time.Now()
	strategy := cfg.Strategy.String()

	out, err := generate(cfg)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues(strategy, "success").Inc()
	metrics.GenerationDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	metrics.ServicePorts.WithLabelValues(strategy).Set(float64(len(out.Plan.ServerService.Ports)))
	for _, r := range out.Resources {
		metrics.ResourcesGeneratedTotal.WithLabelValues(string(r.Kind)).Inc()
	}
	return out, nil
}

func generate(cfg topology.ScaleConfiguration) (*Output, error) {
	plan, err := topology.Build(cfg)
	if err != nil {
		return nil, err
	}
	resources, err := Render(plan)
	if err != nil {
		return nil, err
	}
	docs, err := Encode(resources)
	if err != nil {
		return nil, err
	}
	return &Output{Plan: plan, Resources: resources, Documents: docs}, nil
}
