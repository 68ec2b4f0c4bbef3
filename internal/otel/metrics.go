package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts rig operations
type Metrics struct {
	builds   metric.Int64Counter
	binds    metric.Int64Counter
	fits     metric.Int64Counter
	failures metric.Int64Counter
	bound    metric.Int64Histogram
}

// NewMetrics registers the rig instruments on m.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	var (
		out Metrics
		err error
	)
	if out.builds, err = m.Int64Counter("rig.skeleton.builds", metric.WithDescription("skeletons built")); err != nil {
		return nil, fmt.Errorf("builds counter: %w", err)
	}
	if out.binds, err = m.Int64Counter("rig.mapping.binds", metric.WithDescription("marker mappings installed")); err != nil {
		return nil, fmt.Errorf("binds counter: %w", err)
	}
	if out.fits, err = m.Int64Counter("rig.fit.runs", metric.WithDescription("anthropometric fits")); err != nil {
		return nil, fmt.Errorf("fits counter: %w", err)
	}
	if out.failures, err = m.Int64Counter("rig.failures", metric.WithDescription("failed rig operations")); err != nil {
		return nil, fmt.Errorf("failures counter: %w", err)
	}
	if out.bound, err = m.Int64Histogram("rig.mapping.joints", metric.WithDescription("joints bound per mapping")); err != nil {
		return nil, fmt.Errorf("bound histogram: %w", err)
	}
	return &out, nil
}

func (m *Metrics) Built(ctx context.Context, namespace string) {
	m.builds.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

func (m *Metrics) Bound(ctx context.Context, namespace, source string, joints int) {
	attrs := metric.WithAttributes(attribute.String("namespace", namespace), attribute.String("source", source))
	m.binds.Add(ctx, 1, attrs)
	m.bound.Record(ctx, int64(joints), attrs)
}

func (m *Metrics) Fitted(ctx context.Context, namespace string) {
	m.fits.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

func (m *Metrics) Failed(ctx context.Context, stage string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
