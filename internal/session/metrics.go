package session

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	ticks      metric.Int64Counter
	failures   metric.Int64Counter
	commits    metric.Int64Counter
	utterances metric.Int64Counter
}

// newMetrics registers the session instruments. On error the returned
// metrics fall back to no-op instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	var m metrics
	var errs []error
	var err error
	m.ticks, err = meter.Int64Counter("signspeak.ticks", metric.WithDescription("Polling ticks executed"))
	errs = append(errs, err)
	m.failures, err = meter.Int64Counter("signspeak.tick.failures", metric.WithDescription("Ticks aborted by capture or classification errors"))
	errs = append(errs, err)
	m.commits, err = meter.Int64Counter("signspeak.sentence.commits", metric.WithDescription("Stable labels appended to the sentence"))
	errs = append(errs, err)
	m.utterances, err = meter.Int64Counter("signspeak.utterances", metric.WithDescription("Speech requests issued"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		fallback, _ := newMetrics(noop.NewMeterProvider().Meter("signspeak"))
		return fallback, err
	}
	return &m, nil
}

func (m *metrics) tick(ctx context.Context) {
	m.ticks.Add(ctx, 1)
}

func (m *metrics) failure(ctx context.Context, stage string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *metrics) commit(ctx context.Context) {
	m.commits.Add(ctx, 1)
}

func (m *metrics) utterance(ctx context.Context, source string) {
	m.utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
