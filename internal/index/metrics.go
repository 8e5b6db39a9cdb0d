package index

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/cleverdevil/dwell/internal/index"

type instruments struct {
	rebuilds    metric.Int64Counter
	addFailures metric.Int64Counter
	duration    metric.Float64Histogram
	posts       metric.Int64Gauge
}

func newInstruments() instruments {
	m := otel.Meter(meterName)
	var in instruments
	var err error
	if in.rebuilds, err = m.Int64Counter("dwell.index.rebuilds",
		metric.WithDescription("Completed index rebuilds by result")); err != nil {
		in.rebuilds = noop.Int64Counter{}
	}
	if in.addFailures, err = m.Int64Counter("dwell.index.add_failures",
		metric.WithDescription("Incremental index inserts that failed")); err != nil {
		in.addFailures = noop.Int64Counter{}
	}
	if in.duration, err = m.Float64Histogram("dwell.index.rebuild.duration",
		metric.WithDescription("Wall time of a full rebuild"), metric.WithUnit("s")); err != nil {
		in.duration = noop.Float64Histogram{}
	}
	if in.posts, err = m.Int64Gauge("dwell.index.posts",
		metric.WithDescription("Documents in the live generation after the last rebuild")); err != nil {
		in.posts = noop.Int64Gauge{}
	}
	return in
}

func (in instruments) rebuilt(ctx context.Context, took time.Duration, n int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	in.rebuilds.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	in.duration.Record(ctx, took.Seconds())
	if err == nil {
		in.posts.Record(ctx, int64(n))
	}
}
