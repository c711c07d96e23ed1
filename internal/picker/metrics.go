package picker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope = "pickflix/picker"

	spanPick    = "picker.pick"
	spanClear   = "picker.clear"
	spanRefresh = "picker.refresh"

	metricCommitted   = "pickflix.picks.committed"
	metricConflicts   = "pickflix.picks.conflicts"
	metricExhausted   = "pickflix.picks.exhausted"
	metricStoreErrors = "pickflix.store.errors"
)

// instruments are always non-nil (no-op when telemetry is disabled).
type instruments struct {
	tracer trace.Tracer
	events otellog.Logger

	committed   metric.Int64Counter
	conflicts   metric.Int64Counter
	exhausted   metric.Int64Counter
	storeErrors metric.Int64Counter
}

func newInstruments(logger *slog.Logger) instruments {
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return instruments{
		tracer:      otel.Tracer(otelScope),
		events:      global.GetLoggerProvider().Logger(otelScope),
		committed:   mustCounter(metricCommitted, "Number of picks recorded by this client"),
		conflicts:   mustCounter(metricConflicts, "Number of record attempts lost to another writer"),
		exhausted:   mustCounter(metricExhausted, "Number of picks that found no candidates"),
		storeErrors: mustCounter(metricStoreErrors, "Number of history store failures"),
	}
}

// emitPick exports a pick event to the OTel log pipeline.
func (in instruments) emitPick(ctx context.Context, id, attempts int, title string) {
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("pick committed"))
	rec.AddAttributes(
		otellog.Int("movie.id", id),
		otellog.String("movie.title", title),
		otellog.Int("pick.attempts", attempts),
	)
	in.events.Emit(ctx, rec)
}

func (in instruments) failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
