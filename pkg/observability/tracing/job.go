package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskwellio/taskwell/pkg/pool"
)

const tracerName = "github.com/taskwellio/taskwell"

// WrapJob returns a job that executes inside a span carrying the job's
// name and recording its error status. source labels where the
// submission came from ("gateway", "nats", ...).
func WrapJob(job pool.Job, source string) pool.Job {
	if job == nil {
		return nil
	}

	return pool.NewNamedJob(job.Name(), func(ctx context.Context) error {
		tracer := otel.Tracer(tracerName)
		ctx, span := tracer.Start(ctx, "job "+job.Name(),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("taskwell.job.name", job.Name()),
				attribute.String("taskwell.job.source", source),
			),
		)
		defer span.End()

		err := job.Execute(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}
