package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metric attributes must stay bounded: operation names, statuses and outcome kinds only.
// Clip ids, course names, locators and destination paths belong in logs and span events.

const (
	statusSuccess = "success"
	statusError   = "error"
)

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span named operationName.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	))

	defer span.End()

	err := fn(ctx)

	status := statusSuccess
	if err != nil {
		status = statusError

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(ctx, operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentClientOperation instruments catalog client operations.
func (t *Telemetry) InstrumentClientOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "catalog_"+operation, "catalog", fn)

	t.RecordClientOperation(ctx, operation, statusOf(err))

	return err
}

// InstrumentFetch instruments a single candidate fetch.
func (t *Telemetry) InstrumentFetch(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	if t.fetchesActive != nil {
		t.fetchesActive.Add(ctx, 1)
		defer t.fetchesActive.Add(ctx, -1)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "source_fetch", "downloader", fn)

	if t.fetchDuration != nil {
		t.fetchDuration.Record(ctx, time.Since(start).Seconds())
	}

	return err
}

func statusOf(err error) string {
	if err != nil {
		return statusError
	}

	return statusSuccess
}
