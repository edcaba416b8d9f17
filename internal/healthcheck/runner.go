package healthcheck

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sensiblebit/certhealth/internal/result"
)

const instrumentationName = "github.com/sensiblebit/certhealth/internal/healthcheck"

// Report is the outcome of one run.
type Report struct {
	// Findings of every check, checks in registration order, each check's
	// findings in the order it produced them.
	Findings []result.Finding
	// Aborted names the checks that failed instead of producing findings.
	Aborted []string
}

// Runner executes checks concurrently and collects their findings.
type Runner struct {
	Checks []Check

	// MaxConcurrent bounds how many checks run at once; zero runs them all
	// together.
	MaxConcurrent int

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type checkOutcome struct {
	findings []result.Finding
	aborted  bool
}

// Run executes every check once. A check that fails is replaced by a single
// ERROR finding carrying the error; the other checks are unaffected. Run
// itself fails only when ctx is done before every check has started. Every
// finding is stamped with the duration of the check that produced it.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	tp := r.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := r.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tracer := tp.Tracer(instrumentationName)
	meter := mp.Meter(instrumentationName)

	durations, err := meter.Float64Histogram("certhealth.check.duration",
		metric.WithDescription("Time taken by one check run"),
		metric.WithUnit("s"))
	if err != nil {
		return Report{}, err
	}
	counts, err := meter.Int64Counter("certhealth.findings",
		metric.WithDescription("Findings produced, by check and severity"))
	if err != nil {
		return Report{}, err
	}

	ctx, span := tracer.Start(ctx, "healthcheck.Run")
	defer span.End()

	outcomes := make([]checkOutcome, len(r.Checks))
	var g errgroup.Group
	if r.MaxConcurrent > 0 {
		g.SetLimit(r.MaxConcurrent)
	}
	for i, c := range r.Checks {
		g.Go(func() error {
			// Checks still queued when the caller gives up are not started.
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = runOne(ctx, tracer, durations, counts, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	var rep Report
	for i, o := range outcomes {
		rep.Findings = append(rep.Findings, o.findings...)
		if o.aborted {
			rep.Aborted = append(rep.Aborted, r.Checks[i].Name())
		}
	}
	span.SetAttributes(attribute.Int("findings", len(rep.Findings)), attribute.Int("aborted", len(rep.Aborted)))
	return rep, nil
}

func runOne(ctx context.Context, tracer trace.Tracer, durations metric.Float64Histogram, counts metric.Int64Counter, c Check) checkOutcome {
	name := c.Name()
	ctx, span := tracer.Start(ctx, "check/"+name, trace.WithAttributes(attribute.String("check", name)))
	defer span.End()

	start := time.Now()
	findings, err := c.Run(ctx)
	elapsed := time.Since(start)

	var out checkOutcome
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelError
		if errors.Is(err, ErrObserverUnavailable) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "check failed", "check", name, "error", err)
		findings = []result.Finding{{
			Severity: result.Error,
			Key:      name,
			Message:  err.Error(),
			Check:    name,
			Source:   result.Source,
		}}
		out.aborted = true
	}
	for i := range findings {
		findings[i].Duration = elapsed
	}
	out.findings = findings

	attrs := metric.WithAttributes(attribute.String("check", name))
	durations.Record(ctx, elapsed.Seconds(), attrs)
	for _, sev := range []result.Severity{result.Success, result.Warning, result.Error} {
		if n := result.Count(findings, sev); n > 0 {
			counts.Add(ctx, int64(n), metric.WithAttributes(attribute.String("check", name), attribute.String("severity", sev.String())))
		}
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))
	slog.Debug("check finished", "check", name, "findings", len(findings), "duration", elapsed)
	return out
}
