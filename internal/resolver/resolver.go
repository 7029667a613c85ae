package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/downloader"
	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/telemetry"
)

const invalidSourceReason = "source rejected"

// Downloader places the bytes of one candidate at destination. It answers false, with a nil
// error or an *downloader.InvalidSourceError, when the candidate cannot be used at all.
type Downloader interface {
	FetchTo(ctx context.Context, c catalog.Candidate, destination string) (bool, error)
}

// Resolver walks a ranked candidate list and commits to the first source that downloads.
type Resolver struct {
	dl        Downloader
	sink      Sink
	telemetry *telemetry.Telemetry
}

func New(dl Downloader, sink Sink, tel *telemetry.Telemetry) *Resolver {
	if sink == nil {
		sink = SinkFunc(func(context.Context, Event) {})
	}

	return &Resolver{
		dl:        dl,
		sink:      sink,
		telemetry: tel,
	}
}

// Resolve tries candidates strictly in the given order, each at most once, and stops at the
// first success. Per-candidate failures are recorded as outcomes. The returned error is
// reserved for faults no other candidate can fix: an unwritable destination
// (*downloader.DestinationError) and context cancellation.
func (r *Resolver) Resolve(ctx context.Context, target Target, candidates []catalog.Candidate) (Result, error) {
	start := time.Now()
	ctx, logger := logctx.With(ctx, "course", target.CourseName, "clip_id", target.Clip.ID, "destination", target.Destination)

	if len(candidates) == 0 {
		logger.DebugContext(ctx, "no candidates for clip")
		r.telemetry.RecordResolution(ctx, StatusNotFound.String(), time.Since(start))

		return Result{Status: StatusNotFound}, nil
	}

	result := Result{Status: StatusExhausted, Outcomes: make([]Outcome, 0, len(candidates))}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		r.sink.Report(ctx, AttemptStarted{Target: target, Index: i, Candidate: c})

		outcome, err := r.attempt(ctx, target, i, c)
		if err != nil {
			logger.ErrorContext(ctx, "resolution aborted", "source_id", c.SourceID, "index", i, "err", err)

			return result, err
		}

		result.Outcomes = append(result.Outcomes, outcome)
		r.telemetry.RecordAttempt(ctx, outcome.Kind.String())

		switch outcome.Kind {
		case OutcomeSuccess:
			winner := c
			result.Status = StatusSucceeded
			result.Winner = &winner

			r.sink.Report(ctx, AttemptSucceeded{Target: target, Index: i, Candidate: c})
			r.telemetry.RecordResolution(ctx, result.Status.String(), time.Since(start))

			return result, nil
		case OutcomeInvalidSource:
			logger.WarnContext(ctx, "skipping invalid source", "source_id", c.SourceID, "index", i, "reason", outcome.Reason)

			r.sink.Report(ctx, AttemptSkippedInvalid{Target: target, Index: i, Candidate: c, Reason: outcome.Reason})
		case OutcomeTransferFailed:
			isLast := i == len(candidates)-1

			logger.WarnContext(ctx, "source attempt failed", "source_id", c.SourceID, "index", i, "last", isLast, "err", outcome.Err)

			r.sink.Report(ctx, AttemptFailed{Target: target, Index: i, Candidate: c, Err: outcome.Err, IsLast: isLast})
		}
	}

	logger.ErrorContext(ctx, "all candidate sources exhausted", "attempts", len(result.Outcomes))

	r.sink.Report(ctx, AllExhausted{Target: target, Attempts: len(result.Outcomes)})
	r.telemetry.RecordResolution(ctx, result.Status.String(), time.Since(start))

	return result, nil
}

// attempt classifies one fetch. A non-nil error means the pass must stop.
func (r *Resolver) attempt(ctx context.Context, target Target, index int, c catalog.Candidate) (Outcome, error) {
	outcome := Outcome{Index: index, Candidate: c}

	ok, err := r.dl.FetchTo(ctx, c, target.Destination)

	var (
		invalid *downloader.InvalidSourceError
		destErr *downloader.DestinationError
	)

	switch {
	case err == nil && ok:
		outcome.Kind = OutcomeSuccess
	case err == nil:
		outcome.Kind = OutcomeInvalidSource
		outcome.Reason = invalidSourceReason
	case errors.As(err, &invalid):
		outcome.Kind = OutcomeInvalidSource
		outcome.Reason = invalid.Reason
	case errors.As(err, &destErr):
		return outcome, err
	case ctx.Err() != nil:
		return outcome, ctx.Err()
	default:
		outcome.Kind = OutcomeTransferFailed
		outcome.Err = err
	}

	return outcome, nil
}
