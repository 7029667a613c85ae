package course

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/cleanup"
	"github.com/italolelis/course_downloader/internal/downloader"
	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/notifier"
	"github.com/italolelis/course_downloader/internal/resolver"
	"github.com/italolelis/course_downloader/internal/storage"
	"github.com/italolelis/course_downloader/internal/telemetry"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClipsFailed   = errors.New("some clips could not be downloaded")
	ErrNoHistory     = errors.New("download history is not configured")
	ErrNothingFailed = errors.New("no failed clips recorded for this course")
)

// Presenter renders the progress of a run for humans.
type Presenter interface {
	CourseStarted(title string)
	CourseCompleted(title string)
	SelectionStarted(title string)
	SelectionCompleted()
	Module(ref catalog.ModuleRef, listing bool)
	ListClip(clip catalog.Clip)
	Warn(msg string)
	ClipUnavailable(clip catalog.Clip, err error)
	ClipNotFound(target resolver.Target)
	ClipAborted(target resolver.Target, err error)
}

// Resolver runs one resolution pass for a clip.
type Resolver interface {
	Resolve(ctx context.Context, target resolver.Target, candidates []catalog.Candidate) (resolver.Result, error)
}

type Options struct {
	OutputDir   string
	MaxParallel int
	// RunID identifies this process in the download history.
	RunID string
	// ClaimTTL is how long another run's claim on a clip is honoured.
	ClaimTTL time.Duration
	// StalePartialAge enables the sweep of partial files older than this from the course
	// directory before downloading. Zero disables it.
	StalePartialAge time.Duration
}

// Summary counts clip results of a run.
type Summary struct {
	Downloaded int
	Failed     int
	NotFound   int
	Skipped    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d downloaded, %d failed, %d without sources, %d skipped", s.Downloaded, s.Failed, s.NotFound, s.Skipped)
}

// Downloader drives course, module and clip downloads.
type Downloader struct {
	catalog   catalog.Client
	resolver  Resolver
	repo      storage.DownloadRepository
	presenter Presenter
	notifier  notifier.Notifier
	telemetry *telemetry.Telemetry
	opts      Options
}

// NewDownloader builds a Downloader. repo and n may be nil to disable history and
// notifications.
func NewDownloader(
	c catalog.Client,
	r Resolver,
	repo storage.DownloadRepository,
	p Presenter,
	n notifier.Notifier,
	tel *telemetry.Telemetry,
	opts Options,
) *Downloader {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}

	if n == nil {
		n = notifier.Nop{}
	}

	return &Downloader{
		catalog:   c,
		resolver:  r,
		repo:      repo,
		presenter: p,
		notifier:  n,
		telemetry: tel,
		opts:      opts,
	}
}

// DownloadCourse downloads every clip of the course.
func (d *Downloader) DownloadCourse(ctx context.Context, courseName string) (Summary, error) {
	course, err := d.getCourse(ctx, courseName, false)
	if err != nil {
		return Summary{}, err
	}

	d.presenter.CourseStarted(course.Header.Title)

	groups := newPlanner(d.opts.OutputDir).plan(course, nil)

	d.sweepPartials(ctx, course)

	summary, err := d.run(ctx, groups)
	if err != nil && !errors.Is(err, ErrClipsFailed) {
		return summary, err
	}

	d.presenter.CourseCompleted(course.Header.Title)
	d.notify(ctx, course, summary)

	return summary, err
}

// DownloadModule downloads the clips of a single module.
func (d *Downloader) DownloadModule(ctx context.Context, courseName, moduleID string) (Summary, error) {
	course, err := d.getCourse(ctx, courseName, false)
	if err != nil {
		return Summary{}, err
	}

	ref, err := course.FindModule(moduleID)
	if err != nil {
		return Summary{}, err
	}

	d.presenter.SelectionStarted(course.Header.Title)

	groups := newPlanner(d.opts.OutputDir).plan(course, func(m catalog.ModuleRef, _ catalog.Clip) bool {
		return m.Index == ref.Index
	})

	return d.finishSelection(ctx, course, groups)
}

// DownloadClip downloads a single clip, typically one that failed in an earlier run.
func (d *Downloader) DownloadClip(ctx context.Context, courseName, clipID string) (Summary, error) {
	course, err := d.getCourse(ctx, courseName, false)
	if err != nil {
		return Summary{}, err
	}

	if _, _, err := course.FindClip(clipID); err != nil {
		return Summary{}, err
	}

	d.presenter.SelectionStarted(course.Header.Title)

	groups := newPlanner(d.opts.OutputDir).plan(course, func(_ catalog.ModuleRef, c catalog.Clip) bool {
		return c.ID == clipID
	})

	return d.finishSelection(ctx, course, groups)
}

// RetryFailed downloads again every clip of the course the history records as not downloaded.
func (d *Downloader) RetryFailed(ctx context.Context, courseName string) (Summary, error) {
	if d.repo == nil {
		return Summary{}, ErrNoHistory
	}

	records, err := d.repo.GetFailed(ctx, courseName)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read download history: %w", err)
	}

	if len(records) == 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrNothingFailed, courseName)
	}

	course, err := d.getCourse(ctx, courseName, false)
	if err != nil {
		return Summary{}, err
	}

	failed := lo.KeyBy(records, func(r storage.ClipRecord) string { return r.ClipID })

	groups := newPlanner(d.opts.OutputDir).plan(course, func(_ catalog.ModuleRef, c catalog.Clip) bool {
		_, ok := failed[c.ID]
		delete(failed, c.ID)

		return ok
	})

	for id, rec := range failed {
		d.presenter.Warn(fmt.Sprintf("clip '%s' (%s) is no longer part of the course", rec.ClipTitle, id))
	}

	d.presenter.SelectionStarted(course.Header.Title)

	return d.finishSelection(ctx, course, groups)
}

// List prints the modules and clips of the course with their ids. A missing download
// permission is only a warning here.
func (d *Downloader) List(ctx context.Context, courseName string) error {
	course, err := d.getCourse(ctx, courseName, true)
	if err != nil {
		return err
	}

	for _, ref := range course.IndexedModules() {
		d.presenter.Module(ref, true)

		for _, clip := range ref.Module.Clips {
			d.presenter.ListClip(clip)
		}
	}

	return nil
}

func (d *Downloader) finishSelection(ctx context.Context, course *catalog.Course, groups []moduleJobs) (Summary, error) {
	d.sweepPartials(ctx, course)

	summary, err := d.run(ctx, groups)
	if err != nil && !errors.Is(err, ErrClipsFailed) {
		return summary, err
	}

	d.presenter.SelectionCompleted()
	d.notify(ctx, course, summary)

	return summary, err
}

func (d *Downloader) getCourse(ctx context.Context, name string, listing bool) (*catalog.Course, error) {
	course, err := d.catalog.GetCourse(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	hasAccess, err := d.catalog.HasCourseAccess(ctx, course.Header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course access: %w", err)
	}

	if !hasAccess {
		if !listing {
			return nil, catalog.ErrNoAccess
		}

		d.presenter.Warn("You do not have permission to download this course")
	}

	return course, nil
}

// sweepPartials removes stale clip partial files left in the course directory by interrupted
// runs. Nothing outside that directory, and no other kind of file, is touched.
func (d *Downloader) sweepPartials(ctx context.Context, course *catalog.Course) {
	if d.opts.StalePartialAge <= 0 {
		return
	}

	logger := logctx.LoggerFromContext(ctx)
	dir := catalog.CourseDir(d.opts.OutputDir, course.Header.Title)

	removed, err := cleanup.DeletePartialFiles(ctx, dir, catalog.VideoExt+downloader.PartialSuffix, d.opts.StalePartialAge)
	if err != nil {
		logger.WarnContext(ctx, "failed to sweep partial files", "dir", dir, "err", err)

		return
	}

	if removed > 0 {
		logger.InfoContext(ctx, "removed stale partial files", "dir", dir, "count", removed)
	}
}

// run resolves every job, module by module, with at most MaxParallel clips in flight. A clip
// that fails never stops its siblings; destination faults and cancellation stop the run.
func (d *Downloader) run(ctx context.Context, groups []moduleJobs) (Summary, error) {
	var (
		mu       sync.Mutex
		summary  Summary
		failures *multierror.Error
	)

	for _, group := range groups {
		d.presenter.Module(group.module, false)

		if err := d.runGroup(ctx, group, func(j job, status string) {
			mu.Lock()
			defer mu.Unlock()

			switch status {
			case storage.StatusDownloaded:
				summary.Downloaded++
			case storage.StatusNotFound:
				summary.NotFound++
			case storage.StatusFailed:
				summary.Failed++
				failures = multierror.Append(failures, fmt.Errorf("clip %s %q: %s", j.clip.ID, j.clip.Title, status))
			case "":
				summary.Skipped++
			}
		}); err != nil {
			return summary, err
		}
	}

	if err := failures.ErrorOrNil(); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrClipsFailed, err)
	}

	return summary, nil
}

// runGroup resolves the jobs of one module with at most MaxParallel in flight.
func (d *Downloader) runGroup(ctx context.Context, group moduleJobs, done func(job, string)) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group

	sem := make(chan struct{}, d.opts.MaxParallel)

	for _, j := range group.jobs {
		sem <- struct{}{}

		if ctx.Err() != nil {
			<-sem

			break
		}

		g.Go(func() error {
			defer func() { <-sem }() // release the slot

			status, err := d.downloadClip(ctx, j)
			done(j, status)

			if err != nil {
				cancel(err)
			}

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return context.Cause(ctx)
}

// downloadClip resolves one clip and records the outcome. It returns the recorded status, or
// "" when the clip was skipped. Only faults that must stop the run are returned as errors.
func (d *Downloader) downloadClip(ctx context.Context, j job) (string, error) {
	logger := logctx.LoggerFromContext(ctx).With("course", j.course.Header.Name, "clip_id", j.clip.ID)

	target := resolver.Target{
		CourseName:  j.course.Header.Name,
		Clip:        j.clip,
		Destination: j.destination,
	}

	if d.repo != nil {
		claimed, err := d.repo.ClaimClip(ctx, j.record(), d.opts.RunID, d.opts.ClaimTTL)

		switch {
		case err != nil:
			logger.WarnContext(ctx, "failed to claim clip, continuing without history", "err", err)
		case !claimed:
			d.presenter.Warn(fmt.Sprintf("clip '%s' is being downloaded by another run, skipping", j.clip.Title))

			return "", nil
		}
	}

	candidates, err := d.catalog.GetClipCandidates(ctx, j.course.Header.ID, j.clip.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.record(ctx, j, storage.StatusAborted, resolver.Result{})

			return storage.StatusAborted, ctxErr
		}

		logger.ErrorContext(ctx, "failed to retrieve clip sources", "err", err)
		d.presenter.ClipUnavailable(j.clip, err)
		d.record(ctx, j, storage.StatusFailed, resolver.Result{})

		return storage.StatusFailed, nil
	}

	var result resolver.Result

	err = d.telemetry.InstrumentOperation(ctx, "resolve_clip", "course", func(ctx context.Context) error {
		var err error

		result, err = d.resolver.Resolve(ctx, target, candidates)

		return err
	})
	if err != nil {
		d.presenter.ClipAborted(target, err)
		d.record(ctx, j, storage.StatusAborted, result)

		return storage.StatusAborted, fmt.Errorf("clip %s: %w", j.clip.ID, err)
	}

	status := storage.StatusDownloaded

	switch result.Status {
	case resolver.StatusNotFound:
		status = storage.StatusNotFound

		d.presenter.ClipNotFound(target)
	case resolver.StatusExhausted:
		status = storage.StatusFailed
	}

	d.record(ctx, j, status, result)

	return status, nil
}

func (d *Downloader) record(ctx context.Context, j job, status string, result resolver.Result) {
	if d.repo == nil {
		return
	}

	rec := j.record()
	rec.Status = status
	rec.Attempts = len(result.Outcomes)

	if result.Winner != nil {
		rec.SourceID = result.Winner.SourceID
	}

	// The outcome is stored even when the run is being cancelled.
	if err := d.repo.RecordResult(context.WithoutCancel(ctx), rec); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to record clip result", "status", status, "err", err)
	}
}

func (d *Downloader) notify(ctx context.Context, course *catalog.Course, summary Summary) {
	msg := fmt.Sprintf("Downloading '%s' finished: %s", course.Header.Title, summary)

	if err := d.notifier.Notify(ctx, msg); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "err", err)
	}
}
