package resolver

import (
	"context"

	"github.com/italolelis/course_downloader/internal/catalog"
)

// Target identifies the clip being resolved and where it goes.
type Target struct {
	CourseName  string
	Clip        catalog.Clip
	Destination string
}

// Event is emitted while a resolution pass progresses. The set of events is closed.
type Event interface {
	EventTarget() Target
	isEvent()
}

// Sink consumes resolution events. Events of one pass arrive synchronously and in order;
// implementations used across parallel clips must be safe for concurrent use.
type Sink interface {
	Report(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Report(ctx context.Context, e Event) { f(ctx, e) }

type AttemptStarted struct {
	Target    Target
	Index     int
	Candidate catalog.Candidate
}

type AttemptSkippedInvalid struct {
	Target    Target
	Index     int
	Candidate catalog.Candidate
	Reason    string
}

type AttemptFailed struct {
	Target    Target
	Index     int
	Candidate catalog.Candidate
	Err       error
	IsLast    bool
}

type AttemptSucceeded struct {
	Target    Target
	Index     int
	Candidate catalog.Candidate
}

// AllExhausted is the final event of a pass in which no candidate succeeded.
type AllExhausted struct {
	Target   Target
	Attempts int
}

func (e AttemptStarted) EventTarget() Target        { return e.Target }
func (e AttemptSkippedInvalid) EventTarget() Target { return e.Target }
func (e AttemptFailed) EventTarget() Target         { return e.Target }
func (e AttemptSucceeded) EventTarget() Target      { return e.Target }
func (e AllExhausted) EventTarget() Target          { return e.Target }

func (AttemptStarted) isEvent()        {}
func (AttemptSkippedInvalid) isEvent() {}
func (AttemptFailed) isEvent()         {}
func (AttemptSucceeded) isEvent()      {}
func (AllExhausted) isEvent()          {}
