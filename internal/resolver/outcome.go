package resolver

import "github.com/italolelis/course_downloader/internal/catalog"

// OutcomeKind classifies how a single candidate attempt ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeInvalidSource
	OutcomeTransferFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidSource:
		return "invalid_source"
	case OutcomeTransferFailed:
		return "transfer_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt within a resolution pass.
type Outcome struct {
	Index     int
	Candidate catalog.Candidate
	Kind      OutcomeKind
	Reason    string // set for invalid sources
	Err       error  // set for failed transfers
}

// Status is the terminal state of a resolution pass.
type Status int

const (
	StatusSucceeded Status = iota
	StatusExhausted
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusExhausted:
		return "exhausted"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result summarizes a resolution pass. Winner is set only when Status is StatusSucceeded.
type Result struct {
	Status   Status
	Winner   *catalog.Candidate
	Outcomes []Outcome
}
