package downloader

import "fmt"

// InvalidSourceError describes a candidate whose locator is malformed, uses an unsupported
// scheme, or was refused by the source. FetchTo returns it alongside false.
type InvalidSourceError struct {
	SourceID string // Provider tag of the rejected candidate
	Locator  string // The locator as given by the catalog
	Reason   string // Human-readable explanation of why the source is invalid
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source %s (%s): %s", e.SourceID, e.Locator, e.Reason)
}

// TransferError represents failures while moving bytes: network errors, timeouts, 5xx and
// throttling responses, interrupted bodies and length mismatches.
type TransferError struct {
	SourceID   string // Provider tag of the candidate being fetched
	Operation  string // The step that failed (e.g., "request", "copy", "verify_length")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Message    string // Error message from the source or network layer
	Err        error  // Underlying error, if any
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer error from %s during %s (HTTP %d): %s", e.SourceID, e.Operation, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("transfer error from %s during %s: %s", e.SourceID, e.Operation, e.Message)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// DestinationError represents failures writing to the local destination: the directory cannot
// be created, the temporary file cannot be opened, or the final rename fails. No other
// candidate can fix these, so they end the resolution pass.
type DestinationError struct {
	Path   string // The destination path that caused the error
	Reason string // Human-readable explanation of the destination error
	Err    error  // Underlying error, if any
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination error for '%s': %s", e.Path, e.Reason)
}

func (e *DestinationError) Unwrap() error {
	return e.Err
}
