package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrCourseNotFound = errors.New("the course was not found")
	ErrModuleNotFound = errors.New("the module was not found")
	ErrClipNotFound   = errors.New("the clip was not found")
	ErrNoAccess       = errors.New("you do not have permission to download this course")
)

// Client is the remote catalog: course structure, access checks and ranked clip sources.
type Client interface {
	GetCourse(ctx context.Context, name string) (*Course, error)
	HasCourseAccess(ctx context.Context, courseID string) (bool, error)
	// GetClipCandidates returns the delivery sources for a clip, most preferred first.
	// It is fetched fresh on every call.
	GetClipCandidates(ctx context.Context, courseID, clipID string) ([]Candidate, error)
}

// Candidate is one ranked delivery source for a clip.
type Candidate struct {
	SourceID string // provider tag, e.g. the CDN name
	Locator  string // URI the bytes are fetched from
	Rank     int    // 0-based, ascending means more preferred
}

func (c Candidate) String() string {
	return fmt.Sprintf("#%d %s", c.Rank, c.SourceID)
}

type Header struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type Clip struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
}

type Module struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Clips []Clip `json:"clips"`
}

type Course struct {
	Header  Header   `json:"header"`
	Modules []Module `json:"modules"`
}

// ModuleRef locates a module inside its course. Index is 1-based, as shown to users and
// used in directory names.
type ModuleRef struct {
	Index  int
	Module Module
}

// ClipCount returns the number of clips across all modules.
func (c *Course) ClipCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Clips)
	}

	return n
}

// IndexedModules returns every module with its 1-based position.
func (c *Course) IndexedModules() []ModuleRef {
	refs := make([]ModuleRef, 0, len(c.Modules))
	for i, m := range c.Modules {
		refs = append(refs, ModuleRef{Index: i + 1, Module: m})
	}

	return refs
}

// FindModule returns the module with the given id.
func (c *Course) FindModule(moduleID string) (ModuleRef, error) {
	for _, ref := range c.IndexedModules() {
		if ref.Module.ID == moduleID {
			return ref, nil
		}
	}

	return ModuleRef{}, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
}

// FindClip returns the clip with the given id together with the module that holds it.
func (c *Course) FindClip(clipID string) (Clip, ModuleRef, error) {
	for _, ref := range c.IndexedModules() {
		for _, clip := range ref.Module.Clips {
			if clip.ID == clipID {
				return clip, ref, nil
			}
		}
	}

	return Clip{}, ModuleRef{}, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
}

// AuthenticationError represents 401 Unauthorized and 403 Forbidden responses from the catalog.
type AuthenticationError struct {
	Operation string // The catalog call that required authentication
	Err       error  // Underlying error, if any
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
