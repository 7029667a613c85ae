package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/resolver"
	"github.com/mitchellh/colorstring"
)

// RetryLabel names attempt index as shown to users. The first attempt has no label; every
// later attempt, whether the previous one was skipped as invalid or failed, is "Retry #index".
func RetryLabel(index int) string {
	if index <= 0 {
		return ""
	}

	return fmt.Sprintf("Retry #%d", index)
}

// Console renders progress for humans. Lines belonging to one clip are buffered until the clip
// reaches a terminal state so that clips resolved in parallel never interleave.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	color   colorstring.Colorize
	pending map[string]*clipBlock
}

func NewConsole(w io.Writer, color bool) *Console {
	return &Console{
		w: w,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !color,
		},
		pending: make(map[string]*clipBlock),
	}
}

type clipBlock struct {
	sb       strings.Builder
	lineOpen bool
}

// detail writes an indented status line below the clip title.
func (b *clipBlock) detail(text string) {
	if b.lineOpen {
		b.sb.WriteString("\n")
		b.lineOpen = false
	}

	b.sb.WriteString("\t\t  --  " + text + "\n")
}

func (c *Console) paint(color, text string) string {
	return c.color.Color("["+color+"]") + text + c.color.Color("[reset]")
}

func (c *Console) println(color, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, c.paint(color, text))
}

func (c *Console) CourseStarted(title string) {
	c.println("yellow", fmt.Sprintf("Downloading '%s' started ...", title))
}

func (c *Console) CourseCompleted(title string) {
	c.println("yellow", fmt.Sprintf("Downloading '%s' completed.", title))
}

func (c *Console) SelectionStarted(title string) {
	c.println("yellow", fmt.Sprintf("Downloading from course '%s' started ...", title))
}

func (c *Console) SelectionCompleted() {
	c.println("yellow", "Download complete")
}

// Module prints a module header; listings also show the module id.
func (c *Console) Module(ref catalog.ModuleRef, listing bool) {
	line := c.paint("green", fmt.Sprintf("\t%d. %s", ref.Index, ref.Module.Title))
	if listing {
		line += c.paint("cyan", "  --  "+ref.Module.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, line)
}

func (c *Console) ListClip(clip catalog.Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "\t\t%d. %s%s\n", clip.Index, clip.Title, c.paint("cyan", "  --  "+clip.ID))
}

func (c *Console) Warn(msg string) {
	c.println("red", "Warning: "+msg)
}

func (c *Console) ClipUnavailable(clip catalog.Clip, _ error) {
	c.println("red", fmt.Sprintf("\t\t---Error retrieving clip '%s'", clip.Title))
}

func (c *Console) ClipNotFound(target resolver.Target) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "\t\t%d. %s%s\n", target.Clip.Index, target.Clip.Title, c.paint("red", "  --  no sources available"))
}

// ClipAborted flushes a clip whose resolution stopped on a fault no source could fix.
func (c *Console) ClipAborted(target resolver.Target, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block(target)
	b.detail(c.paint("red", "Aborted: "+err.Error()))
	c.flush(target)
}

// Report implements resolver.Sink.
func (c *Console) Report(_ context.Context, e resolver.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := e.EventTarget()
	b := c.block(target)

	switch ev := e.(type) {
	case resolver.AttemptStarted:
	case resolver.AttemptSkippedInvalid:
		b.detail(c.paint("red", fmt.Sprintf("Invalid link: Cdn: %s with Url: %s (%s)", ev.Candidate.SourceID, ev.Candidate.Locator, ev.Reason)))
	case resolver.AttemptFailed:
		// The last failure is followed by AllExhausted, which prints the re-run hint instead.
		if !ev.IsLast {
			b.detail(c.paint("red", "Failed: "+RetryLabel(ev.Index+1)))
		}
	case resolver.AttemptSucceeded:
		if b.lineOpen {
			b.sb.WriteString(c.paint("blue", "  --  completed") + "\n")
			b.lineOpen = false
		} else {
			b.detail(c.paint("blue", "completed"))
		}

		c.flush(target)
	case resolver.AllExhausted:
		b.detail(c.paint("red", fmt.Sprintf(
			"Download failed. To download this video run\n\t\t  '--out <Output Path> --course %s --clip %s'",
			target.CourseName, target.Clip.ID)))
		c.flush(target)
	}
}

// block returns the buffer for target, opening it with the clip title. Callers hold c.mu.
func (c *Console) block(target resolver.Target) *clipBlock {
	b, ok := c.pending[target.Destination]
	if !ok {
		b = &clipBlock{lineOpen: true}
		fmt.Fprintf(&b.sb, "\t\t%d. %s", target.Clip.Index, target.Clip.Title)
		c.pending[target.Destination] = b
	}

	return b
}

// flush writes and forgets the buffer for target. Callers hold c.mu.
func (c *Console) flush(target resolver.Target) {
	b, ok := c.pending[target.Destination]
	if !ok {
		return
	}

	if b.lineOpen {
		b.sb.WriteString("\n")
	}

	_, _ = io.WriteString(c.w, b.sb.String())
	delete(c.pending, target.Destination)
}
