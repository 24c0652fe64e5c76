// Package progress prints batch progress to the terminal: an in-place bar
// when stderr is a TTY, one line per item otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const defaultWidth = 80

// Bar reports progress through a fixed number of items.
type Bar struct {
	w           io.Writer
	interactive bool
	width       int

	mu        sync.Mutex
	label     string
	total     int
	done      int
	startedAt time.Time
}

// New returns a Bar writing to f, interactive when f is a terminal.
func New(f *os.File, label string, total int) *Bar {
	fd := int(f.Fd())
	interactive := term.IsTerminal(fd)
	width := defaultWidth
	if interactive {
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			width = w
		}
	}
	return NewWriter(f, interactive, width, label, total)
}

// NewWriter returns a Bar with explicit terminal behavior.
func NewWriter(w io.Writer, interactive bool, width int, label string, total int) *Bar {
	if width <= 0 {
		width = defaultWidth
	}
	return &Bar{
		w:           w,
		interactive: interactive,
		width:       width,
		label:       label,
		total:       total,
		startedAt:   time.Now(),
	}
}

// Step marks one item done with a short status such as "saved" or "failed".
func (b *Bar) Step(item, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done < b.total {
		b.done++
	}

	if !b.interactive {
		fmt.Fprintf(b.w, "[%d/%d] %s: %s\n", b.done, b.total, item, status)
		return
	}

	fmt.Fprintf(b.w, "\r%s", b.render(item+" "+status))
}

// Finish ends the bar line and prints the elapsed time.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := time.Since(b.startedAt).Round(time.Second)
	if b.interactive {
		fmt.Fprintf(b.w, "\r%s\n", b.render("done"))
	}
	fmt.Fprintf(b.w, "%s: %d/%d in %s\n", b.label, b.done, b.total, elapsed)
}

// render draws "label [####----] n/total note", padded to the terminal width.
func (b *Bar) render(note string) string {
	counter := fmt.Sprintf(" %d/%d ", b.done, b.total)
	barWidth := b.width / 3
	if barWidth < 10 {
		barWidth = 10
	}

	filled := 0
	if b.total > 0 {
		filled = barWidth * b.done / b.total
	}
	bar := "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"

	line := b.label + " " + bar + counter + note
	runes := []rune(line)
	if len(runes) > b.width-1 {
		runes = runes[:b.width-1]
	}
	return string(runes) + strings.Repeat(" ", b.width-1-len(runes))
}
