package progress

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressThrottle bounds how often the spinner redraws.
const progressThrottle = 65 * time.Millisecond

// Tracker wraps a spinner that counts resolved edges during a traversal.
type Tracker struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
	count atomic.Int64
}

// NewSpinner creates a spinner for a traversal with an unknown total.
func NewSpinner(out io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, out: out, label: label}
}

// Tick records one resolved edge. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.count.Add(1)
	t.bar.Add(1)
}

// Count returns the number of ticks so far.
func (t *Tracker) Count() int64 {
	return t.count.Load()
}

// FinishSuccess clears the spinner completely (no output).
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the spinner and prints an error message.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
