// Package progress reports traversal progress on the terminal.
package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives one tick per listed file.
type Reporter interface {
	Start(description string)
	Increment(name string)
	Finish()
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Start(string)     {}
func (NopReporter) Increment(string) {}
func (NopReporter) Finish()          {}

// SpinnerReporter renders an indeterminate spinner since the number of files
// is unknown until the traversal ends.
type SpinnerReporter struct {
	writer      io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewSpinnerReporter creates a spinner that writes to writer.
func NewSpinnerReporter(writer io.Writer) *SpinnerReporter {
	return &SpinnerReporter{writer: writer}
}

// Start initializes the spinner.
func (reporter *SpinnerReporter) Start(description string) {
	reporter.description = description
	reporter.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(reporter.writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(reporter.writer, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Increment advances the spinner by one file and shows its name.
func (reporter *SpinnerReporter) Increment(name string) {
	if reporter.bar == nil {
		return
	}
	reporter.bar.Describe(reporter.description + " " + name)
	_ = reporter.bar.Add(1)
}

// Finish completes the spinner.
func (reporter *SpinnerReporter) Finish() {
	if reporter.bar != nil {
		_ = reporter.bar.Finish()
	}
}

var (
	_ Reporter = NopReporter{}
	_ Reporter = (*SpinnerReporter)(nil)
)
