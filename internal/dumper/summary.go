package dumper

import (
	"fmt"

	"github.com/temirov/treedump/internal/utils"
)

const (
	summaryFormat       = "%d directories, %d files (%d dumped, %d unreadable), %s"
	summaryTokensFormat = ", %d tokens (%s)"
)

// Summary aggregates counters collected during one run.
type Summary struct {
	Directories int
	Files       int
	Dumped      int
	Unreadable  int
	Bytes       int64
	Tokens      int
	TokenModel  string
}

func (summary *Summary) addDumped(size int64) {
	summary.Dumped++
	summary.Bytes += size
}

// String renders the summary as a single line.
func (summary Summary) String() string {
	rendered := fmt.Sprintf(summaryFormat, summary.Directories, summary.Files, summary.Dumped, summary.Unreadable, utils.FormatFileSize(summary.Bytes))
	if summary.TokenModel != "" {
		rendered += fmt.Sprintf(summaryTokensFormat, summary.Tokens, summary.TokenModel)
	}
	return rendered
}
