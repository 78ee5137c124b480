package interview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/terra-clan/caseprep/internal/models"
)

// MaxExhibits caps how many exhibits a candidate receives in one interview
const MaxExhibits = 3

const (
	msgNoExhibits       = "I don't have any additional exhibits for this case."
	msgExhibitsCapped   = "You've received all available exhibits for this interview. Please proceed with your analysis."
	msgExhibitsProvided = "All exhibits have been provided."
	msgFinalExhibit     = "(This is the final exhibit. Please proceed with your analysis.)"
)

var exhibitRequestKeywords = []string{"exhibit", "data", "numbers", "show me", "can i see", "information"}

// IsExhibitRequest reports whether a candidate message asks for case data
func IsExhibitRequest(message string) bool {
	return containsAny(message, exhibitRequestKeywords)
}

// ExhibitTracker hands out a case's exhibits one at a time, in case order,
// never more than MaxExhibits and never the same index twice.
type ExhibitTracker struct {
	exhibits []models.Exhibit
	released []int
}

// NewExhibitTracker creates a tracker over the case's exhibit pool
func NewExhibitTracker(exhibits []models.Exhibit) *ExhibitTracker {
	return &ExhibitTracker{exhibits: exhibits}
}

// Limit is the number of exhibits this case can release
func (t *ExhibitTracker) Limit() int {
	return min(MaxExhibits, len(t.exhibits))
}

// Released returns a copy of the released indices in release order
func (t *ExhibitTracker) Released() []int {
	return slices.Clone(t.released)
}

// Restore reloads a persisted release set. Out of range and duplicate indices
// are dropped and the cap is enforced.
func (t *ExhibitTracker) Restore(indices []int) {
	t.released = t.released[:0]
	for _, idx := range indices {
		if len(t.released) >= t.Limit() {
			break
		}
		if idx < 0 || idx >= len(t.exhibits) || slices.Contains(t.released, idx) {
			continue
		}
		t.released = append(t.released, idx)
	}
}

// Request releases the next exhibit. exhausted is true once the candidate has
// everything this interview will give them.
func (t *ExhibitTracker) Request() (text string, exhausted bool) {
	if len(t.exhibits) == 0 {
		return msgNoExhibits, false
	}
	if len(t.released) >= MaxExhibits {
		return msgExhibitsCapped, true
	}

	next := -1
	for i := range t.exhibits {
		if !slices.Contains(t.released, i) {
			next = i
			break
		}
	}
	if next < 0 {
		return msgExhibitsProvided, true
	}

	t.released = append(t.released, next)
	exhausted = len(t.released) >= MaxExhibits || len(t.released) == len(t.exhibits)

	text = formatExhibit(t.exhibits[next])
	if len(t.released) >= MaxExhibits {
		text += "\n\n" + msgFinalExhibit
	}
	return text, exhausted
}

func formatExhibit(ex models.Exhibit) string {
	title := ex.Title
	if title == "" {
		title = "Exhibit"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", title)
	b.WriteString(renderExhibitData(ex.Data))
	return b.String()
}

// renderExhibitData pretty-prints JSON payloads and passes anything else through
func renderExhibitData(data json.RawMessage) string {
	if len(data) == 0 {
		return "{}"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return string(data)
	}
	return out.String()
}
