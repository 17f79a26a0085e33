package cleaner

import "strings"

// denyMarkers are conversational phrases small models prepend or append to
// their answer. Matching is case-insensitive on substrings.
var denyMarkers = []string{
	"here is",
	"here's",
	"the text",
	"corrected",
	"fixed",
	"output:",
	"result:",
	"summary",
	"main points",
	"appears to be",
}

// FilterResponse strips commentary from a raw model response. Each line is
// trimmed and kept on its own; lines that are empty, start with a markdown
// list or heading marker, or contain a deny marker are dropped.
func FilterResponse(raw string) string {
	var kept []string
	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "#") {
			continue
		}
		if hasDenyMarker(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func hasDenyMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range denyMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
