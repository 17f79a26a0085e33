package cleaner

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// artifactPatterns are OCR defects the transformation log reports as fixed
// or remaining for each attempt.
var artifactPatterns = []struct {
	re   *regexp.Regexp
	desc string
}{
	{regexp.MustCompile(`\b\d+\s+\d+\b`), "Separated numbers"},
	{regexp.MustCompile(`\b[A-Za-z]\s+[A-Za-z]\b`), "Separated letters"},
	{regexp.MustCompile(`[0O]\w`), "Zero/O confusion"},
	{regexp.MustCompile(`[1l]\w`), "One/l confusion"},
}

const rule = "================================================================================"

// TransformLog writes a human-readable record of every cleaning attempt.
// A nil *TransformLog discards everything.
type TransformLog struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewTransformLog returns a log writing to w.
func NewTransformLog(w io.Writer) *TransformLog {
	return &TransformLog{w: w, now: time.Now}
}

func (l *TransformLog) printf(format string, args ...any) {
	stamp := l.now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.w, "%s - %s\n", stamp, fmt.Sprintf(format, args...))
}

// Session writes the header for one cleaning pass.
func (l *TransformLog) Session(model string, inputChars, chunks int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printf("LLM CLEANING SESSION STARTED")
	l.printf("Model: %s", model)
	l.printf("Input length: %d characters", inputChars)
	l.printf("Total chunks: %d", chunks)
	l.printf("Timestamp: %s", l.now().Format(time.RFC3339))
}

// Attempt writes one attempt's input, output and analysis. The block is
// written under the lock so concurrent workers never interleave.
func (l *TransformLog) Attempt(input string, a Attempt) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	output := a.Filtered
	inLen := utf8.RuneCountInString(input)
	outLen := utf8.RuneCountInString(output)

	l.printf("\n%s", rule)
	l.printf("CHUNK %d TRANSFORMATION (Attempt %d)", a.ChunkIndex, a.Number)
	l.printf("Processing time: %.2f seconds", a.Elapsed.Seconds())
	l.printf("Outcome: %s", a.Outcome)
	if a.Err != nil {
		l.printf("Error: %v", a.Err)
		l.printf("%s\n", rule)
		return
	}
	l.printf("Input length: %d characters", inLen)
	l.printf("Output length: %d characters", outLen)
	l.printf("Length change: %+d characters", outLen-inLen)
	l.printf("Length ratio: %.3f", a.Ratio)
	l.printf("%s", rule)
	l.printf("INPUT:")
	l.printf("\"\"\"\n%s\n\"\"\"", input)
	l.printf("OUTPUT:")
	l.printf("\"\"\"\n%s\n\"\"\"", output)
	l.printf("ANALYSIS:")

	issues := Analyze(input, output)
	if len(issues) == 0 {
		l.printf("  - No issues detected")
	}
	for _, issue := range issues {
		l.printf("  - %s", issue)
	}
	l.printf("%s\n", rule)
}

// Summary writes the footer for a cleaning pass.
func (l *TransformLog) Summary(r *Result) {
	if l == nil || r == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printf("\nSESSION SUMMARY")
	l.printf("Chunks: %d (accepted %d, rejected short %d, exhausted %d)",
		r.Chunks, r.Accepted, r.RejectedShort, r.Exhausted)
	l.printf("Final length: %d characters", r.OutputChars)
	l.printf("Length change: %+d characters", r.OutputChars-r.InputChars)
	l.printf("Processing completed: %s", l.now().Format(time.RFC3339))
}

// Analyze compares a chunk with its cleaned output and lists suspicious
// length changes plus OCR artifacts that were fixed or remain.
func Analyze(input, output string) []string {
	var issues []string
	inLen := float64(utf8.RuneCountInString(input))
	outLen := float64(utf8.RuneCountInString(output))
	if outLen < inLen*0.7 {
		issues = append(issues, "WARNING: Output significantly shorter than input")
	}
	if outLen > inLen*1.5 {
		issues = append(issues, "WARNING: Output significantly longer than input")
	}
	for _, p := range artifactPatterns {
		inHas := p.re.MatchString(input)
		outHas := p.re.MatchString(output)
		switch {
		case inHas && !outHas:
			issues = append(issues, "FIXED: "+p.desc)
		case outHas:
			issues = append(issues, "REMAINING: "+p.desc)
		}
	}
	return issues
}

// preview shortens text for single-line log attributes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
