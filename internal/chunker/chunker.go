package chunker

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars is the chunk bound used when callers pass a non-positive size.
const DefaultMaxChars = 600

// Chunk is a sentence-aligned, contiguous slice of the source text.
type Chunk struct {
	Index int    // 1-based position in the sequence.
	Text  string // Trimmed source slice.
	Len   int    // Length of Text in characters.
}

// span marks a sentence as byte offsets into the source.
type span struct {
	start, end int
}

// Chunks splits text into sentence-aligned chunks of at most maxChars
// characters. Sentences are never split, so a single sentence longer than
// maxChars becomes its own oversized chunk. The sequence is lazy and can be
// ranged over more than once.
func Chunks(text string, maxChars int) iter.Seq[Chunk] {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return func(yield func(Chunk) bool) {
		index := 0
		emit := func(start, end int) bool {
			t := strings.TrimSpace(text[start:end])
			if t == "" {
				return true
			}
			index++
			return yield(Chunk{Index: index, Text: t, Len: utf8.RuneCountInString(t)})
		}

		var cur span
		empty := true

		for sent := range sentences(text) {
			if empty {
				cur = sent
				empty = false
				continue
			}
			// Measure the merged slice so the separator whitespace counts too.
			if utf8.RuneCountInString(text[cur.start:sent.end]) > maxChars {
				if !emit(cur.start, cur.end) {
					return
				}
				cur = sent
				continue
			}
			cur.end = sent.end
		}

		if !empty {
			emit(cur.start, cur.end)
		}
	}
}

// Collect drains a chunk sequence into a slice.
func Collect(seq iter.Seq[Chunk]) []Chunk {
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

// sentences yields sentence spans. A sentence ends at '.', '!' or '?'
// followed by whitespace; the whitespace run between sentences belongs to
// neither span.
func sentences(text string) iter.Seq[span] {
	return func(yield func(span) bool) {
		start := skipSpace(text, 0)
		i := start
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			i += size
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			if i >= len(text) {
				break
			}
			next, _ := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(next) {
				continue
			}
			if !yield(span{start: start, end: i}) {
				return
			}
			start = skipSpace(text, i)
			i = start
		}
		if start < len(text) {
			end := len(strings.TrimRightFunc(text, unicode.IsSpace))
			if end > start {
				yield(span{start: start, end: end})
			}
		}
	}
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
