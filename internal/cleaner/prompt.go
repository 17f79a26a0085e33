package cleaner

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/llm"
)

const cleaningPrompt = `Fix OCR errors in this text. Do NOT summarize or explain anything.

EXAMPLE:
Input: "Th e qu ick br0wn f0x jum ps 0ver th e 1azy d0g"
Output: "The quick brown fox jumps over the lazy dog"

Input: "D ata w arehouses ar e lim ited in th eir ab ility"
Output: "Data warehouses are limited in their ability"

Input: "In 2e21, the c0mpany"
Output: "In 2021, the company"

IMPORTANT: Keep all years (2020, 2021, 2022, etc.) and numbers exactly as they are.
IMPORTANT: Keep ALL line breaks and paragraph breaks as in the input. Do not merge lines or paragraphs. Only correct OCR errors.
Now fix this text (output ONLY the corrected text):

`

// stopSequences cut generation when the model starts a new example or
// commentary block.
var stopSequences = []string{"\n\nInput:", "EXAMPLE:", "Now fix", "Output:"}

// BuildPrompt wraps a chunk in the fixed correction template.
func BuildPrompt(chunk string) string {
	var sb strings.Builder
	sb.Grow(len(cleaningPrompt) + len(chunk))
	sb.WriteString(cleaningPrompt)
	sb.WriteString(chunk)
	return sb.String()
}

// BuildRequest builds a deterministic generate request for one chunk. The
// output cap is 1.2x the chunk length so a runaway response is truncated.
func BuildRequest(model, chunk string) llm.GenerateRequest {
	stop := make([]string, len(stopSequences))
	copy(stop, stopSequences)
	return llm.GenerateRequest{
		Model:  model,
		Prompt: BuildPrompt(chunk),
		Stream: false,
		Options: llm.Options{
			Temperature:   0.0,
			TopP:          0.1,
			TopK:          10,
			RepeatPenalty: 1.0,
			NumPredict:    int(float64(utf8.RuneCountInString(chunk)) * 1.2),
			Stop:          stop,
		},
	}
}
