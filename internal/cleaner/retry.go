package cleaner

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/chunker"
	"github.com/dgallion1/ocrpolish/internal/llm"
)

// State is the position of one chunk in the bounded-retry state machine.
type State int

const (
	StateAttempting State = iota
	StateSucceeded
	StateRejectedShort
	StateExhaustedFallback
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateRejectedShort:
		return "rejected_short"
	case StateExhaustedFallback:
		return "exhausted_fallback"
	default:
		return "unknown"
	}
}

// Outcome classifies a single attempt.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeRejectedShort   Outcome = "rejected_too_short"
	OutcomeFailedTransport Outcome = "failed_transport"
)

// Attempt is one request/response cycle for a chunk.
type Attempt struct {
	ChunkIndex int
	Number     int
	Elapsed    time.Duration
	Raw        string
	Filtered   string
	Ratio      float64
	Outcome    Outcome
	Err        error
}

// ChunkResult is the final state of one chunk.
type ChunkResult struct {
	Chunk    chunker.Chunk
	State    State
	Text     string // Accepted text: filtered output or the original chunk.
	Attempts []Attempt
}

// cleanChunk drives one chunk from Attempting to a terminal state. Only a
// cancelled parent context produces an error; every other failure ends in a
// fallback to the original chunk text.
func (c *Cleaner) cleanChunk(ctx context.Context, model string, ch chunker.Chunk) (ChunkResult, error) {
	log := c.log.With("chunk", ch.Index)
	res := ChunkResult{Chunk: ch, State: StateAttempting}

	for n := 1; res.State == StateAttempting; n++ {
		a := c.attempt(ctx, model, ch, n)
		res.Attempts = append(res.Attempts, a)
		c.tlog.Attempt(ch.Text, a)

		switch a.Outcome {
		case OutcomeAccepted:
			res.State = StateSucceeded
			res.Text = a.Filtered
			log.Debug("chunk cleaned", "attempt", n, "ratio", a.Ratio, "elapsed_ms", a.Elapsed.Milliseconds())

		case OutcomeRejectedShort:
			res.State = StateRejectedShort
			res.Text = ch.Text
			log.Warn("result too short, using original", "attempt", n, "ratio", a.Ratio, "output", preview(a.Filtered, 80))

		case OutcomeFailedTransport:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			log.Error("cleaning attempt failed", "attempt", n, "of", c.opts.MaxAttempts, "retryable", llm.IsRetryable(a.Err), "error", a.Err)
			if n >= c.opts.MaxAttempts {
				res.State = StateExhaustedFallback
				res.Text = ch.Text
				log.Error("all attempts failed, using original", "attempts", n)
				continue
			}
			if err := c.wait(ctx, c.opts.Backoff); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// attempt performs one bounded request and classifies the result.
func (c *Cleaner) attempt(ctx context.Context, model string, ch chunker.Chunk, n int) Attempt {
	a := Attempt{ChunkIndex: ch.Index, Number: n}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.gen.Generate(callCtx, BuildRequest(model, ch.Text))
	a.Elapsed = time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &timeoutError{after: c.opts.AttemptTimeout, err: err}
		}
		a.Outcome = OutcomeFailedTransport
		a.Err = err
		return a
	}

	a.Raw = raw
	a.Filtered = FilterResponse(raw)
	if ch.Len > 0 {
		a.Ratio = float64(utf8.RuneCountInString(a.Filtered)) / float64(ch.Len)
	}
	if a.Ratio < c.opts.MinLengthRatio {
		a.Outcome = OutcomeRejectedShort
		return a
	}
	a.Outcome = OutcomeAccepted
	return a
}

type timeoutError struct {
	after time.Duration
	err   error
}

func (e *timeoutError) Error() string {
	return "request timed out after " + e.after.String()
}

func (e *timeoutError) Unwrap() error { return e.err }

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
