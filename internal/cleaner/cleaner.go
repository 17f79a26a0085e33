package cleaner

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks github.com/dgallion1/ocrpolish/internal/cleaner Generator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/chunker"
	"github.com/dgallion1/ocrpolish/internal/llm"
	"github.com/dgallion1/ocrpolish/internal/sections"
)

// Generator is the model endpoint the cleaner talks to. *llm.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Options tune a cleaning pass.
type Options struct {
	PreferredModel   string
	MaxChars         int
	MaxAttempts      int
	Backoff          time.Duration
	AttemptTimeout   time.Duration
	PreflightTimeout time.Duration
	MinLengthRatio   float64
	Workers          int
}

// DefaultOptions returns the standard settings: 600-character chunks, three
// attempts two seconds apart, a 60s per-attempt timeout and a 0.5 length gate.
func DefaultOptions() Options {
	return Options{
		PreferredModel:   "phi3:3.8b",
		MaxChars:         chunker.DefaultMaxChars,
		MaxAttempts:      3,
		Backoff:          2 * time.Second,
		AttemptTimeout:   60 * time.Second,
		PreflightTimeout: 5 * time.Second,
		MinLengthRatio:   0.5,
		Workers:          1,
	}
}

// Result summarizes a cleaning pass.
type Result struct {
	Text          string `json:"-"`
	Model         string `json:"model,omitempty"`
	Skipped       bool   `json:"skipped"`
	SkipReason    string `json:"skip_reason,omitempty"`
	Chunks        int    `json:"chunks"`
	Accepted      int    `json:"accepted"`
	RejectedShort int    `json:"rejected_short"`
	Exhausted     int    `json:"exhausted"`
	InputChars    int    `json:"input_chars"`
	OutputChars   int    `json:"output_chars"`
}

func (r *Result) add(cr ChunkResult) {
	r.Chunks++
	switch cr.State {
	case StateSucceeded:
		r.Accepted++
	case StateRejectedShort:
		r.RejectedShort++
	case StateExhaustedFallback:
		r.Exhausted++
	}
}

// Cleaner repairs OCR text chunk by chunk through a language model.
type Cleaner struct {
	gen  Generator
	log  *slog.Logger
	tlog *TransformLog
	opts Options
	wait func(context.Context, time.Duration) error
}

// New creates a Cleaner. tlog may be nil.
func New(gen Generator, log *slog.Logger, tlog *TransformLog, opts Options) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.PreflightTimeout <= 0 {
		opts.PreflightTimeout = def.PreflightTimeout
	}
	if opts.MinLengthRatio <= 0 {
		opts.MinLengthRatio = def.MinLengthRatio
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Cleaner{gen: gen, log: log, tlog: tlog, opts: opts, wait: sleepCtx}
}

// Preflight checks that the model service answers and picks a model: the
// preferred one when installed, else the first available.
func (c *Cleaner) Preflight(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.PreflightTimeout)
	defer cancel()

	models, err := c.gen.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("preflight: %w", err)
	}
	if len(models) == 0 {
		return "", llm.ErrNoModels
	}
	c.log.Info("model service reachable", "models", len(models))

	if c.opts.PreferredModel != "" && slices.Contains(models, c.opts.PreferredModel) {
		c.log.Info("using model", "model", c.opts.PreferredModel)
		return c.opts.PreferredModel, nil
	}
	c.log.Warn("preferred model not found, using first available",
		"preferred", c.opts.PreferredModel, "selected", models[0])
	return models[0], nil
}

// CleanText cleans plain text. When the preflight check fails the input is
// returned unchanged with Skipped set; that is reported, not an error. The
// only error is a cancelled context.
func (c *Cleaner) CleanText(ctx context.Context, text string) (*Result, error) {
	res := &Result{InputChars: utf8.RuneCountInString(text)}
	model, ok := c.preflightOrSkip(ctx, text, res)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res, nil
	}

	chunks := chunker.Collect(chunker.Chunks(text, c.opts.MaxChars))
	c.tlog.Session(model, res.InputChars, len(chunks))
	c.log.Info("starting text cleaning", "chars", res.InputChars, "chunks", len(chunks), "model", model)

	out, err := c.cleanChunks(ctx, model, chunks, res)
	if err != nil {
		return nil, err
	}
	c.finish(res, out)
	return res, nil
}

// CleanTagged cleans the text and ocr section bodies of tagged text, leaving
// table bodies untouched and re-emitting the section tags.
func (c *Cleaner) CleanTagged(ctx context.Context, tagged string) (*Result, error) {
	res := &Result{InputChars: utf8.RuneCountInString(tagged)}
	model, ok := c.preflightOrSkip(ctx, tagged, res)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res, nil
	}

	secs := sections.Parse(tagged)
	total := 0
	for _, s := range secs {
		if s.Type != sections.TypeTable {
			total += len(chunker.Collect(chunker.Chunks(s.Content, c.opts.MaxChars)))
		}
	}
	c.tlog.Session(model, res.InputChars, total)
	c.log.Info("starting tagged cleaning", "chars", res.InputChars, "sections", len(secs), "chunks", total, "model", model)

	// Chunk indexes run across sections so logs stay unambiguous.
	offset := 0
	for i, s := range secs {
		if s.Type == sections.TypeTable {
			continue
		}
		chunks := chunker.Collect(chunker.Chunks(s.Content, c.opts.MaxChars))
		for j := range chunks {
			chunks[j].Index += offset
		}
		offset += len(chunks)

		body, err := c.cleanChunks(ctx, model, chunks, res)
		if err != nil {
			return nil, err
		}
		secs[i].Content = body
	}

	c.finish(res, sections.Format(secs))
	return res, nil
}

func (c *Cleaner) preflightOrSkip(ctx context.Context, text string, res *Result) (string, bool) {
	model, err := c.Preflight(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn("cleaning skipped, model service unavailable", "error", err)
		}
		res.Text = text
		res.Skipped = true
		res.SkipReason = err.Error()
		res.OutputChars = res.InputChars
		return "", false
	}
	res.Model = model
	return model, true
}

func (c *Cleaner) finish(res *Result, out string) {
	res.Text = out
	res.OutputChars = utf8.RuneCountInString(out)
	c.tlog.Summary(res)
	c.log.Info("cleaning completed",
		"chunks", res.Chunks,
		"accepted", res.Accepted,
		"rejected_short", res.RejectedShort,
		"exhausted", res.Exhausted,
		"length_change", res.OutputChars-res.InputChars,
	)
}

// cleanChunks cleans chunks and joins the accepted texts in index order with
// a blank line between them.
func (c *Cleaner) cleanChunks(ctx context.Context, model string, chunks []chunker.Chunk, res *Result) (string, error) {
	results := make([]ChunkResult, len(chunks))

	if c.opts.Workers <= 1 || len(chunks) <= 1 {
		for i, ch := range chunks {
			cr, err := c.cleanChunk(ctx, model, ch)
			if err != nil {
				return "", err
			}
			results[i] = cr
		}
	} else if err := c.cleanParallel(ctx, model, chunks, results); err != nil {
		return "", err
	}

	texts := make([]string, len(results))
	for i, cr := range results {
		res.add(cr)
		texts[i] = cr.Text
	}
	return strings.Join(texts, "\n\n"), nil
}

// cleanParallel runs chunks through a bounded pool. Results land at their
// own index, so ordering does not depend on completion order.
func (c *Cleaner) cleanParallel(ctx context.Context, model string, chunks []chunker.Chunk, results []ChunkResult) error {
	type done struct {
		idx int
		res ChunkResult
		err error
	}
	out := make(chan done, len(chunks))
	sem := make(chan struct{}, c.opts.Workers)

	for i, ch := range chunks {
		sem <- struct{}{}
		go func(i int, ch chunker.Chunk) {
			defer func() { <-sem }()
			cr, err := c.cleanChunk(ctx, model, ch)
			out <- done{idx: i, res: cr, err: err}
		}(i, ch)
	}

	var firstErr error
	for range chunks {
		d := <-out
		if d.err != nil && firstErr == nil {
			firstErr = d.err
		}
		results[d.idx] = d.res
	}
	return firstErr
}
