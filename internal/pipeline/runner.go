package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/cache"
	"github.com/dgallion1/ocrpolish/internal/cleaner"
	"github.com/dgallion1/ocrpolish/internal/doctree"
	"github.com/dgallion1/ocrpolish/internal/parser"
	"github.com/dgallion1/ocrpolish/internal/sections"
)

var (
	ErrInputNotFound    = errors.New("input file not found")
	ErrInputDirNotFound = errors.New("input directory not found")
)

// TextCleaner is the cleaning pass. *cleaner.Cleaner implements it.
type TextCleaner interface {
	CleanText(ctx context.Context, text string) (*cleaner.Result, error)
	CleanTagged(ctx context.Context, tagged string) (*cleaner.Result, error)
}

// Renderer writes the output PDFs. *render.Renderer implements it.
type Renderer interface {
	Render(secs []sections.Section, path, title string) error
	RenderSummary(secs []sections.Section, path, title string) error
}

// RunnerOptions configure a Runner.
type RunnerOptions struct {
	Parse        parser.Options
	Cache        *cache.Store // nil disables the OCR cache
	PreserveTags bool         // clean section bodies only, leaving tables alone
}

// Runner takes one document through extract, clean and render.
type Runner struct {
	cleaner  TextCleaner
	renderer Renderer
	opts     RunnerOptions
	log      *slog.Logger
	now      func() time.Time
}

func NewRunner(cl TextCleaner, rend Renderer, opts RunnerOptions, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cleaner: cl, renderer: rend, opts: opts, log: log, now: time.Now}
}

// ProcessFile runs the whole pipeline for the document at path and writes
// the outputs to outDir.
func (r *Runner) ProcessFile(ctx context.Context, path, outDir string) (*Report, error) {
	return r.Process(ctx, path, outDir, nil)
}

// Process is ProcessFile with a callback invoked as each stage starts.
func (r *Runner) Process(ctx context.Context, path, outDir string, onStage func(JobStatus)) (*Report, error) {
	stage := func(s JobStatus) {
		if onStage != nil {
			onStage(s)
		}
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ts := r.now().Format("20060102_150405")
	log := r.log.With("input", path)
	rep := &Report{Input: path}

	// Extract.
	stage(StatusExtracting)
	raw, fromCache, err := r.Extract(ctx, path)
	if err != nil {
		return rep, err
	}
	rep.FromCache = fromCache
	rep.RawChars = utf8.RuneCountInString(raw)
	rep.RawPath = filepath.Join(outDir, base+"_raw_ocr_"+ts+".txt")
	if rep.RawBytes, err = writeText(rep.RawPath, raw); err != nil {
		return rep, err
	}
	log.Info("raw text saved", "path", rep.RawPath, "chars", rep.RawChars)

	// Clean.
	stage(StatusCleaning)
	clean := r.cleaner.CleanText
	if r.opts.PreserveTags {
		clean = r.cleaner.CleanTagged
	}
	res, err := clean(ctx, raw)
	if err != nil {
		return rep, fmt.Errorf("clean: %w", err)
	}
	rep.Cleaning = res
	rep.CleanedChars = utf8.RuneCountInString(res.Text)
	rep.CleanedPath = filepath.Join(outDir, base+"_cleaned_"+ts+".txt")
	if rep.CleanedBytes, err = writeText(rep.CleanedPath, res.Text); err != nil {
		return rep, err
	}
	log.Info("cleaned text saved", "path", rep.CleanedPath, "chars", rep.CleanedChars)

	// Render.
	stage(StatusRendering)
	secs := sections.Parse(res.Text)
	rep.Sections = sections.Counts(secs)

	pdfPath := filepath.Join(outDir, base+"_cleaned_"+ts+".pdf")
	if err := r.renderer.Render(secs, pdfPath, "Cleaned Document: "+base); err != nil {
		rep.RenderError = err.Error()
		log.Error("pdf generation failed", "error", err)
		return rep, nil
	}
	rep.Rendered = true
	rep.PDFPath = pdfPath
	if info, err := os.Stat(pdfPath); err == nil {
		rep.PDFBytes = info.Size()
	}

	summaryPath := filepath.Join(outDir, base+"_summary_"+ts+".pdf")
	if err := r.renderer.RenderSummary(secs, summaryPath, "Summary: "+base); err != nil {
		log.Warn("summary pdf failed", "error", err)
	} else {
		rep.SummaryPath = summaryPath
	}
	return rep, nil
}

// Extract returns the tagged text of the document at path, from the cache
// when an entry for the file's current identity exists.
func (r *Runner) Extract(ctx context.Context, path string) (text string, fromCache bool, err error) {
	if c := r.opts.Cache; c != nil {
		if text, ok := c.Load(path); ok {
			return text, true, nil
		}
	}

	doc, err := r.parse(ctx, path)
	if err != nil {
		return "", false, err
	}
	text = doc.Tagged()
	r.log.Info("text extracted", "input", path, "pages", doc.Pages, "blocks", len(doc.Blocks), "tables", doc.Tables())

	if c := r.opts.Cache; c != nil {
		if file, err := c.Save(path, text); err != nil {
			r.log.Warn("cache save failed", "input", path, "error", err)
		} else {
			r.log.Info("ocr results cached", "file", file)
		}
	}
	return text, false, nil
}

func (r *Runner) parse(ctx context.Context, path string) (*doctree.Document, error) {
	p, err := parser.ForFile(path, r.opts.Parse)
	if err != nil {
		return nil, err
	}
	// PDFs are read in place rather than copied to a temp file.
	if pdf, ok := p.(*parser.PDFParser); ok {
		return pdf.ParseFile(ctx, path, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// ProcessDir processes every PDF in dir in name order. Failures of single
// documents are recorded on their reports; only a missing directory or a
// cancelled context stops the batch.
func (r *Runner) ProcessDir(ctx context.Context, dir, outDir string) ([]*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputDirNotFound, dir)
		}
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	if len(files) == 0 {
		r.log.Warn("no pdf files found", "dir", dir)
		return nil, nil
	}
	r.log.Info("batch started", "dir", dir, "files", len(files))

	reports := make([]*Report, 0, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r.log.Info("processing", "n", i+1, "of", len(files), "file", name)

		path := filepath.Join(dir, name)
		rep, err := r.ProcessFile(ctx, path, outDir)
		if rep == nil {
			rep = &Report{Input: path}
		}
		if err != nil {
			if ctx.Err() != nil {
				return append(reports, rep), ctx.Err()
			}
			rep.Err = err
			r.log.Error("document failed", "file", name, "error", err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func writeText(path, text string) (int64, error) {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return int64(len(text)), nil
}
