package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/digimosa/hawk-scan/internal/logging"
)

// Config holds the extraction tunables.
type Config struct {
	// ContrastFactor scales contrast before binarization; 2.0 doubles it.
	ContrastFactor float64
	// Threshold splits gray levels into black (<) and white (>=).
	Threshold uint8
	// FrameInterval samples every Nth video frame.
	FrameInterval int
	// FrameWorkers bounds concurrent frame OCR.
	FrameWorkers int
	// MaxArchiveDepth bounds archive nesting; the outermost archive is depth 1.
	MaxArchiveDepth int
	// MaxArchiveBytes bounds the bytes written while expanding one
	// top-level archive, nested archives included. Zero disables the cap.
	MaxArchiveBytes int64
	// TempDir hosts scoped extraction directories; os.TempDir when empty.
	TempDir string
}

// DefaultConfig returns the defaults used by the scanner.
func DefaultConfig() Config {
	return Config{
		ContrastFactor:  2.0,
		Threshold:       100,
		FrameInterval:   30,
		FrameWorkers:    4,
		MaxArchiveDepth: 3,
		MaxArchiveBytes: 256 << 20,
	}
}

// OCREngine turns an image file into text.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Extractor converts files of any supported kind into text. It is safe
// for concurrent use.
type Extractor struct {
	cfg    Config
	ocr    OCREngine
	frames FrameSource
	log    logrus.FieldLogger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithOCR enables image and video extraction.
func WithOCR(engine OCREngine) Option {
	return func(e *Extractor) { e.ocr = engine }
}

// WithFrameSource sets the video frame sampler.
func WithFrameSource(src FrameSource) Option {
	return func(e *Extractor) { e.frames = src }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Extractor) { e.log = log }
}

// New creates an Extractor. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Extractor {
	def := DefaultConfig()
	if cfg.ContrastFactor <= 0 {
		cfg.ContrastFactor = def.ContrastFactor
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.FrameWorkers <= 0 {
		cfg.FrameWorkers = def.FrameWorkers
	}
	if cfg.MaxArchiveDepth <= 0 {
		cfg.MaxArchiveDepth = def.MaxArchiveDepth
	}

	e := &Extractor{cfg: cfg, log: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// state follows one top-level extraction through nested archives.
type state struct {
	depth     int
	remaining int64
}

func (e *Extractor) newState() *state {
	remaining := e.cfg.MaxArchiveBytes
	if remaining <= 0 {
		remaining = math.MaxInt64
	}
	return &state{remaining: remaining}
}

// Extract returns the text of the file at path. Failures are returned as
// *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	return e.extract(ctx, path, e.newState())
}

// Text is Extract with failures logged at debug level and swallowed.
func (e *Extractor) Text(ctx context.Context, path string) string {
	text, err := e.Extract(ctx, path)
	if err != nil {
		e.log.WithError(err).WithField("path", path).Debug("Extraction failed, scanning as empty text")
		return ""
	}
	return text
}

// ExtractBytes extracts an in-memory payload. name selects the kind, as
// for files.
func (e *Extractor) ExtractBytes(ctx context.Context, name string, data []byte) (string, error) {
	if Classify(name) == KindText && filepath.Ext(name) != "" {
		return decodeText(data), nil
	}

	dir, err := os.MkdirTemp(e.cfg.TempDir, "hawk-buf-*")
	if err != nil {
		return "", &ExtractionError{Path: name, Kind: Classify(name), Err: err}
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", &ExtractionError{Path: name, Kind: Classify(name), Err: err}
	}
	return e.Extract(ctx, path)
}

func (e *Extractor) extract(ctx context.Context, path string, st *state) (text string, err error) {
	kind := Classify(path)
	if kind == KindText && filepath.Ext(path) == "" {
		kind = sniff(path)
	}

	defer func() {
		// third-party decoders panic on malformed input
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("decoder panic: %v", r)
		}
		if err != nil {
			var extErr *ExtractionError
			if !errors.As(err, &extErr) {
				err = &ExtractionError{Path: path, Kind: kind, Err: err}
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch kind {
	case KindImage:
		return e.image(ctx, path)
	case KindPDF:
		return e.pdf(path)
	case KindDOCX:
		return docxText(path)
	case KindXLSX:
		return excelText(path)
	case KindPPTX:
		return pptxText(path)
	case KindMedia:
		return e.media(ctx, path)
	case KindArchive:
		return e.archive(ctx, path, st)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return decodeText(data), nil
	}
}
