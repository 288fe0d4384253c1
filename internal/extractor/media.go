package extractor

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Frame is one sampled video frame written to disk.
type Frame struct {
	Index int
	Path  string
}

// FrameSource samples every Nth frame of a media file into dir.
type FrameSource interface {
	Frames(ctx context.Context, path string, every int, dir string) ([]Frame, error)
}

// media OCRs sampled frames concurrently and joins their text in frame
// order. A frame that fails OCR contributes nothing.
func (e *Extractor) media(ctx context.Context, path string) (string, error) {
	if e.ocr == nil || e.frames == nil {
		return "", fmt.Errorf("%w: video OCR not configured", ErrUnsupported)
	}

	dir, err := os.MkdirTemp(e.cfg.TempDir, "hawk-frames-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	frames, err := e.frames.Frames(ctx, path, e.cfg.FrameInterval, dir)
	if err != nil {
		return "", err
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })

	texts := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FrameWorkers)
	for i, fr := range frames {
		i, fr := i, fr
		g.Go(func() error {
			text, err := e.frameText(gctx, fr)
			if err != nil {
				e.log.WithError(err).WithField("path", path).WithField("frame", fr.Index).Debug("Frame OCR failed")
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(texts, "\n"), nil
}

func (e *Extractor) frameText(ctx context.Context, fr Frame) (string, error) {
	f, err := os.Open(fr.Path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", err
	}
	return e.ocrImage(ctx, img)
}

// FFmpegFrames samples frames with the ffmpeg binary.
type FFmpegFrames struct {
	// Binary is the ffmpeg executable, "ffmpeg" when empty.
	Binary string
}

// Frames writes every Nth frame of path as PNG files into dir.
func (s FFmpegFrames) Frames(ctx context.Context, path string, every int, dir string) ([]Frame, error) {
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, every),
		"-fps_mode", "vfr",
		filepath.Join(dir, "frame_%06d.png"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(matches))
	for _, m := range matches {
		seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "frame_"), ".png"))
		if err != nil {
			continue
		}
		frames = append(frames, Frame{Index: (seq - 1) * every, Path: m})
	}
	return frames, nil
}
