// Package ocr binds the extractor to the Tesseract engine.
package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognises text with libtesseract. A client is created per
// call because gosseract clients are not safe for concurrent use.
type Tesseract struct {
	Languages []string
}

// NewTesseract returns an engine for the given languages, English when none.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{Languages: languages}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Languages...); err != nil {
		return "", err
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
