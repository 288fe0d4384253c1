package extractor

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func (e *Extractor) image(ctx context.Context, path string) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("%w: no OCR engine configured", ErrUnsupported)
	}

	f, err := os.Open(path)
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

// ocrImage enhances img into a temporary PNG, runs OCR on it and removes
// the PNG whatever the outcome.
func (e *Extractor) ocrImage(ctx context.Context, img image.Image) (string, error) {
	enhanced := Enhance(img, e.cfg.ContrastFactor, e.cfg.Threshold)

	tmp, err := os.CreateTemp(e.cfg.TempDir, "hawk-ocr-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, enhanced); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return e.ocr.Recognize(ctx, tmp.Name())
}

// Enhance prepares an image for OCR: grayscale, contrast scaled by factor,
// binarized at threshold, then a 3x3 majority filter to drop speckles.
func Enhance(img image.Image, factor float64, threshold uint8) *image.Gray {
	gray := imaging.Grayscale(img)
	if factor != 1 {
		gray = imaging.AdjustContrast(gray, (factor-1)*100)
	}

	bounds := gray.Bounds()
	bin := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if gray.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).R >= threshold {
				bin.Pix[y*bin.Stride+x] = 255
			}
		}
	}
	return denoise(bin)
}

func denoise(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			white, total := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					total++
					if src.Pix[ny*src.Stride+nx] != 0 {
						white++
					}
				}
			}
			if white*2 > total {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
