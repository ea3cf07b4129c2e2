package canvas

// Image converter: fits one raster image onto a fixed-size transparent canvas
// and writes the result as PNG.
//
// Placement rules:
// 1. Source smaller than the target on BOTH axes: pasted unscaled at (0,0)
// 2. Otherwise: scaled by min(W/w, H/h) with Lanczos, sizes truncated,
//    pasted at (0,0). This includes sources larger on only one axis.
// 3. Everything outside the pasted area stays fully transparent

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode reports a source that cannot be opened or is not a supported image.
	ErrDecode = errors.New("cannot decode image")
	// ErrScale reports a source whose scaled size truncates to zero pixels.
	ErrScale = errors.New("cannot scale image")
	// ErrEncode reports a destination that cannot be created or written.
	ErrEncode = errors.New("cannot write image")
)

// Target is the fixed output size applied to every image of a run
type Target struct {
	Width  int
	Height int
}

// NewTarget validates and returns a conversion target
func NewTarget(width, height int) (Target, error) {
	if width <= 0 || height <= 0 {
		return Target{}, fmt.Errorf("target size must be positive, got %dx%d", width, height)
	}
	return Target{Width: width, Height: height}, nil
}

func (t Target) String() string {
	return fmt.Sprintf("%dx%d", t.Width, t.Height)
}

// Options controls how canvases are encoded. The zero value uses default PNG compression.
type Options struct {
	Compression png.CompressionLevel
}

// Convert decodes src, fits it onto a target-sized canvas and writes it to dst as PNG.
// Missing parent directories of dst are created.
func Convert(src, dst string, target Target, opts Options) error {
	img, err := decodeFile(src)
	if err != nil {
		return err
	}

	fitted, err := Fit(img, target)
	if err != nil {
		return err
	}

	return writePNG(dst, fitted, opts)
}

// Fit places img onto a fully transparent canvas of exactly the target size
func Fit(img image.Image, target Target) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	origWidth, origHeight := src.Bounds().Dx(), src.Bounds().Dy()

	dst := imaging.New(target.Width, target.Height, color.Transparent)

	if origWidth < target.Width && origHeight < target.Height {
		return imaging.Paste(dst, src, image.Pt(0, 0)), nil
	}

	width, height := ScaledSize(origWidth, origHeight, target)
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d scales to %dx%d", ErrScale, origWidth, origHeight, width, height)
	}

	resized := imaging.Resize(src, width, height, imaging.Lanczos)
	return imaging.Paste(dst, resized, image.Pt(0, 0)), nil
}

// ScaledSize returns the proportional size of a width x height image fitted into target.
// Both dimensions are truncated toward zero.
func ScaledSize(width, height int, target Target) (int, int) {
	ratio := math.Min(
		float64(target.Width)/float64(width),
		float64(target.Height)/float64(height),
	)
	return int(float64(width) * ratio), int(float64(height) * ratio)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", ErrDecode, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		if mt, mtErr := mimetype.DetectFile(path); mtErr == nil {
			return nil, fmt.Errorf("%w: content is %s: %w", ErrDecode, mt.String(), err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return img, nil
}

func writePNG(path string, img image.Image, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create output folder: %w", ErrEncode, err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: failed to create file: %w", ErrEncode, err)
	}

	if err := imaging.Encode(out, img, imaging.PNG, imaging.PNGCompressionLevel(opts.Compression)); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to encode png: %w", ErrEncode, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: failed to close file: %w", ErrEncode, err)
	}

	return nil
}
