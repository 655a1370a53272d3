package assets

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // asset measurement
)

const (
	jpegQuality = 95
	webpQuality = 90
)

// EncodeToFile writes the image to path in the given format (png, jpg,
// webp). The file lands via a temp sibling and rename, so a crashed run
// never leaves a truncated asset behind.
func EncodeToFile(img image.Image, path, format string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".asset-*."+format)
	if err != nil {
		return fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(tmp, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(tmp, imaging.Clone(img), &jpeg.Options{Quality: jpegQuality})
	case "webp":
		err = webp.Encode(tmp, img, &webp.Options{Quality: webpQuality})
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	return os.Rename(tmpName, path)
}

// MeasureImageFile reads back an encoded asset's dimensions without decoding
// the full image. PNG, JPEG, and WebP are registered.
func MeasureImageFile(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("measure %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
