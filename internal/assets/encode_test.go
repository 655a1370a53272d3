package assets

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestEncodeAndMeasure(t *testing.T) {
	t.Parallel()

	img := imaging.New(320, 180, color.NRGBA{R: 40, G: 80, B: 120, A: 255})

	for _, format := range []string{"png", "jpg", "webp"} {
		format := format
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "thumb."+format)
			if err := EncodeToFile(img, path, format); err != nil {
				t.Fatalf("EncodeToFile(%s): %v", format, err)
			}
			w, h, err := MeasureImageFile(path)
			if err != nil {
				t.Fatalf("MeasureImageFile: %v", err)
			}
			if w != 320 || h != 180 {
				t.Errorf("measured %dx%d, want 320x180", w, h)
			}
		})
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	t.Parallel()

	img := imaging.New(8, 8, color.Black)
	err := EncodeToFile(img, filepath.Join(t.TempDir(), "thumb.bmp"), "bmp")
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestEncodeReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "thumb.png")
	if err := EncodeToFile(imaging.New(100, 50, color.Black), path, "png"); err != nil {
		t.Fatal(err)
	}
	if err := EncodeToFile(imaging.New(200, 100, color.Black), path, "png"); err != nil {
		t.Fatal(err)
	}
	w, h, err := MeasureImageFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if w != 200 || h != 100 {
		t.Errorf("measured %dx%d, want replaced 200x100", w, h)
	}
}

func TestMeasureMissingFile(t *testing.T) {
	t.Parallel()

	if _, _, err := MeasureImageFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
