package assets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Layout describes the contact-sheet grid.
type Layout struct {
	Rows    int
	Cols    int
	Spacing int
}

// DefaultLayout is the 3x3 grid with 6px gutters used for contact sheets.
var DefaultLayout = Layout{Rows: 3, Cols: 3, Spacing: 6}

// DefaultFractions samples nine evenly spaced points across the duration.
var DefaultFractions = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// CanvasSize returns the composed sheet dimensions for the given cell size:
// each axis is cells plus a gutter on every side and between cells.
func (l Layout) CanvasSize(cellWidth, cellHeight int) (int, int) {
	w := l.Cols*cellWidth + (l.Cols+1)*l.Spacing
	h := l.Rows*cellHeight + (l.Rows+1)*l.Spacing
	return w, h
}

// ComposeCollage tiles the frames onto a single sheet. Cell width is the
// tile width the frames were extracted at; cell height follows the tallest
// frame so mixed aspect ratios still align, each frame centered in its
// cell. Excess frames beyond the grid are dropped.
func ComposeCollage(frames []image.Image, tileWidth int, layout Layout, background color.Color) *image.NRGBA {
	if max := layout.Rows * layout.Cols; len(frames) > max {
		frames = frames[:max]
	}

	cellH := 0
	for _, f := range frames {
		if h := f.Bounds().Dy(); h > cellH {
			cellH = h
		}
	}
	if cellH == 0 {
		cellH = tileWidth * 9 / 16
	}

	sheetW, sheetH := layout.CanvasSize(tileWidth, cellH)
	sheet := imaging.New(sheetW, sheetH, background)

	for i, f := range frames {
		row := i / layout.Cols
		col := i % layout.Cols
		b := f.Bounds()
		x := layout.Spacing + col*(tileWidth+layout.Spacing) + (tileWidth-b.Dx())/2
		y := layout.Spacing + row*(cellH+layout.Spacing) + (cellH-b.Dy())/2
		sheet = imaging.Paste(sheet, f, image.Pt(x, y))
	}
	return sheet
}
