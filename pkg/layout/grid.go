package layout

import (
	"image"
	"math"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// Cell is the geometry of one grid cell in canvas pixel space.
// Coordinates are fractional because gaps may not be whole pixels.
type Cell struct {
	Row, Col   int
	X, Y, W, H float64
}

// Right returns the horizontal end of the cell.
func (c Cell) Right() float64 { return c.X + c.W }

// Bottom returns the vertical end of the cell.
func (c Cell) Bottom() float64 { return c.Y + c.H }

// Rect rounds the cell to integer pixel bounds and clamps them to a canvas
// of the given size, so a cell never extends past the canvas edges.
func (c Cell) Rect(canvasW, canvasH int) image.Rectangle {
	x0 := clamp(int(math.Round(c.X)), 0, canvasW)
	y0 := clamp(int(math.Round(c.Y)), 0, canvasH)
	x1 := clamp(int(math.Round(c.X+c.W)), x0, canvasW)
	y1 := clamp(int(math.Round(c.Y+c.H)), y0, canvasH)
	return image.Rect(x0, y0, x1, y1)
}

// Plan is the result of laying out a grid.
type Plan struct {
	Width, Height int
	Rows, Cols    int
	Base          int
	GapW, GapH    float64
	Cells         []Cell
}

// Compute validates the inputs and lays out the grid.
func Compute(canvasW, canvasH, rows, cols int) (Plan, error) {
	if err := errors.ValidateDimensions(canvasW, canvasH, rows, cols); err != nil {
		return Plan{}, err
	}
	return plan(canvasW, canvasH, rows, cols), nil
}

// ComputeCells returns the row-major cell geometry for a canvas. Callers are
// expected to have validated the inputs; non-positive values yield no cells.
func ComputeCells(canvasW, canvasH, rows, cols int) []Cell {
	if canvasW <= 0 || canvasH <= 0 || rows < 1 || cols < 1 {
		return nil
	}
	return plan(canvasW, canvasH, rows, cols).Cells
}

func plan(canvasW, canvasH, rows, cols int) Plan {
	base := min(canvasW/cols, canvasH/rows)

	remW := canvasW - base*cols
	remH := canvasH - base*rows
	if remW < 0 || remH < 0 {
		base--
		remW = canvasW - base*cols
		remH = canvasH - base*rows
	}

	gapW := gap(remW, cols)
	gapH := gap(remH, rows)

	cellW, cellH := float64(base), float64(base)
	if cols == 1 {
		cellW = float64(canvasW)
	}
	if rows == 1 {
		cellH = float64(canvasH)
	}

	cells := make([]Cell, 0, rows*cols)
	for row := range rows {
		for col := range cols {
			cells = append(cells, Cell{
				Row: row,
				Col: col,
				X:   float64(col) * (float64(base) + gapW),
				Y:   float64(row) * (float64(base) + gapH),
				W:   cellW,
				H:   cellH,
			})
		}
	}

	return Plan{
		Width:  canvasW,
		Height: canvasH,
		Rows:   rows,
		Cols:   cols,
		Base:   base,
		GapW:   gapW,
		GapH:   gapH,
		Cells:  cells,
	}
}

// gap spreads remainder pixels between count cells.
func gap(remainder, count int) float64 {
	if count <= 1 || remainder <= 0 {
		return 0
	}
	return float64(remainder) / float64(count-1)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
