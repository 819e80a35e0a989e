// Package layout computes cell geometry for a tiled canvas.
//
// # Overview
//
// A canvas of W×H pixels is divided into rows×cols square cells of a common
// base size. The base size is the largest integer that lets every column fit
// horizontally and every row fit vertically:
//
//	base = min(W / cols, H / rows)
//
// Whatever is left over on each axis is spread as equal gaps between cells,
// never around the outer edge, so the tiled block always touches the canvas
// boundary on both ends of an axis that has more than one cell. An axis with
// a single cell has nowhere to put a gap, so that cell stretches to the full
// canvas extent on that axis instead.
//
// Cells are enumerated row-major; cell (col, row) sits at
//
//	(col * (base + gapW), row * (base + gapH))
//
// # Usage
//
//	plan, err := layout.Compute(1920, 1080, 3, 5)
//	for _, c := range plan.Cells {
//	    fmt.Println(c.X, c.Y, c.W, c.H)
//	}
//
// [ComputeCells] is the pure form used by the engine when dimensions are
// already validated.
package layout
