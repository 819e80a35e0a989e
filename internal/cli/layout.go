package cli

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/layout"
)

// layoutCommand creates the layout command for inspecting grid geometry.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		grid    string
		cells   bool
		preview string
	)

	cmd := &cobra.Command{
		Use:   "layout [WIDTHxHEIGHT]",
		Short: "Show how a canvas is divided into tiles",
		Long: `Show the square tile size, the gaps and the cell rectangles for a canvas.

Without arguments the size and grid come from the config file. Tiles are
squares of the largest size that fits; leftover space becomes even gaps
between tiles, and a single row or column stretches to the full extent.

With --preview the grid is drawn to an image file (png, jpg, gif, bmp, tif).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			w, h, rows, cols := cfg.Width, cfg.Height, cfg.Rows, cfg.Cols
			if len(args) == 1 {
				if w, h, err = parsePair(args[0]); err != nil {
					return errors.Wrap(errors.ErrCodeInvalidDimensions, err, "canvas size %q", args[0])
				}
			}
			if grid != "" {
				if rows, cols, err = parsePair(grid); err != nil {
					return errors.Wrap(errors.ErrCodeInvalidDimensions, err, "grid %q", grid)
				}
			}

			plan, err := layout.Compute(w, h, rows, cols)
			if err != nil {
				return err
			}
			c.printPlan(plan, cells)

			if preview != "" {
				if err := imaging.Save(renderPreview(plan), preview); err != nil {
					return fmt.Errorf("write preview %s: %w", preview, err)
				}
				c.printSuccess("Preview written")
				c.printFile(preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&grid, "grid", "g", "", "grid as ROWSxCOLS (default: from config)")
	cmd.Flags().BoolVar(&cells, "cells", false, "list every cell rectangle")
	cmd.Flags().StringVarP(&preview, "preview", "p", "", "draw the grid to this image file")

	return cmd
}

func (c *CLI) printPlan(p layout.Plan, cells bool) {
	c.printKeyValue("canvas", fmt.Sprintf("%dx%d", p.Width, p.Height))
	c.printKeyValue("grid", fmt.Sprintf("%d rows x %d cols", p.Rows, p.Cols))
	c.printKeyValue("tile", fmt.Sprintf("%dpx", p.Base))
	c.printKeyValue("gaps", fmt.Sprintf("%.2fpx x %.2fpx", p.GapW, p.GapH))

	if !cells {
		return
	}
	rows := make([][]string, 0, len(p.Cells))
	for i, cell := range p.Cells {
		r := cell.Rect(p.Width, p.Height)
		rows = append(rows, []string{
			strconv.Itoa(i),
			fmt.Sprintf("%d,%d", cell.Row, cell.Col),
			fmt.Sprintf("%.1f,%.1f", cell.X, cell.Y),
			fmt.Sprintf("%.1fx%.1f", cell.W, cell.H),
			fmt.Sprintf("%v", r),
		})
	}
	c.printNewline()
	c.printTable([]string{"Cell", "Row,Col", "Origin", "Size", "Pixels"}, rows)
}

// renderPreview paints each cell in alternating shades on a black canvas.
func renderPreview(p layout.Plan) *image.NRGBA {
	shades := []color.Color{
		color.NRGBA{R: 0x3a, G: 0x8f, B: 0x8a, A: 0xff},
		color.NRGBA{R: 0x5f, G: 0xa8, B: 0xd3, A: 0xff},
	}
	dst := imaging.New(p.Width, p.Height, color.Black)
	for _, cell := range p.Cells {
		r := cell.Rect(p.Width, p.Height)
		if r.Empty() {
			continue
		}
		tile := imaging.New(r.Dx(), r.Dy(), shades[(cell.Row+cell.Col)%len(shades)])
		dst = imaging.Paste(dst, tile, r.Min)
	}
	return dst
}

// parsePair parses "AxB" (also "A×B" and "A,B") into two positive ints.
func parsePair(s string) (int, int, error) {
	s = strings.NewReplacer("×", "x", "X", "x", ",", "x").Replace(strings.TrimSpace(s))
	a, b, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("want AxB")
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	if x <= 0 || y <= 0 {
		return 0, 0, fmt.Errorf("values must be positive")
	}
	return x, y, nil
}
