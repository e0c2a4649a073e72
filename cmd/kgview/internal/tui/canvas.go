package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/kgview/pkg/render"
)

// Cell size in scene units. Terminal cells are about twice as tall as wide.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

const (
	edgeRune     = '·'
	nodeRune     = '●'
	selectedRune = '◉'
)

type cell struct {
	r     rune
	color string
	bold  bool
}

// Canvas is a character grid a frame is rasterized into.
type Canvas struct {
	cols, rows int
	cells      []cell
}

// NewCanvas creates a blank canvas.
func NewCanvas(cols, rows int) *Canvas {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c := &Canvas{cols: cols, rows: rows, cells: make([]cell, cols*rows)}
	c.clear()
	return c
}

func (c *Canvas) clear() {
	for i := range c.cells {
		c.cells[i] = cell{r: ' '}
	}
}

// ToCell maps a scene point to a cell.
func ToCell(x, y float64) (int, int) {
	return int(math.Floor(x / CellWidth)), int(math.Floor(y / CellHeight))
}

// ToScene maps a cell to the scene point at its center.
func ToScene(col, row int) (float64, float64) {
	return (float64(col) + 0.5) * CellWidth, (float64(row) + 0.5) * CellHeight
}

func (c *Canvas) set(col, row int, r rune, color string, bold bool) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return
	}
	c.cells[row*c.cols+col] = cell{r: r, color: color, bold: bold}
}

// At returns the rune at a cell, or 0 outside the canvas.
func (c *Canvas) At(col, row int) rune {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return 0
	}
	return c.cells[row*c.cols+col].r
}

func (c *Canvas) text(col, row int, s, color string) {
	for i, r := range []rune(s) {
		c.set(col+i, row, r, color, false)
	}
}

// line draws with Bresenham between two cells.
func (c *Canvas) line(x0, y0, x1, y1 int, color string) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for steps := 0; steps < 4*(c.cols+c.rows)+4; steps++ {
		c.set(x0, y0, edgeRune, color, false)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Draw rasterizes f: edges first, then nodes with their labels so nodes
// stay visible where they overlap edges.
func (c *Canvas) Draw(f *render.Frame) {
	c.clear()
	if f == nil {
		return
	}
	for _, e := range f.Edges {
		x0, y0 := ToCell(e.X1, e.Y1)
		x1, y1 := ToCell(e.X2, e.Y2)
		if !visibleSegment(x0, y0, x1, y1, c.cols, c.rows) {
			continue
		}
		c.line(x0, y0, x1, y1, render.Style.EdgeColor)
	}
	for _, e := range f.Edges {
		if e.Label == "" {
			continue
		}
		lx, ly := ToCell(e.LabelX, e.LabelY)
		c.text(lx-len([]rune(e.Label))/2, ly, e.Label, render.Style.EdgeLabelColor)
	}
	for _, n := range f.Nodes {
		col, row := ToCell(n.X, n.Y)
		r := nodeRune
		color := n.Fill
		if n.Selected {
			r = selectedRune
		}
		if n.Hover {
			color = render.Style.HoverColor
		}
		c.set(col, row, r, color, n.Selected)
		if n.Label != "" {
			c.text(col-len([]rune(n.Label))/2, row+1, n.Label, render.Style.LabelColor)
		}
	}
	if f.Empty {
		msg := f.Message
		c.text((c.cols-len([]rune(msg)))/2, c.rows/2, msg, render.Style.EdgeLabelColor)
	}
}

// Plain returns the canvas without colors, one line per row.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		for col := 0; col < c.cols; col++ {
			b.WriteRune(c.cells[row*c.cols+col].r)
		}
		if row < c.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Render returns the canvas with lipgloss colors. Runs of equally styled
// cells share one style application.
func (c *Canvas) Render() string {
	lines := make([]string, c.rows)
	for row := 0; row < c.rows; row++ {
		var b strings.Builder
		var run []rune
		cur := cell{}
		flush := func() {
			if len(run) == 0 {
				return
			}
			if cur.color == "" && !cur.bold {
				b.WriteString(string(run))
			} else {
				b.WriteString(lipgloss.NewStyle().
					Foreground(lipgloss.Color(cur.color)).
					Bold(cur.bold).
					Render(string(run)))
			}
			run = run[:0]
		}
		for col := 0; col < c.cols; col++ {
			cl := c.cells[row*c.cols+col]
			if cl.color != cur.color || cl.bold != cur.bold {
				flush()
				cur = cl
			}
			run = append(run, cl.r)
		}
		flush()
		lines[row] = b.String()
	}
	return strings.Join(lines, "\n")
}

func visibleSegment(x0, y0, x1, y1, cols, rows int) bool {
	if (x0 < 0 && x1 < 0) || (y0 < 0 && y1 < 0) {
		return false
	}
	if (x0 >= cols && x1 >= cols) || (y0 >= rows && y1 >= rows) {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
