package level

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tile is one immutable grid cell.
type Tile uint8

const (
	Floor Tile = iota
	Wall
	Goal
	Trap
)

var tileRunes = map[rune]Tile{
	'.': Floor,
	'#': Wall,
	'G': Goal,
	'T': Trap,
}

// Rune is the character used for the tile in level files.
func (t Tile) Rune() rune {
	switch t {
	case Floor:
		return '.'
	case Wall:
		return '#'
	case Goal:
		return 'G'
	case Trap:
		return 'T'
	}
	return '?'
}

func (t Tile) String() string {
	switch t {
	case Floor:
		return "floor"
	case Wall:
		return "wall"
	case Goal:
		return "goal"
	case Trap:
		return "trap"
	}
	return "unknown"
}

// Point is a grid coordinate; x is the column, y the row.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns the grid distance between two points.
func (p Point) Manhattan(o Point) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Grid is rows then columns. Level files and JSON encode each row as a string.
type Grid [][]Tile

// ParseGrid builds a grid from row strings using the tile legend.
func ParseGrid(rows []string) (Grid, error) {
	g := make(Grid, 0, len(rows))
	for y, row := range rows {
		line := make([]Tile, 0, len(row))
		for x, r := range row {
			t, ok := tileRunes[r]
			if !ok {
				return nil, fmt.Errorf("row %d col %d: unknown tile %q", y, x, r)
			}
			line = append(line, t)
		}
		g = append(g, line)
	}
	return g, nil
}

// Rows renders the grid back to row strings.
func (g Grid) Rows() []string {
	rows := make([]string, 0, len(g))
	for _, line := range g {
		var b strings.Builder
		for _, t := range line {
			b.WriteRune(t.Rune())
		}
		rows = append(rows, b.String())
	}
	return rows
}

func (g Grid) Height() int {
	return len(g)
}

// Width is the length of the first row; Validate rejects ragged grids.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

func (g Grid) InBounds(p Point) bool {
	return p.Y >= 0 && p.Y < len(g) && p.X >= 0 && p.X < len(g[p.Y])
}

// At returns the tile at p and false when p is outside the grid.
func (g Grid) At(p Point) (Tile, bool) {
	if !g.InBounds(p) {
		return Wall, false
	}
	return g[p.Y][p.X], true
}

func (g Grid) MarshalYAML() (any, error) {
	return g.Rows(), nil
}

func (g *Grid) UnmarshalYAML(node *yaml.Node) error {
	var rows []string
	if err := node.Decode(&rows); err != nil {
		return fmt.Errorf("line %d: grid must be a list of row strings: %w", node.Line, err)
	}
	parsed, err := ParseGrid(rows)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Rows())
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	parsed, err := ParseGrid(rows)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
