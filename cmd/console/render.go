package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	wallStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	floorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	goalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	trapStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	robotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	itemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	enemyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	pulseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

var kindGlyphs = map[level.Kind]rune{
	level.KindKey:     'k',
	level.KindWeapon:  'w',
	level.KindChest:   'C',
	level.KindDoor:    'D',
	level.KindMonster: 'M',
	level.KindBoss:    'B',
}

var facingGlyphs = map[action.Direction]rune{
	action.Front: 'v',
	action.Back:  '^',
	action.Left:  '<',
	action.Right: '>',
}

var titleCaser = cases.Title(language.English)

// kindLabel is the display name of an entity kind.
func kindLabel(k level.Kind) string {
	return titleCaser.String(string(k))
}

// cellAt picks what to draw at p: the robot, then the most prominent live
// entity, then the tile.
func cellAt(l *level.LevelConfig, st *engine.RunState, p level.Point) (rune, lipgloss.Style) {
	if st.PlayerPos == p {
		if g, ok := facingGlyphs[st.Facing]; ok {
			return g, robotStyle
		}
		return '@', robotStyle
	}

	var best *level.Entity
	for i := range st.Entities {
		e := &st.Entities[i]
		if !e.Live() || e.Pos() != p {
			continue
		}
		if best == nil || prominence(e) > prominence(best) {
			best = e
		}
	}
	if best != nil {
		style := itemStyle
		switch {
		case best.HitPulse:
			style = pulseStyle
		case best.IsEnemy():
			style = enemyStyle
		case best.Kind == level.KindDoor:
			style = doorStyle
		}
		return kindGlyphs[best.Kind], style
	}

	t, _ := l.Grid.At(p)
	switch t {
	case level.Wall:
		return t.Rune(), wallStyle
	case level.Goal:
		return t.Rune(), goalStyle
	case level.Trap:
		return t.Rune(), trapStyle
	default:
		return t.Rune(), floorStyle
	}
}

func prominence(e *level.Entity) int {
	switch {
	case e.IsEnemy():
		return 3
	case e.Kind == level.KindDoor:
		return 2
	case e.Kind == level.KindChest:
		return 1
	}
	return 0
}

// plainGrid renders the grid without styling.
func plainGrid(l *level.LevelConfig, st *engine.RunState) []string {
	rows := make([]string, 0, l.Grid.Height())
	for y := range l.Grid {
		var b strings.Builder
		for x := range l.Grid[y] {
			r, _ := cellAt(l, st, level.Point{X: x, Y: y})
			b.WriteRune(r)
		}
		rows = append(rows, b.String())
	}
	return rows
}

func renderGrid(l *level.LevelConfig, st *engine.RunState) string {
	var b strings.Builder
	for y := range l.Grid {
		for x := range l.Grid[y] {
			r, style := cellAt(l, st, level.Point{X: x, Y: y})
			b.WriteString(style.Render(string(r)))
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// describeEntity is one legend line.
func describeEntity(e *level.Entity) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", kindLabel(e.Kind), e.ID))
	if e.Value != nil {
		parts = append(parts, "= "+e.Value.String())
	}
	if e.Required != nil {
		parts = append(parts, "needs "+e.Required.String())
	}
	if e.IsEnemy() {
		parts = append(parts, fmt.Sprintf("hp %d", e.HP))
		if e.Weakness != nil {
			parts = append(parts, "weak to "+e.Weakness.String())
		}
	}
	return strings.Join(parts, " ")
}

func renderLegend(st *engine.RunState) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("ENTITIES") + "\n")
	shown := 0
	for i := range st.Entities {
		e := &st.Entities[i]
		if !e.Live() {
			continue
		}
		shown++
		b.WriteString(fmt.Sprintf("%c %s\n", kindGlyphs[e.Kind], describeEntity(e)))
	}
	if shown == 0 {
		b.WriteString(dimStyle.Render("none") + "\n")
	}

	b.WriteString("\n" + headerStyle.Render("BACKPACK") + "\n")
	if len(st.Backpack) == 0 {
		b.WriteString(dimStyle.Render("empty") + "\n")
	}
	for i := range st.Backpack {
		b.WriteString("• " + describeEntity(&st.Backpack[i]) + "\n")
	}
	return b.String()
}
