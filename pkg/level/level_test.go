package level

import (
	"testing"

	"github.com/jwebster45206/robot-engine/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corridorYAML = `
id: 9
title: Corridor
initial_script: |
  robot.moveRight(3)
start: {x: 1, y: 1}
grid:
  - "#####"
  - "#..G#"
  - "#####"
entities:
  - {id: k, x: 2, y: 1, kind: key, value: "10"}
  - {id: d, x: 3, y: 1, kind: door, required: 10}
`

func TestParse(t *testing.T) {
	l, err := Parse([]byte(corridorYAML))
	require.NoError(t, err)
	require.NoError(t, l.Validate())

	assert.Equal(t, 9, l.ID)
	assert.Equal(t, "robot.moveRight(3)\n", l.InitialScript)
	assert.Equal(t, Point{X: 1, Y: 1}, l.StartPos)
	assert.Equal(t, 5, l.Grid.Width())
	assert.Equal(t, 3, l.Grid.Height())

	tile, ok := l.Grid.At(Point{X: 3, Y: 1})
	assert.True(t, ok)
	assert.Equal(t, Goal, tile)

	_, ok = l.Grid.At(Point{X: 5, Y: 1})
	assert.False(t, ok)

	require.Len(t, l.Entities, 2)
	assert.Equal(t, value.TagString, l.Entities[0].ValueTag())
	assert.Equal(t, value.TagNumber, l.Entities[1].Required.Tag)
}

func TestParse_UnknownTile(t *testing.T) {
	_, err := Parse([]byte("grid: [\"#x#\"]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *LevelConfig)
		wantErr string
	}{
		{
			name:    "start on wall",
			mutate:  func(l *LevelConfig) { l.StartPos = Point{X: 0, Y: 0} },
			wantErr: "is a wall",
		},
		{
			name:    "start outside",
			mutate:  func(l *LevelConfig) { l.StartPos = Point{X: 10, Y: 0} },
			wantErr: "outside the grid",
		},
		{
			name:    "duplicate ids",
			mutate:  func(l *LevelConfig) { l.Entities[1].ID = "k" },
			wantErr: "duplicate entity id",
		},
		{
			name:    "door without requirement",
			mutate:  func(l *LevelConfig) { l.Entities[1].Required = nil },
			wantErr: "needs a required value",
		},
		{
			name: "monster without hp",
			mutate: func(l *LevelConfig) {
				l.Entities = append(l.Entities, Entity{ID: "m", X: 2, Y: 1, Kind: KindMonster})
			},
			wantErr: "needs hp >= 1",
		},
		{
			name:    "ragged grid",
			mutate:  func(l *LevelConfig) { l.Grid[1] = l.Grid[1][:3] },
			wantErr: "has width 3",
		},
		{
			name:    "unknown kind",
			mutate:  func(l *LevelConfig) { l.Entities[0].Kind = "potion" },
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Parse([]byte(corridorYAML))
			require.NoError(t, err)
			tt.mutate(l)
			err = l.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	l, err := Parse([]byte(corridorYAML))
	require.NoError(t, err)

	c := l.Clone()
	c.Entities[0].Collected = true
	c.Entities[0].Value.Str = "changed"
	c.Grid[1][1] = Trap
	c.StartPos.X = 2

	assert.False(t, l.Entities[0].Collected)
	assert.Equal(t, "10", l.Entities[0].Value.Str)
	assert.Equal(t, Floor, l.Grid[1][1])
	assert.Equal(t, 1, l.StartPos.X)
}

func TestEntity_NextPhase(t *testing.T) {
	weak := value.TagString
	boss := Entity{ID: "boss", Kind: KindBoss, HP: 2, Weakness: &weak}

	p2 := boss.NextPhase()
	assert.Equal(t, "boss@p2", p2.ID)
	assert.Equal(t, 1, p2.HP)
	assert.Equal(t, value.TagNumber, p2.WeaknessTag())
	assert.Equal(t, "boss", p2.BaseID())

	// the original snapshot is untouched
	assert.Equal(t, "boss", boss.ID)
	assert.Equal(t, value.TagString, boss.WeaknessTag())

	p3 := p2.NextPhase()
	assert.Equal(t, "boss@p3", p3.ID)
	assert.Equal(t, value.TagString, p3.WeaknessTag())
}

func TestEntity_WeaknessDefaultsToString(t *testing.T) {
	e := Entity{ID: "m", Kind: KindMonster, HP: 1}
	assert.Equal(t, value.TagString, e.WeaknessTag())
}

func TestGrid_RowsRoundTrip(t *testing.T) {
	rows := []string{"###", "#TG", "#.#"}
	g, err := ParseGrid(rows)
	require.NoError(t, err)
	assert.Equal(t, rows, g.Rows())
}
