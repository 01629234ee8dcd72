package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorld answers "#id" selectors from a fixed map and counts queries.
type fakeWorld struct {
	views   map[string]*EntityView
	queries int
}

func (w *fakeWorld) Query(selector string) (*EntityView, bool) {
	w.queries++
	v, ok := w.views[selector]
	return v, ok
}

func newWorld() *fakeWorld {
	return &fakeWorld{views: map[string]*EntityView{
		"#ghost": {ID: "ghost", Kind: level.KindMonster, X: 3, Y: 2, HP: 1, Weakness: value.TagString},
		"#chest": {ID: "chest", Kind: level.KindChest, X: 3, Y: 1,
			Contents: []value.TypeTag{value.TagString, value.TagNumber, value.TagBoolean}},
	}}
}

func compile(t *testing.T, src string) ([]action.Action, error) {
	t.Helper()
	return New(Options{}).Compile(context.Background(), src, newWorld())
}

func requireCompileError(t *testing.T, err error) *CompileError {
	t.Helper()
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce), "expected *CompileError, got %T: %v", err, err)
	return ce
}

func TestCompile_Moves(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []action.Action
	}{
		{
			name: "direction mapping",
			src:  "robot.moveUp()\nrobot.moveDown()\nrobot.moveLeft()\nrobot.moveRight()",
			want: []action.Action{
				action.Move(action.Back), action.Move(action.Front),
				action.Move(action.Left), action.Move(action.Right),
			},
		},
		{
			name: "step count",
			src:  "robot.moveRight(3)",
			want: []action.Action{action.Move(action.Right), action.Move(action.Right), action.Move(action.Right)},
		},
		{
			name: "zero steps",
			src:  "robot.moveRight(0)",
			want: []action.Action{},
		},
		{
			name: "loop",
			src: `for i := 0; i < 2; i++ {
	robot.moveRight(1)
	robot.moveDown(1)
}`,
			want: []action.Action{
				action.Move(action.Right), action.Move(action.Front),
				action.Move(action.Right), action.Move(action.Front),
			},
		},
		{
			name: "conditional",
			src: `x := 10
if typeof(x) == "number" {
	robot.moveLeft()
} else {
	robot.moveRight()
}`,
			want: []action.Action{action.Move(action.Left)},
		},
		{
			name: "empty script",
			src:  "// nothing to do",
			want: []action.Action{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compile(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	src := `
ghost := robot.find("#ghost")
for i := 0; i < 3; i++ {
	if i % 2 == 0 { robot.moveRight() } else { robot.moveDown() }
}
robot.pickUp("number")
robot.attack(ghost)
`
	first, err := compile(t, src)
	require.NoError(t, err)
	second, err := compile(t, src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 5)
}

func TestCompile_PickUp(t *testing.T) {
	got, err := compile(t, `robot.pickUp()
robot.pickUp("string")`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].TypeFilter)
	require.NotNil(t, got[1].TypeFilter)
	assert.Equal(t, value.TagString, *got[1].TypeFilter)

	_, err = compile(t, `robot.pickUp("sword")`)
	requireCompileError(t, err)

	_, err = compile(t, `robot.pickUp(10)`)
	requireCompileError(t, err)
}

func TestCompile_Attack(t *testing.T) {
	got, err := compile(t, `robot.attack(robot.find("#ghost"))`)
	require.NoError(t, err)
	assert.Equal(t, []action.Action{action.Attack("ghost")}, got)

	got, err = compile(t, `robot.attack({id: "anything"})`)
	require.NoError(t, err)
	assert.Equal(t, []action.Action{action.Attack("anything")}, got)

	for _, src := range []string{
		`robot.attack(robot.find("#nobody"))`,
		`robot.attack({name: "ghost"})`,
		`robot.attack("ghost")`,
		`robot.attack()`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := compile(t, src)
			requireCompileError(t, err)
		})
	}
}

func TestCompile_FailsAtomically(t *testing.T) {
	got, err := compile(t, `robot.moveRight(2)
robot.attack(undefined)
robot.moveRight(2)`)
	requireCompileError(t, err)
	assert.Nil(t, got)
}

func TestCompile_Find(t *testing.T) {
	src := `
chest := robot.find("#chest")
if includes(chest.contents, "number") && chest.kind == "chest" {
	robot.pickUp("number")
}
ghost := find("#ghost")
if ghost.weakness == "string" && ghost.hp == 1 {
	robot.moveUp()
}
if find("#missing") == undefined {
	robot.moveDown()
}
if typeof(find("#missing")) == "undefined" {
	robot.moveLeft()
}
`
	world := newWorld()
	got, err := New(Options{}).Compile(context.Background(), src, world)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, action.KindPickup, got[0].Kind)
	assert.Equal(t, action.Move(action.Back), got[1])
	assert.Equal(t, action.Move(action.Front), got[2])
	assert.Equal(t, action.Move(action.Left), got[3])
	assert.Equal(t, 4, world.queries)
}

func TestCompile_TypeOf(t *testing.T) {
	src := `
if typeof("10") != "string" { robot.attack(undefined) }
if typeof(10) != "number" { robot.attack(undefined) }
if typeof(1.5) != "number" { robot.attack(undefined) }
if typeof(true) != "boolean" { robot.attack(undefined) }
if typeof([1]) != "array" { robot.attack(undefined) }
if typeof({a: 1}) != "object" { robot.attack(undefined) }
`
	_, err := compile(t, src)
	assert.NoError(t, err)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts Options
	}{
		{name: "host language throw", src: `throw new Error("x")`},
		{name: "syntax error", src: `robot.moveRight(`},
		{name: "unknown function", src: `robot.fly()`},
		{name: "negative steps", src: `robot.moveRight(-1)`},
		{name: "fractional steps", src: `robot.moveRight(1.5)`},
		{name: "string steps", src: `robot.moveRight("2")`},
		{name: "file import blocked", src: `os := import("os")`},
		{name: "action limit", src: `for { robot.moveRight() }`, opts: Options{MaxActions: 50}},
		{name: "timeout", src: `for { x := 1 }`, opts: Options{Timeout: 50 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.opts).Compile(context.Background(), tt.src, newWorld())
			ce := requireCompileError(t, err)
			assert.NotEmpty(t, ce.Message)
			assert.Nil(t, got)
		})
	}
}

func TestCompile_SafeModulesAvailable(t *testing.T) {
	got, err := compile(t, `math := import("math")
robot.moveRight(math.abs(-2))`)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCompile_NilWorld(t *testing.T) {
	got, err := New(Options{}).Compile(context.Background(), `if find("#x") == undefined { robot.moveUp() }`, nil)
	require.NoError(t, err)
	assert.Equal(t, []action.Action{action.Move(action.Back)}, got)
}
