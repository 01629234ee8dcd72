package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/robot-engine/internal/services/session"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestLoadSuite_Walkthrough(t *testing.T) {
	suite, err := LoadSuite(filepath.Join("..", "cases", "walkthrough.yaml"), filepath.Join("..", "cases"))
	require.NoError(t, err)

	assert.Equal(t, "Full Walkthrough", suite.Name)
	assert.Equal(t, "walkthrough_bot", suite.Username)
	assert.False(t, suite.IsWalkthrough(), "flattened suites carry steps only")

	// each of the seven level cases starts by selecting its level
	var selects []int
	for _, step := range suite.Steps {
		if step.Action == ActionLevel {
			selects = append(selects, step.Index)
			require.NotNil(t, step.Expectations.LevelIndex)
			assert.Equal(t, step.Index, *step.Expectations.LevelIndex)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, selects)

	first := suite.Steps[1]
	assert.Equal(t, "Level 1 Hello World: Walk to the goal", first.Name)
	assert.Equal(t, ActionRun, first.Action)

	last := suite.Steps[len(suite.Steps)-1]
	assert.Equal(t, ActionProgress, last.Action)
	require.NotNil(t, last.Expectations.Progress)
	assert.Equal(t, 8, *last.Expectations.Progress)
}

func TestLoadSuite_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	write("inner.yaml", "name: inner\ncases: [other.yaml]\n")
	nested := write("outer.yaml", "name: outer\ncases: [inner.yaml]\n")
	_, err := LoadSuite(nested, dir)
	assert.ErrorContains(t, err, "itself a walkthrough")

	missing := write("missing.yaml", "name: missing\ncases: [nope.yaml]\n")
	_, err = LoadSuite(missing, dir)
	assert.Error(t, err)

	empty := write("empty.yaml", "name: empty\n")
	_, err = LoadSuite(empty, dir)
	assert.ErrorContains(t, err, "neither steps nor cases")

	unnamed := write("plain_case.yaml", "steps:\n  - action: next\n")
	suite, err := LoadSuite(unnamed, dir)
	require.NoError(t, err)
	assert.Equal(t, "plain_case", suite.Name)
}

func TestLoadSuite_AllCasesParse(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "cases", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	known := map[string]bool{ActionRun: true, ActionContinue: true, ActionLevel: true, ActionNext: true, ActionProgress: true}
	for _, file := range files {
		suite, err := LoadSuite(file, filepath.Join("..", "cases"))
		require.NoError(t, err, file)
		for _, step := range suite.Steps {
			assert.True(t, known[step.Action], "%s: unknown action %q", file, step.Action)
		}
	}
}

func TestCheckExpectations(t *testing.T) {
	view := &session.View{
		LevelIndex: 2,
		Phase:      "completed",
		State: engine.RunState{
			PlayerPos:     level.Point{X: 3, Y: 2},
			Backpack:      []level.Entity{{ID: "key_num"}, {ID: "sword"}},
			Log:           []string{"Door door_num is locked. It needs a number key.", "Done."},
			ExecutedCount: 3,
		},
	}

	pass := Expectations{
		Phase:         ptr("completed"),
		Won:           ptr(false),
		Errored:       ptr(false),
		LevelIndex:    ptr(2),
		ExecutedCount: ptr(3),
		PlayerPos:     &level.Point{X: 3, Y: 2},
		Backpack:      []string{"sword", "key_num"},
		LogContains:   []string{"locked", "Done."},
	}
	assert.NoError(t, checkExpectations(pass, view, nil))

	fail := Expectations{
		Phase:       ptr("halted"),
		Backpack:    []string{},
		LogContains: []string{"Goal reached"},
		Advanced:    ptr(true),
	}
	err := checkExpectations(fail, view, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected phase "halted"`)
	assert.Contains(t, err.Error(), "expected backpack")
	assert.Contains(t, err.Error(), `log does not contain "Goal reached"`)
	assert.Contains(t, err.Error(), "only reported by next steps")

	assert.NoError(t, checkExpectations(Expectations{Advanced: ptr(false)}, view, ptr(false)))
}
