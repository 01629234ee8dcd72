package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

// Step actions a test case can take against a session.
const (
	ActionRun      = "run"
	ActionContinue = "continue"
	ActionLevel    = "level"
	ActionNext     = "next"
	ActionProgress = "progress" // reads the suite user's saved level
)

// TestSuite is one session driven through a list of steps.
//
// A suite that lists Cases is a walkthrough: the named case
// files are played back to back on a single session, so wins carry over into
// the user's saved progress. Its own Steps run after the cases.
type TestSuite struct {
	Name       string     `yaml:"name"`
	Username   string     `yaml:"username,omitempty"`
	LevelIndex *int       `yaml:"level_index,omitempty"`
	Steps      []TestStep `yaml:"steps,omitempty"`
	Cases      []string   `yaml:"cases,omitempty"`
}

func (ts *TestSuite) IsWalkthrough() bool {
	return len(ts.Cases) > 0
}

// TestStep is one API call and what the session must look like afterwards.
// run and continue steps wait for the run to finish before checking.
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Action       string       `yaml:"action"`
	Script       string       `yaml:"script,omitempty"`
	Index        int          `yaml:"index,omitempty"`
	Expectations Expectations `yaml:"expect"`
}

type Expectations struct {
	Status        *int         `yaml:"status,omitempty"` // HTTP status of the step's call
	Phase         *string      `yaml:"phase,omitempty"`
	Won           *bool        `yaml:"won,omitempty"`
	Errored       *bool        `yaml:"errored,omitempty"`
	LevelIndex    *int         `yaml:"level_index,omitempty"`
	ExecutedCount *int         `yaml:"executed_count,omitempty"`
	PlayerPos     *level.Point `yaml:"player_pos,omitempty"`
	Backpack      []string     `yaml:"backpack,omitempty"` // entity ids, order independent
	LogContains   []string     `yaml:"log_contains,omitempty"`
	Advanced      *bool        `yaml:"advanced,omitempty"` // next steps only
	Progress      *int         `yaml:"progress,omitempty"` // progress steps only
}

// StepResult is the outcome of one step. LevelID is the level the session
// was on when the step finished, or 0 if it could not be read.
type StepResult struct {
	StepName string
	LevelID  int
	Error    error
	Duration time.Duration
}

func (r StepResult) Success() bool {
	return r.Error == nil
}

// SuiteResult collects the step results of one suite run.
type SuiteResult struct {
	Suite    TestSuite
	Session  uuid.UUID
	Steps    []StepResult
	Error    error
	Duration time.Duration
}
