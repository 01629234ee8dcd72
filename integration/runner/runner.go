package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/robot-engine/internal/handlers"
	"github.com/jwebster45206/robot-engine/internal/services/session"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running robot-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // per step
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	KeepSessions      bool // skip the DELETE at the end of a suite
}

func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
		Logger:            func(string, ...any) {},
	}
}

// LoadSuite reads a case file. Walkthroughs are flattened into one suite
// whose steps are those of the referenced cases in order, followed by the
// walkthrough's own steps. A case that names a level_index gets a level step
// in front of its own steps.
func LoadSuite(filename string, casesDir string) (TestSuite, error) {
	suite, err := readSuite(filename)
	if err != nil {
		return TestSuite{}, err
	}
	if !suite.IsWalkthrough() {
		return suite, nil
	}

	walk := TestSuite{Name: suite.Name, Username: suite.Username, LevelIndex: suite.LevelIndex}
	for _, caseFile := range suite.Cases {
		part, err := readSuite(filepath.Join(casesDir, caseFile))
		if err != nil {
			return TestSuite{}, fmt.Errorf("walkthrough %s: %w", suite.Name, err)
		}
		if part.IsWalkthrough() {
			return TestSuite{}, fmt.Errorf("walkthrough %s: %s is itself a walkthrough", suite.Name, caseFile)
		}

		if part.LevelIndex != nil {
			idx := *part.LevelIndex
			walk.Steps = append(walk.Steps, TestStep{
				Name:         part.Name + ": select level",
				Action:       ActionLevel,
				Index:        idx,
				Expectations: Expectations{LevelIndex: &idx},
			})
		}
		for i, step := range part.Steps {
			step.Name = part.Name + ": " + stepName(step, i)
			walk.Steps = append(walk.Steps, step)
		}
	}
	walk.Steps = append(walk.Steps, suite.Steps...)
	return walk, nil
}

func readSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if len(suite.Steps) == 0 && len(suite.Cases) == 0 {
		return TestSuite{}, fmt.Errorf("%s has neither steps nor cases", filename)
	}
	return suite, nil
}

func stepName(step TestStep, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("%s #%d", step.Action, i+1)
}

// RunSuite creates a session, executes every step against it and deletes it.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) SuiteResult {
	start := time.Now()
	result := SuiteResult{
		Suite: suite,
		Steps: make([]StepResult, 0, len(suite.Steps)),
	}

	view, err := r.createSession(ctx, suite)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.Session = view.ID
	if !r.KeepSessions {
		defer r.deleteSession(view.ID)
	}

	for i, step := range suite.Steps {
		name := stepName(step, i)
		stepResult := r.runStep(ctx, view.ID, suite.Username, step)
		stepResult.StepName = name
		result.Steps = append(result.Steps, stepResult)

		if stepResult.Error != nil {
			r.Logger("    ✗ %s: %v", name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i+1, name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    ✓ %s (%v)", name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Runner) createSession(ctx context.Context, suite TestSuite) (*session.View, error) {
	req := handlers.CreateSessionRequest{
		Username:   suite.Username,
		LevelIndex: suite.LevelIndex,
	}
	status, body, err := apiCall(ctx, r.Client, http.MethodPost, r.BaseURL+"/v1/sessions", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("create returned %d: %s", status, string(body))
	}

	var view session.View
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &view, nil
}

func (r *Runner) deleteSession(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := apiCall(ctx, r.Client, http.MethodDelete, fmt.Sprintf("%s/v1/sessions/%s", r.BaseURL, id), nil); err != nil {
		r.Logger("    failed to delete session %s: %v", id, err)
	}
}

func (r *Runner) runStep(ctx context.Context, id uuid.UUID, username string, step TestStep) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	levelID, err := r.executeStep(stepCtx, id, username, step)
	return StepResult{
		LevelID:  levelID,
		Error:    err,
		Duration: time.Since(start),
	}
}

// executeStep returns the session's level id after the step alongside the
// first failed expectation.
func (r *Runner) executeStep(ctx context.Context, id uuid.UUID, username string, step TestStep) (int, error) {
	sessionURL := fmt.Sprintf("%s/v1/sessions/%s", r.BaseURL, id)
	exp := step.Expectations

	var (
		status   int
		body     []byte
		err      error
		wantCode = http.StatusOK
	)
	switch step.Action {
	case ActionRun, ActionContinue:
		status, body, err = apiCall(ctx, r.Client, http.MethodPost, sessionURL+"/"+step.Action, handlers.ScriptRequest{Script: step.Script})
		wantCode = http.StatusAccepted
	case ActionLevel:
		status, body, err = apiCall(ctx, r.Client, http.MethodPost, sessionURL+"/level", handlers.SetLevelRequest{Index: step.Index})
	case ActionNext:
		status, body, err = apiCall(ctx, r.Client, http.MethodPost, sessionURL+"/next", nil)
	case ActionProgress:
		status, body, err = apiCall(ctx, r.Client, http.MethodGet, r.BaseURL+"/v1/progress?username="+url.QueryEscape(username), nil)
	default:
		return 0, fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return 0, err
	}

	if exp.Status != nil {
		wantCode = *exp.Status
	}
	if status != wantCode {
		return 0, fmt.Errorf("expected status %d, got %d: %s", wantCode, status, string(body))
	}

	var advanced *bool
	switch {
	case status >= http.StatusBadRequest:
		// a rejected call leaves the session as it was; the checks below still apply
	case step.Action == ActionNext:
		var resp handlers.NextLevelResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return 0, fmt.Errorf("failed to decode next response: %w", err)
		}
		advanced = &resp.Advanced
	case step.Action == ActionProgress:
		var resp handlers.ProgressResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return 0, fmt.Errorf("failed to decode progress: %w", err)
		}
		if exp.Progress != nil && resp.Level != *exp.Progress {
			return 0, fmt.Errorf("expected saved level %d, got %d", *exp.Progress, resp.Level)
		}
	}

	var view *session.View
	if status < http.StatusBadRequest && (step.Action == ActionRun || step.Action == ActionContinue) {
		view, err = PollForRunEnd(ctx, r.Client, r.BaseURL, id)
	} else {
		view, err = GetSession(ctx, r.Client, r.BaseURL, id)
	}
	if err != nil {
		return 0, err
	}
	return view.LevelID, checkExpectations(exp, view, advanced)
}

func checkExpectations(exp Expectations, view *session.View, advanced *bool) error {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if exp.Phase != nil && view.Phase != *exp.Phase {
		fail("expected phase %q, got %q", *exp.Phase, view.Phase)
	}
	if exp.Won != nil && view.State.Won != *exp.Won {
		fail("expected won=%v, got %v", *exp.Won, view.State.Won)
	}
	if exp.Errored != nil && view.State.Errored != *exp.Errored {
		fail("expected errored=%v, got %v", *exp.Errored, view.State.Errored)
	}
	if exp.LevelIndex != nil && view.LevelIndex != *exp.LevelIndex {
		fail("expected level index %d, got %d", *exp.LevelIndex, view.LevelIndex)
	}
	if exp.ExecutedCount != nil && view.State.ExecutedCount != *exp.ExecutedCount {
		fail("expected %d executed actions, got %d", *exp.ExecutedCount, view.State.ExecutedCount)
	}
	if exp.PlayerPos != nil && view.State.PlayerPos != *exp.PlayerPos {
		fail("expected robot at (%d,%d), got (%d,%d)", exp.PlayerPos.X, exp.PlayerPos.Y, view.State.PlayerPos.X, view.State.PlayerPos.Y)
	}
	if exp.Backpack != nil {
		got := make([]string, 0, len(view.State.Backpack))
		for _, e := range view.State.Backpack {
			got = append(got, e.ID)
		}
		want := slices.Clone(exp.Backpack)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			fail("expected backpack %v, got %v", want, got)
		}
	}
	for _, s := range exp.LogContains {
		if !slices.ContainsFunc(view.State.Log, func(line string) bool { return strings.Contains(line, s) }) {
			fail("log does not contain %q", s)
		}
	}
	if exp.Advanced != nil {
		if advanced == nil {
			fail("advanced is only reported by next steps")
		} else if *advanced != *exp.Advanced {
			fail("expected advanced=%v, got %v", *exp.Advanced, *advanced)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%s", strings.Join(failures, "; "))
	}
	return nil
}
