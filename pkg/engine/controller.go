// Package engine replays compiled action sequences against a level.
//
// A Controller owns one RunState at a time. Run starts over from the level
// template; Continue recompiles the script against the current world and
// executes only the actions beyond those already executed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

const (
	DefaultStepDelay = 500 * time.Millisecond
	DefaultHitPulse  = 300 * time.Millisecond
	noticeDuration   = 2 * time.Second
)

var (
	ErrBusy           = errors.New("a run is already in progress")
	ErrCannotContinue = errors.New("nothing to continue: run the script first")
	ErrNoLevel        = errors.New("no level loaded")
)

// Phase is the controller's state machine position.
type Phase int

const (
	Idle Phase = iota
	Compiling
	Executing
	Halted
	Completed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Executing:
		return "executing"
	case Halted:
		return "halted"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Mode selects between a full Run and a Continue.
type Mode int

const (
	ModeRun Mode = iota
	ModeContinue
)

func (m Mode) String() string {
	if m == ModeContinue {
		return "continue"
	}
	return "run"
}

// Notifier receives transient feedback such as "LOCKED". Its result is never
// inspected.
type Notifier interface {
	Notify(message string, d time.Duration)
}

// Hooks are called outside the controller's lock, in order, from the
// goroutine executing the run.
type Hooks struct {
	OnWin   func(levelID int)
	OnLog   func(line string)
	OnPhase func(phase Phase)
	// OnFinish runs after a run or continue has stopped for any reason.
	OnFinish func(state RunState)
}

type Options struct {
	StepDelay time.Duration
	HitPulse  time.Duration
	Compiler  *compiler.Compiler
	Notifier  Notifier
	Hooks     Hooks
	Logger    *slog.Logger
}

type Controller struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger

	level *level.LevelConfig
	state *RunState
	phase Phase

	// epoch increments whenever the current RunState is replaced. Work
	// started under an older epoch must not touch the new state.
	epoch  uint64
	timers map[string]*time.Timer // hit-pulse resets by entity id

	pending []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller. A negative StepDelay or HitPulse means
// no delay; zero selects the defaults.
func NewController(opts Options) *Controller {
	if opts.StepDelay == 0 {
		opts.StepDelay = DefaultStepDelay
	} else if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	if opts.HitPulse == 0 {
		opts.HitPulse = DefaultHitPulse
	} else if opts.HitPulse < 0 {
		opts.HitPulse = 0
	}
	if opts.Compiler == nil {
		opts.Compiler = compiler.New(compiler.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ResetForLevel makes l the active level and discards the current run.
// Pending timers and any run still in flight are detached from the new state.
func (c *Controller) ResetForLevel(l *level.LevelConfig) {
	c.mu.Lock()
	c.level = l.Clone()
	c.epoch++
	c.stopTimersLocked()
	c.state = NewRunState(c.level)
	c.logLocked("Level %d: %s", c.level.ID, c.level.Title)
	c.setPhaseLocked(Idle)
	c.unlockAndFlush()
}

// Level returns a copy of the active level, or nil.
func (c *Controller) Level() *level.LevelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level == nil {
		return nil
	}
	return c.level.Clone()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a deep copy of the current run state.
func (c *Controller) Snapshot() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return RunState{Backpack: []level.Entity{}, Log: []string{}}
	}
	return c.state.Snapshot()
}

// CanContinue reports whether Continue would be accepted right now.
func (c *Controller) CanContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canContinueLocked()
}

func (c *Controller) canContinueLocked() bool {
	s := c.state
	return s != nil && !s.Running && !s.Errored && s.ExecutedCount > 0
}

// Run restarts the level and executes the whole script. It blocks until the
// sequence completes or halts. A script that fails to compile returns its
// *compiler.CompileError.
func (c *Controller) Run(ctx context.Context, script string) error {
	epoch, err := c.begin(ModeRun)
	if err != nil {
		return err
	}
	return c.execute(ctx, ModeRun, script, epoch)
}

// Continue recompiles the script against the current world and executes only
// the actions past ExecutedCount.
func (c *Controller) Continue(ctx context.Context, script string) error {
	epoch, err := c.begin(ModeContinue)
	if err != nil {
		return err
	}
	return c.execute(ctx, ModeContinue, script, epoch)
}

// Launch checks that the run can start and then executes it in the
// background. Errors after the start are reported through the hooks and log.
func (c *Controller) Launch(mode Mode, script string) error {
	epoch, err := c.begin(mode)
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.execute(c.ctx, mode, script, epoch); err != nil {
			c.logger.Debug("Background run ended with error", "mode", mode.String(), "error", err)
		}
	}()
	return nil
}

// Close stops timers, cancels background runs and waits for them to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.epoch++
	c.stopTimersLocked()
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) begin(mode Mode) (uint64, error) {
	c.mu.Lock()
	defer c.unlockAndFlush()

	if c.level == nil || c.state == nil {
		return 0, ErrNoLevel
	}
	if c.state.Running {
		return 0, ErrBusy
	}
	if mode == ModeContinue {
		if !c.canContinueLocked() {
			return 0, ErrCannotContinue
		}
	} else {
		c.epoch++
		c.stopTimersLocked()
		c.state = NewRunState(c.level)
		c.logLocked("Initializing robot on level %d...", c.level.ID)
	}
	c.state.Running = true
	c.setPhaseLocked(Compiling)
	return c.epoch, nil
}

func (c *Controller) execute(ctx context.Context, mode Mode, script string, epoch uint64) error {
	actions, err := c.opts.Compiler.Compile(ctx, script, lockedWorld{c})
	if err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.logLocked("Error: %v", err)
			c.haltLocked()
		}
		c.unlockAndFlush()
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.unlockAndFlush()
		return nil
	}
	from := 0
	if mode == ModeContinue {
		from = c.state.ExecutedCount
		if len(actions) <= from {
			c.logLocked("Nothing new to run: %d actions, %d already executed.", len(actions), from)
			c.state.Running = false
			c.setPhaseLocked(Completed)
			c.finishLocked()
			c.unlockAndFlush()
			return nil
		}
		c.logLocked("Continuing from action %d of %d.", from+1, len(actions))
	} else {
		c.logLocked("Compiled %d actions.", len(actions))
	}
	c.setPhaseLocked(Executing)
	c.unlockAndFlush()

	c.logger.Debug("Executing actions", "mode", mode.String(), "from", from, "total", len(actions))

	for i := from; i < len(actions); i++ {
		if i > from && c.opts.StepDelay > 0 {
			if err := c.wait(ctx); err != nil {
				c.mu.Lock()
				if c.epoch == epoch {
					c.logLocked("Run cancelled.")
					c.haltLocked()
				}
				c.unlockAndFlush()
				return err
			}
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.unlockAndFlush()
			return nil
		}
		halted := c.stepLocked(actions[i])
		c.state.ExecutedCount = max(c.state.ExecutedCount, i+1)
		if halted {
			c.haltLocked()
			c.unlockAndFlush()
			return nil
		}
		c.unlockAndFlush()
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.state.ExecutedCount = len(actions)
		c.state.Errored = false
		c.state.Running = false
		c.logLocked("Done.")
		c.setPhaseLocked(Completed)
		c.finishLocked()
	}
	c.unlockAndFlush()
	return nil
}

// stepLocked applies one action and reports whether the run must halt.
func (c *Controller) stepLocked(a action.Action) bool {
	var out Outcome
	switch a.Kind {
	case action.KindMove:
		out = c.state.Move(c.level.Grid, a.Direction)
	case action.KindPickup:
		out = c.state.Pickup(a.TypeFilter)
	case action.KindAttack:
		out = c.state.Attack(a.TargetID)
	default:
		out = fail(InvalidTarget, fmt.Sprintf("Unknown action %s.", a))
	}

	for _, note := range out.Notes {
		c.logLocked("%s", note)
	}
	c.logLocked("%s", out.Message)

	if out.Notice != "" && c.opts.Notifier != nil {
		n, msg := c.opts.Notifier, out.Notice
		c.pending = append(c.pending, func() { n.Notify(msg, noticeDuration) })
	}
	if out.PulseID != "" {
		c.schedulePulseResetLocked(out.PulseID)
	}
	if out.Goal && !c.state.Won {
		c.state.Won = true
		if fn := c.opts.Hooks.OnWin; fn != nil {
			id := c.level.ID
			c.pending = append(c.pending, func() { fn(id) })
		}
	}
	return out.Fatal()
}

func (c *Controller) haltLocked() {
	c.state.Errored = true
	c.state.Running = false
	c.setPhaseLocked(Halted)
	c.finishLocked()
}

func (c *Controller) finishLocked() {
	if fn := c.opts.Hooks.OnFinish; fn != nil {
		snap := c.state.Snapshot()
		c.pending = append(c.pending, func() { fn(snap) })
	}
}

func (c *Controller) wait(ctx context.Context) error {
	t := time.NewTimer(c.opts.StepDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// schedulePulseResetLocked clears an entity's hit-pulse after a short delay,
// unless the run it belongs to has been replaced by then. A new hit on the
// same entity replaces its pending reset.
func (c *Controller) schedulePulseResetLocked(id string) {
	if prev, ok := c.timers[id]; ok {
		prev.Stop()
	}
	if c.timers == nil {
		c.timers = make(map[string]*time.Timer)
	}

	epoch := c.epoch
	var t *time.Timer
	t = time.AfterFunc(c.opts.HitPulse, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timers[id] == t {
			delete(c.timers, id)
		}
		if c.epoch != epoch || c.state == nil {
			return
		}
		for i := range c.state.Entities {
			if c.state.Entities[i].ID == id {
				c.state.Entities[i].HitPulse = false
			}
		}
	})
	c.timers[id] = t
}

func (c *Controller) stopTimersLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

func (c *Controller) logLocked(format string, args ...any) {
	line := c.state.logf(format, args...)
	if fn := c.opts.Hooks.OnLog; fn != nil {
		c.pending = append(c.pending, func() { fn(line) })
	}
}

func (c *Controller) setPhaseLocked(p Phase) {
	c.phase = p
	if fn := c.opts.Hooks.OnPhase; fn != nil {
		c.pending = append(c.pending, func() { fn(p) })
	}
}

// unlockAndFlush releases the lock and then runs the queued hook calls.
func (c *Controller) unlockAndFlush() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// lockedWorld lets the compiler query the live state while a run is being
// compiled.
type lockedWorld struct {
	c *Controller
}

func (w lockedWorld) Query(selector string) (*compiler.EntityView, bool) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.c.state == nil {
		return nil, false
	}
	return w.c.state.Query(selector)
}
