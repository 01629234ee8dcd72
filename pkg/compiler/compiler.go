// Package compiler turns learner scripts into action sequences.
//
// Scripts are tengo programs (https://github.com/d5/tengo). They run once,
// without delays, against a read-only view of the world; the only way they
// can affect anything is by queueing actions through the robot API.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

const (
	DefaultMaxActions = 10000
	DefaultMaxAllocs  = 200000
	DefaultTimeout    = 2 * time.Second
)

// safeModules are the tengo stdlib modules scripts may import. Nothing that
// touches files, the clock or randomness.
var safeModules = []string{"math", "text", "enum"}

// CompileError is any parse or runtime failure of a script.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string {
	return "compile error: " + e.Message
}

// EntityView is the read-only snapshot a script sees for one entity.
type EntityView struct {
	ID       string
	Kind     level.Kind
	X, Y     int
	HP       int
	Weakness value.TypeTag   // set for monsters and bosses only
	Contents []value.TypeTag // set for chests only
}

// World answers queries while a script is compiling. Implementations must
// not change state in response.
type World interface {
	Query(selector string) (*EntityView, bool)
}

type Options struct {
	MaxActions int
	MaxAllocs  int64
	Timeout    time.Duration
}

type Compiler struct {
	opts Options
}

func New(opts Options) *Compiler {
	if opts.MaxActions <= 0 {
		opts.MaxActions = DefaultMaxActions
	}
	if opts.MaxAllocs <= 0 {
		opts.MaxAllocs = DefaultMaxAllocs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Compiler{opts: opts}
}

// Compile runs the script and returns the full action sequence, or a
// *CompileError and no actions at all.
func (c *Compiler) Compile(ctx context.Context, src string, world World) ([]action.Action, error) {
	b := &builder{max: c.opts.MaxActions, world: world}

	script := tengo.NewScript([]byte(src))
	script.SetImports(stdlib.GetModuleMap(safeModules...))
	script.SetMaxAllocs(c.opts.MaxAllocs)

	robot := b.robotAPI()
	if err := script.Add("robot", robot); err != nil {
		return nil, fmt.Errorf("failed to bind robot api: %w", err)
	}
	for name, fn := range b.globals() {
		if err := script.Add(name, fn); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if _, err := script.RunContext(runCtx); err != nil {
		return nil, &CompileError{Message: describe(err, c.opts)}
	}

	out := make([]action.Action, len(b.actions))
	copy(out, b.actions)
	return out, nil
}

func describe(err error, opts Options) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("script did not finish within %s (infinite loop?)", opts.Timeout)
	case errors.Is(err, context.Canceled):
		return "compilation cancelled"
	case errors.Is(err, tengo.ErrObjectAllocLimit):
		return "script used too much memory"
	}
	return err.Error()
}
