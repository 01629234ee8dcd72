package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <level.yaml> [level.yaml...]\n", os.Args[0])
		os.Exit(1)
	}

	validator := &LevelValidator{compiler: compiler.New(compiler.Options{})}
	failed := false
	for _, filename := range os.Args[1:] {
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}

	fmt.Println("Level files are valid!")
}

type LevelValidator struct {
	compiler *compiler.Compiler
	errors   []string
}

func (v *LevelValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("level file must have .yaml extension: %s", baseName)
	}
	if !isValidFilename(strings.TrimSuffix(baseName, ext)) {
		return fmt.Errorf("level filename '%s' must be lowercase snake_case (e.g., level8.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	var l level.LevelConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&l); err != nil {
		return fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
	}

	if err := l.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			v.addError(line)
		}
	} else {
		v.validateLevel(&l)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateLevel runs the checks that only make sense on a structurally
// valid level.
func (v *LevelValidator) validateLevel(l *level.LevelConfig) {
	hasGoal := false
	for _, row := range l.Grid {
		for _, t := range row {
			if t == level.Goal {
				hasGoal = true
			}
		}
	}
	if !hasGoal {
		v.addError("grid has no goal tile")
	}

	for i := range l.Entities {
		e := &l.Entities[i]
		if !isValidID(e.ID) {
			v.addError(fmt.Sprintf("entity id '%s' should be lowercase snake_case", e.ID))
		}
		if t, ok := l.Grid.At(e.Pos()); !ok || t == level.Wall {
			v.addError(fmt.Sprintf("entity '%s' at %s is not on a floor tile", e.ID, e.Pos()))
		}
	}

	if strings.TrimSpace(l.InitialScript) == "" {
		v.addError("initial_script is empty")
		return
	}
	if _, err := v.compiler.Compile(context.Background(), l.InitialScript, engine.NewRunState(l)); err != nil {
		v.addError(fmt.Sprintf("initial_script does not compile: %v", err))
	}
}

func (v *LevelValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFilename(name string) bool {
	// x. marks an experimental level
	name = strings.TrimPrefix(name, "x.")
	return validIDRegex.MatchString(name)
}
