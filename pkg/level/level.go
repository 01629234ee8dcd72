package level

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LevelConfig is an immutable level template supplied to the engine.
type LevelConfig struct {
	ID            int      `yaml:"id" json:"id"`
	Title         string   `yaml:"title" json:"title"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Difficulty    int      `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`
	InitialScript string   `yaml:"initial_script" json:"initial_script"`
	Grid          Grid     `yaml:"grid" json:"grid"`
	StartPos      Point    `yaml:"start" json:"start"`
	Entities      []Entity `yaml:"entities,omitempty" json:"entities,omitempty"`
}

// Parse decodes a level file. The result is not validated.
func Parse(data []byte) (*LevelConfig, error) {
	var l LevelConfig
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse level: %w", err)
	}
	return &l, nil
}

// Clone deep copies the level so callers can never mutate a template.
func (l *LevelConfig) Clone() *LevelConfig {
	c := *l
	c.Grid = make(Grid, len(l.Grid))
	for y := range l.Grid {
		c.Grid[y] = append([]Tile(nil), l.Grid[y]...)
	}
	c.Entities = CloneEntities(l.Entities)
	return &c
}

// Validate reports every structural problem in the level at once.
func (l *LevelConfig) Validate() error {
	var errs []error

	if l.ID <= 0 {
		errs = append(errs, fmt.Errorf("id must be positive, got %d", l.ID))
	}
	if l.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if l.Grid.Height() == 0 || l.Grid.Width() == 0 {
		errs = append(errs, errors.New("grid is empty"))
		return errors.Join(errs...)
	}
	for y, row := range l.Grid {
		if len(row) != l.Grid.Width() {
			errs = append(errs, fmt.Errorf("grid row %d has width %d, expected %d", y, len(row), l.Grid.Width()))
		}
	}

	if t, ok := l.Grid.At(l.StartPos); !ok {
		errs = append(errs, fmt.Errorf("start %s is outside the grid", l.StartPos))
	} else if t == Wall {
		errs = append(errs, fmt.Errorf("start %s is a wall", l.StartPos))
	}

	seen := make(map[string]bool, len(l.Entities))
	for i := range l.Entities {
		e := &l.Entities[i]
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("entity %d has no id", i))
		} else if seen[e.ID] {
			errs = append(errs, fmt.Errorf("duplicate entity id %q", e.ID))
		}
		seen[e.ID] = true

		if !e.Kind.Valid() {
			errs = append(errs, fmt.Errorf("entity %q has unknown kind %q", e.ID, e.Kind))
		}
		if !l.Grid.InBounds(e.Pos()) {
			errs = append(errs, fmt.Errorf("entity %q at %s is outside the grid", e.ID, e.Pos()))
		}
		switch e.Kind {
		case KindKey, KindWeapon:
			if e.Value == nil {
				errs = append(errs, fmt.Errorf("%s %q needs a value", e.Kind, e.ID))
			}
		case KindDoor:
			if e.Required == nil {
				errs = append(errs, fmt.Errorf("door %q needs a required value", e.ID))
			}
		case KindMonster, KindBoss:
			if e.HP < 1 {
				errs = append(errs, fmt.Errorf("%s %q needs hp >= 1", e.Kind, e.ID))
			}
			if e.Weakness != nil && !e.Weakness.Valid() {
				errs = append(errs, fmt.Errorf("%s %q has unknown weakness %q", e.Kind, e.ID, *e.Weakness))
			}
		}
	}

	return errors.Join(errs...)
}
