package level

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/robot-engine/pkg/value"
)

// Kind identifies what an entity does on the grid.
type Kind string

const (
	KindKey     Kind = "key"
	KindDoor    Kind = "door"
	KindChest   Kind = "chest"
	KindMonster Kind = "monster"
	KindBoss    Kind = "boss"
	KindWeapon  Kind = "weapon"
)

func (k Kind) Valid() bool {
	switch k {
	case KindKey, KindDoor, KindChest, KindMonster, KindBoss, KindWeapon:
		return true
	}
	return false
}

// phaseSeparator joins a boss's base id and its phase number.
const phaseSeparator = "@p"

// Entity is a mutable object placed on the grid. Level templates hold the
// initial values; every run works on its own copy.
type Entity struct {
	ID   string `yaml:"id" json:"id"`
	X    int    `yaml:"x" json:"x"`
	Y    int    `yaml:"y" json:"y"`
	Kind Kind   `yaml:"kind" json:"kind"`

	Value    *value.Variant `yaml:"value,omitempty" json:"value,omitempty"`       // keys and weapons
	Required *value.Variant `yaml:"required,omitempty" json:"required,omitempty"` // doors
	Weakness *value.TypeTag `yaml:"weakness,omitempty" json:"weakness,omitempty"` // monsters and bosses
	HP       int            `yaml:"hp,omitempty" json:"hp,omitempty"`

	Phase     int  `yaml:"-" json:"phase,omitempty"`
	Collected bool `yaml:"-" json:"collected,omitempty"`
	Dead      bool `yaml:"-" json:"dead,omitempty"`
	HitPulse  bool `yaml:"-" json:"hit_pulse,omitempty"`
}

func (e *Entity) Pos() Point {
	return Point{X: e.X, Y: e.Y}
}

// Live reports whether the entity can still be seen, picked up or attacked.
func (e *Entity) Live() bool {
	return !e.Dead && !e.Collected
}

// IsItem reports whether the entity can go in the backpack.
func (e *Entity) IsItem() bool {
	return e.Kind == KindKey || e.Kind == KindWeapon
}

func (e *Entity) IsEnemy() bool {
	return e.Kind == KindMonster || e.Kind == KindBoss
}

// ValueTag returns the tag of the item's value, or "" when it has none.
func (e *Entity) ValueTag() value.TypeTag {
	if e.Value == nil {
		return ""
	}
	return e.Value.Tag
}

// WeaknessTag defaults to string when the level leaves it unset.
func (e *Entity) WeaknessTag() value.TypeTag {
	if e.Weakness == nil || !e.Weakness.Valid() {
		return value.TagString
	}
	return *e.Weakness
}

// BaseID strips any phase suffix from the id.
func (e *Entity) BaseID() string {
	if i := strings.Index(e.ID, phaseSeparator); i >= 0 {
		return e.ID[:i]
	}
	return e.ID
}

// NextPhase returns the snapshot an enemy becomes after surviving a hit: a new
// id, one less hp and the complementary weakness. The receiver is unchanged.
func (e *Entity) NextPhase() Entity {
	next := e.Clone()
	phase := e.Phase
	if phase == 0 {
		phase = 1
	}
	next.Phase = phase + 1
	next.ID = fmt.Sprintf("%s%s%d", e.BaseID(), phaseSeparator, next.Phase)
	next.HP = e.HP - 1
	weakness := e.WeaknessTag().Complement()
	next.Weakness = &weakness
	next.HitPulse = false
	return next
}

// Clone deep copies the entity, including its pointer fields.
func (e *Entity) Clone() Entity {
	c := *e
	if e.Value != nil {
		v := *e.Value
		c.Value = &v
	}
	if e.Required != nil {
		v := *e.Required
		c.Required = &v
	}
	if e.Weakness != nil {
		w := *e.Weakness
		c.Weakness = &w
	}
	return c
}

// CloneEntities deep copies a slice of entities.
func CloneEntities(in []Entity) []Entity {
	if in == nil {
		return nil
	}
	out := make([]Entity, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
