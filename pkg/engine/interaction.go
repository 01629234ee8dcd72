package engine

import (
	"fmt"

	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

// Pickup collects one item from the player's cell. With a filter only an
// item whose value has that type tag qualifies.
func (s *RunState) Pickup(filter *value.TypeTag) Outcome {
	var candidates []int
	for i := range s.Entities {
		e := &s.Entities[i]
		if e.IsItem() && e.Live() && e.Pos() == s.PlayerPos {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return fail(EmptyPickup, fmt.Sprintf("Nothing to pick up at %s.", s.PlayerPos))
	}

	pick := candidates[0]
	if filter != nil {
		pick = -1
		for _, i := range candidates {
			if s.Entities[i].ValueTag() == *filter {
				pick = i
				break
			}
		}
		if pick < 0 {
			return fail(NoMatchingItem, fmt.Sprintf("No %s item at %s.", *filter, s.PlayerPos))
		}
	}

	item := &s.Entities[pick]
	item.Collected = true
	s.Backpack = append(s.Backpack, item.Clone())
	return ok(fmt.Sprintf("Picked up %s %s (%s).", item.Kind, item.ID, describeValue(item)))
}

// Attack hits the entity with the given id. Ids are looked up among all
// entities, dead ones included, so a stale or finished target reads as
// InvalidTarget rather than a typo.
func (s *RunState) Attack(targetID string) Outcome {
	idx := -1
	for i := range s.Entities {
		if s.Entities[i].ID == targetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fail(InvalidTarget, fmt.Sprintf("Invalid target: nothing with id %q.", targetID))
	}
	target := &s.Entities[idx]
	if !target.Live() || !target.IsEnemy() {
		return fail(InvalidTarget, fmt.Sprintf("Invalid target: %s cannot be attacked.", target.ID))
	}
	if d := s.PlayerPos.Manhattan(target.Pos()); d > 1 {
		return fail(TooFar, fmt.Sprintf("%s is too far away (%d steps).", target.ID, d))
	}

	weakness := target.WeaknessTag()
	weapon, armed := s.holds(weakness)
	if !armed {
		target.HitPulse = true
		o := fail(Immune, fmt.Sprintf("%s is immune! It is only weak to %s.", target.ID, weakness))
		o.PulseID = target.ID
		return o
	}

	if target.HP > 1 {
		next := target.NextPhase()
		s.Entities[idx] = next
		return Outcome{Kind: OK, Message: fmt.Sprintf(
			"Hit %s with %s! It mutates into %s (hp %d, now weak to %s).",
			targetID, weapon.ID, next.ID, next.HP, next.WeaknessTag())}
	}
	target.Dead = true
	return ok(fmt.Sprintf("Defeated %s with %s!", target.ID, weapon.ID))
}

func describeValue(e *level.Entity) string {
	if e.Value == nil {
		return "no value"
	}
	return fmt.Sprintf("%s %s", e.Value.Tag, e.Value)
}
