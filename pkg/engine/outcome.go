package engine

// OutcomeKind classifies the result of resolving one action.
type OutcomeKind int

const (
	OK OutcomeKind = iota
	Blocked
	Died
	LockedDoor
	EnemyAhead
	InvalidTarget
	TooFar
	Immune
	EmptyPickup
	NoMatchingItem
)

var outcomeNames = map[OutcomeKind]string{
	OK:             "ok",
	Blocked:        "blocked",
	Died:           "died",
	LockedDoor:     "locked_door",
	EnemyAhead:     "enemy_ahead",
	InvalidTarget:  "invalid_target",
	TooFar:         "too_far",
	Immune:         "immune",
	EmptyPickup:    "empty_pickup",
	NoMatchingItem: "no_matching_item",
}

func (k OutcomeKind) String() string {
	if s, ok := outcomeNames[k]; ok {
		return s
	}
	return "unknown"
}

// Fatal outcomes halt the rest of the action sequence.
func (k OutcomeKind) Fatal() bool {
	return k == Blocked || k == Died
}

// Blocking outcomes mean a move did not happen. Only some of them are fatal.
func (k OutcomeKind) Blocking() bool {
	switch k {
	case Blocked, Died, LockedDoor, EnemyAhead:
		return true
	}
	return false
}

// Outcome is what a resolver reports back to the controller.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	// Notes are log lines that happened on the way, logged before Message.
	Notes []string

	// Notice is transient feedback for the notifier, empty when there is none.
	Notice string
	// PulseID names an entity whose hit-pulse was switched on.
	PulseID string
	// Goal is set when a move ended on a goal tile.
	Goal bool
}

func (o Outcome) Fatal() bool {
	return o.Kind.Fatal()
}

func ok(msg string) Outcome {
	return Outcome{Kind: OK, Message: msg}
}

func fail(kind OutcomeKind, msg string) Outcome {
	return Outcome{Kind: kind, Message: msg}
}
