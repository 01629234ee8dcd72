package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const publishTimeout = 2 * time.Second

// SessionNotifier turns engine notifications into toast events for one
// session. Publish failures are logged by the broadcaster and dropped.
type SessionNotifier struct {
	b         *Broadcaster
	sessionID uuid.UUID
}

func NewSessionNotifier(b *Broadcaster, sessionID uuid.UUID) *SessionNotifier {
	return &SessionNotifier{b: b, sessionID: sessionID}
}

func (n *SessionNotifier) Notify(message string, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_ = n.b.PublishToast(ctx, n.sessionID, message, d)
}
