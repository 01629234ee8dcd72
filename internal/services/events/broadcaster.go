package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRunLog   EventType = "run.log"
	EventTypeRunPhase EventType = "run.phase"
	EventTypeToast    EventType = "toast"
	EventTypeLevelWon EventType = "level.won"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel carrying a session's events.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// Broadcaster publishes session events to Redis Pub/Sub for the websocket
// and SSE streams.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (b *Broadcaster) PublishLog(ctx context.Context, sessionID uuid.UUID, line string) error {
	return b.publish(ctx, sessionID, EventTypeRunLog, map[string]any{"line": line})
}

func (b *Broadcaster) PublishPhase(ctx context.Context, sessionID uuid.UUID, phase string) error {
	return b.publish(ctx, sessionID, EventTypeRunPhase, map[string]any{"phase": phase})
}

func (b *Broadcaster) PublishToast(ctx context.Context, sessionID uuid.UUID, message string, d time.Duration) error {
	return b.publish(ctx, sessionID, EventTypeToast, map[string]any{
		"message":     message,
		"duration_ms": d.Milliseconds(),
	})
}

func (b *Broadcaster) PublishLevelWon(ctx context.Context, sessionID uuid.UUID, levelID int, nextLevel int) error {
	return b.publish(ctx, sessionID, EventTypeLevelWon, map[string]any{
		"level_id":   levelID,
		"next_level": nextLevel,
	})
}

// Subscribe opens a subscription to one session's channel. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, data map[string]any) error {
	event := Event{
		Type:      eventType,
		SessionID: sessionID.String(),
		Data:      data,
	}
	channel := Channel(sessionID)

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", eventType)
	return nil
}
