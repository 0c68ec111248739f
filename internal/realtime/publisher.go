package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event is the envelope written to a user's channel and forwarded to their
// websocket connections unchanged.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher fans events out over Redis pub/sub so every API instance holding
// a socket for the user can deliver them.
type Publisher struct {
	redis *redis.Client
	log   *zap.Logger
}

func NewPublisher(client *redis.Client, log *zap.Logger) *Publisher {
	return &Publisher{redis: client, log: log}
}

// Channel is the pub/sub channel carrying userID's events.
func Channel(userID string) string {
	return "user:" + userID
}

func (p *Publisher) Publish(ctx context.Context, userID, event string, data any) error {
	if p == nil || p.redis == nil {
		return nil
	}

	payload, err := json.Marshal(Event{Type: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	if err := p.redis.Publish(ctx, Channel(userID), string(payload)).Err(); err != nil {
		p.log.Warn("[REALTIME] publish failed",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
		return err
	}
	return nil
}
