// Package notify publishes matchmaking events for the presentation
// layer. The core never talks to the chat platform itself; it emits
// events on a redis channel and whoever renders messages subscribes.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event types emitted by the matchmaking service.
const (
	EventQueueJoined   = "QUEUE_JOINED"
	EventQueueLeft     = "QUEUE_LEFT"
	EventQueueEvicted  = "QUEUE_EVICTED"
	EventGameCreated   = "GAME_CREATED"
	EventDraftTurn     = "DRAFT_TURN"
	EventGameResolved  = "GAME_RESOLVED"
	EventGameCanceled  = "GAME_CANCELED"
	EventGameUndone    = "GAME_UNDONE"
	EventRankChanged   = "RANK_CHANGED"
)

// Event is the envelope published for every matchmaking transition.
type Event struct {
	Type    string `json:"type"`
	GuildID int64  `json:"guildId"`
	Payload any    `json:"payload,omitempty"`
}

// Publisher delivers events to the presentation layer.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// RedisPublisher publishes events on a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish marshals and sends the event. Publication is best-effort:
// failures are logged, never propagated, since presentation must not
// block matchmaking state changes.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to encode event")
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to publish event")
	}
}

// NopPublisher discards every event. Used in tests and redis-less runs.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}
