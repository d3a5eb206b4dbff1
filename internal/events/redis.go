package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"computer-club-backend/internal/logging"
)

// ErrSubscriptionClosed is returned by Listen when redis drops the subscription.
var ErrSubscriptionClosed = errors.New("redis subscription closed")

// RedisBus publishes events on a redis pub/sub channel. Publishing goes through a
// circuit breaker so an unreachable redis does not slow down admin requests.
type RedisBus struct {
	client  *redis.Client
	channel string
	origin  string
	breaker *gobreaker.CircuitBreaker[int64]
	log     zerolog.Logger
}

// NewRedisBus creates a bus on channel. Every bus gets a random origin id so it can
// ignore its own messages.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	log := logging.Component("events")
	settings := gobreaker.Settings{
		Name:        "redis-publish",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		breaker: gobreaker.NewCircuitBreaker[int64](settings),
		log:     log,
	}
}

// Origin returns the id stamped on events published by this bus.
func (b *RedisBus) Origin() string {
	return b.origin
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	ev.Origin = b.origin
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = b.breaker.Execute(func() (int64, error) {
		return b.client.Publish(ctx, b.channel, payload).Result()
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (b *RedisBus) Listen(ctx context.Context, fn func(Event)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.log.Info().Str("channel", b.channel).Msg("listening for price invalidations")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrSubscriptionClosed
			}
			b.handle(msg.Payload, fn)
		}
	}
}

func (b *RedisBus) handle(payload string, fn func(Event)) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.log.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	if ev.Origin == b.origin {
		return
	}
	fn(ev)
}
