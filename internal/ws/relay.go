package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRelayChannel = "tableorder:ws"
	publishTimeout      = 2 * time.Second
)

type envelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// RedisRelay shares hub broadcasts between API instances over Redis
// pub/sub. Every instance, including the publisher, delivers what it
// receives on the channel to its local clients.
type RedisRelay struct {
	Client  *redis.Client
	Channel string
	hub     *Hub
}

func NewRedisRelay(client *redis.Client, hub *Hub, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{Client: client, Channel: channel, hub: hub}
}

func (r *RedisRelay) Publish(room string, message []byte) error {
	payload, err := json.Marshal(envelope{Room: room, Message: message})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.Client.Publish(ctx, r.Channel, payload).Err()
}

// Run subscribes to the relay channel and delivers messages until ctx is
// cancelled. It returns once the subscription is closed.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.Client.Subscribe(ctx, r.Channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("WARN: ws relay: bad envelope: %v", err)
				continue
			}
			r.hub.Deliver(env.Room, env.Message)
		}
	}
}
