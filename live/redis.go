// Package live publishes pipeline events on a Redis channel for dashboards
// following a session as it is recorded.
package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

type Redis struct {
	client  *redis.Client
	channel string
}

// ConnectRedis connects to addr and checks the connection.
func ConnectRedis(ctx context.Context, addr, channel string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, channel: channel}, nil
}

func (r *Redis) Publish(ctx context.Context, ev orchestrator.Event) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe delivers events published on the channel until ctx is done.
// Messages that do not decode are skipped.
func (r *Redis) Subscribe(ctx context.Context) <-chan orchestrator.Event {
	sub := r.client.Subscribe(ctx, r.channel)
	out := make(chan orchestrator.Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				ev, err := decode(m.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Redis) Close() error { return r.client.Close() }

func encode(ev orchestrator.Event) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event to JSON: %w", err)
	}
	return string(b), nil
}

func decode(s string) (orchestrator.Event, error) {
	var ev orchestrator.Event
	err := json.Unmarshal([]byte(s), &ev)
	return ev, err
}
