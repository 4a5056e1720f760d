package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const relayChannel = "billing:events"

type relayEnvelope struct {
	Origin  string          `json:"origin"`
	Rooms   []string        `json:"rooms"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay shares published events between instances over one Redis
// Pub/Sub channel. Messages an instance published itself are ignored on
// receipt since its hub already delivered them locally.
type RedisRelay struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

func NewRedisRelay(rdb *redis.Client, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, origin: uuid.NewString(), log: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, rooms []string, payload []byte) error {
	msg, err := json.Marshal(relayEnvelope{Origin: r.origin, Rooms: rooms, Payload: payload})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, relayChannel, msg).Err()
}

func (r *RedisRelay) Listen(ctx context.Context, deliver func(rooms []string, payload []byte)) {
	sub := r.rdb.Subscribe(ctx, relayChannel)
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
			var env relayEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.Warn().Err(err).Msg("dropping malformed relay message")
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			deliver(env.Rooms, env.Payload)
		}
	}
}
