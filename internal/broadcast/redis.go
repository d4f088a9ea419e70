package broadcast

import (
	"context"

	"codeberg.org/mutker/driveassist/internal/errors"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Key receives the latest payload. Empty skips the SET.
	Key string
	// Channel receives every payload. Empty skips the PUBLISH.
	Channel string
}

// Redis keeps the latest advisory payload under a key and publishes each
// one on a channel.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     2,
		MinIdleConns: 1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.New().WithData(ErrConnectFailed, struct {
			Sink  string
			Addr  string
			Error string
		}{
			Sink:  "redis",
			Addr:  cfg.Addr,
			Error: err.Error(),
		})
	}

	return &Redis{client: client, cfg: cfg}, nil
}

func (*Redis) Name() string {
	return "redis"
}

func (r *Redis) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Payload.Encode()
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	if r.cfg.Key != "" {
		pipe.Set(ctx, r.cfg.Key, payload, 0)
	}
	if r.cfg.Channel != "" {
		pipe.Publish(ctx, r.cfg.Channel, payload)
	}

	_, err = pipe.Exec(ctx)

	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}
