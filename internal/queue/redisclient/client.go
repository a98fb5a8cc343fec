package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// jobsChannel carries wake-up signals from producers to workers. The queue
// of record is postgres; redis only shortens the latency between enqueue
// and pickup.
const jobsChannel = "driverhub:jobs"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// this ping function checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// NotifyJobEnqueued publishes a wake-up signal for the workers.
func (c *Client) NotifyJobEnqueued(ctx context.Context) error {
	return c.redisdb.Publish(ctx, jobsChannel, "1").Err()
}

// JobSignals subscribes to the wake-up channel and forwards each signal.
// The channel closes when ctx is cancelled. Consumers must treat signals as
// advisory: the poll loop remains the source of truth.
func (c *Client) JobSignals(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sub := c.redisdb.Subscribe(ctx, jobsChannel)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}

				// coalesce bursts: one pending signal is enough
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
