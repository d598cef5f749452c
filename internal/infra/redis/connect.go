package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
)

const pingTimeout = 5 * time.Second

// Connect dials Redis and fails fast when the server does not answer a PING.
// The client backs both the settlement cache and payment status pub/sub, so
// it keeps a small pool of idle connections for subscribers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.IOTimeout,
		WriteTimeout: cfg.IOTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := cli.Ping(pingCtx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("Connected to Redis at %s (db %d).\n", cfg.Addr, cfg.DB)

	return cli, nil
}

func Disconnect(cli *redis.Client) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		log.Printf("Failed to close Redis connection: %v\n", err)
		return
	}

	log.Println("Connection to Redis closed.")
}
