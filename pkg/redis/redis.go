package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "detector:result:"

var ErrNotFound = errors.New("result not found")

type Config struct {
	Address  string
	Password string
	DB       int
}

type IRedis interface {
	SetResult(ctx context.Context, id string, payload []byte, expiration time.Duration) error
	GetResult(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// store is the part of *redis.Client the result records use.
type store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

type redisClient struct {
	client store
	log    *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) IRedis {
	logger.Info(fmt.Sprintf("Connecting to Redis at %s...", cfg.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logger.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, log: logger}
}

func (r *redisClient) SetResult(ctx context.Context, id string, payload []byte, expiration time.Duration) error {
	r.log.Debug(fmt.Sprintf("Storing result %s with expiration %v", id, expiration))
	if err := r.client.Set(ctx, keyPrefix+id, payload, expiration).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error storing result %s: %v", id, err))
		return err
	}
	return nil
}

func (r *redisClient) GetResult(ctx context.Context, id string) ([]byte, error) {
	val, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug(fmt.Sprintf("Result %s not found", id))
		return nil, ErrNotFound
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error getting result %s: %v", id, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
