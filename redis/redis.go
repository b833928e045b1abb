package redis

import (
	"github.com/go-redis/redis/v8"
)

// New builds a client from a redis URI.
func New(uri string) (*redis.Client, error) {
	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(options), nil
}

type Client = redis.Client
