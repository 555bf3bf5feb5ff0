package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/attendance-sheet/internal/models"
)

const (
	bindingFieldEndpoint  = "endpoint_url"
	bindingFieldSheet     = "sheet_url"
	bindingFieldUpdatedAt = "updated_at"
)

// RedisBindingRepository keeps the binding in a Redis hash.
type RedisBindingRepository struct {
	client *redis.Client
	key    string
}

// NewRedisBindingRepository constructs the repository.
func NewRedisBindingRepository(client *redis.Client, key string) *RedisBindingRepository {
	if key == "" {
		key = "attendance:binding"
	}
	return &RedisBindingRepository{client: client, key: key}
}

// Load reads the binding hash. A missing key yields an empty binding.
func (r *RedisBindingRepository) Load(ctx context.Context) (models.Binding, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return models.Binding{}, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	binding := models.Binding{
		EndpointURL: values[bindingFieldEndpoint],
		SheetURL:    values[bindingFieldSheet],
	}
	if raw := values[bindingFieldUpdatedAt]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			binding.UpdatedAt = ts
		}
	}
	return binding, nil
}

// Save writes every binding field in one HSET.
func (r *RedisBindingRepository) Save(ctx context.Context, binding models.Binding) error {
	if binding.UpdatedAt.IsZero() {
		binding.UpdatedAt = time.Now().UTC()
	}
	err := r.client.HSet(ctx, r.key,
		bindingFieldEndpoint, binding.EndpointURL,
		bindingFieldSheet, binding.SheetURL,
		bindingFieldUpdatedAt, binding.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisBindingRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
