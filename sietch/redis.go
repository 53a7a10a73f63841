package sietch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Cache = (*RedisCache)(nil)

// RedisCache stores rows as JSON documents under keyFunc(id)
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyFunc    func(int64) string
}

// NewRedisCache uses "<table>:<id>" keys when keyFunc is nil
func NewRedisCache(client *redis.Client, table string, defaultTTL time.Duration, keyFunc func(int64) string) *RedisCache {
	if keyFunc == nil {
		keyFunc = func(id int64) string {
			return table + ":" + strconv.FormatInt(id, 10)
		}
	}
	return &RedisCache{client: client, defaultTTL: defaultTTL, keyFunc: keyFunc}
}

func (r *RedisCache) Set(ctx context.Context, row Row) error {
	if row == nil {
		return errors.New("row cannot be nil")
	}
	id, ok := AsInt64(row["id"])
	if !ok {
		return fmt.Errorf("row has no usable id: %v", row["id"])
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyFunc(id), data, r.defaultTTL).Err()
}

func (r *RedisCache) Get(ctx context.Context, id int64) (Row, error) {
	data, err := r.client.Get(ctx, r.keyFunc(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	// numbers stay json.Number so 50-bit ids survive the round trip
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *RedisCache) Delete(ctx context.Context, id int64) error {
	result, err := r.client.Del(ctx, r.keyFunc(id)).Result()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrItemNotFound
	}
	return nil
}
