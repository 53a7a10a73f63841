package sietch

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ Cache = (*LRUCache)(nil)

// LRUCache is an in-process Cache bounded by size and entry age
type LRUCache struct {
	lru *expirable.LRU[int64, Row]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[int64, Row](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, id int64) (Row, error) {
	row, ok := c.lru.Get(id)
	if !ok {
		return nil, ErrItemNotFound
	}
	return row.Clone(), nil
}

func (c *LRUCache) Set(_ context.Context, row Row) error {
	id, ok := AsInt64(row["id"])
	if !ok {
		return fmt.Errorf("row has no usable id: %v", row["id"])
	}
	c.lru.Add(id, row.Clone())
	return nil
}

func (c *LRUCache) Delete(_ context.Context, id int64) error {
	if !c.lru.Remove(id) {
		return ErrItemNotFound
	}
	return nil
}
