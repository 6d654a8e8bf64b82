// Package cache memoizes engine predictions for identical normalized
// requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/lydakis/trajbridge/internal/engine"
)

// Engine wraps an engine.Engine and caches successful Predict results.
type Engine struct {
	next  engine.Engine
	cache *ttlcache.Cache[string, engine.Result]
}

var _ engine.Engine = (*Engine)(nil)

// Wrap returns next unchanged when ttl <= 0, otherwise a caching decorator.
func Wrap(next engine.Engine, ttl time.Duration) engine.Engine {
	if ttl <= 0 {
		return next
	}
	c := ttlcache.New[string, engine.Result](
		ttlcache.WithTTL[string, engine.Result](ttl),
		ttlcache.WithDisableTouchOnHit[string, engine.Result](),
	)
	go c.Start()
	return &Engine{next: next, cache: c}
}

// Normalize is never cached.
func (e *Engine) Normalize(ctx context.Context, payload engine.Payload) (engine.Request, error) {
	return e.next.Normalize(ctx, payload)
}

// Predict returns a cached result when one exists for req.
func (e *Engine) Predict(ctx context.Context, req engine.Request) (engine.Result, error) {
	k := key(req)
	if item := e.cache.Get(k); item != nil {
		return item.Value(), nil
	}

	res, err := e.next.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	e.cache.Set(k, res, ttlcache.DefaultTTL)
	return res, nil
}

// Close stops the expiration loop and closes the wrapped engine.
func (e *Engine) Close() error {
	e.cache.Stop()
	return e.next.Close()
}

func key(req engine.Request) string {
	h := sha256.Sum256(req)
	return hex.EncodeToString(h[:])[:32]
}
