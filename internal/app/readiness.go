package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkTimeout bounds each individual readiness probe.
const checkTimeout = 2 * time.Second

// Pinger is anything with a context-aware Ping, which covers the pgx pool,
// the Qdrant client, and the LLM client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// Readiness aggregates named dependency checks for /readyz.
type Readiness struct {
	checks map[string]Check
}

// NewReadiness constructs an empty Readiness.
func NewReadiness() *Readiness {
	return &Readiness{checks: map[string]Check{}}
}

// Add registers a named check. Nil checks are ignored.
func (r *Readiness) Add(name string, check Check) *Readiness {
	if check != nil {
		r.checks[name] = check
	}
	return r
}

// AddPinger registers a Pinger-backed check.
func (r *Readiness) AddPinger(name string, p Pinger) *Readiness {
	if p == nil {
		return r
	}
	return r.Add(name, p.Ping)
}

// AddRedis registers a Redis-backed check.
func (r *Readiness) AddRedis(rdb *redis.Client) *Readiness {
	if rdb == nil {
		return r
	}
	return r.Add("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}

// Run probes every dependency and returns per-check failures. An empty map
// means ready.
func (r *Readiness) Run(ctx context.Context) map[string]error {
	failures := map[string]error{}
	for name, check := range r.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := check(cctx); err != nil {
			failures[name] = fmt.Errorf("op=readiness.%s: %w", name, err)
		}
		cancel()
	}
	return failures
}
