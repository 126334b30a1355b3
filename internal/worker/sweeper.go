// Package worker runs background maintenance loops.
package worker

import (
	"context"
	"log"
	"time"
)

// Expirer closes pending bill requests older than ttl and reports how many
// it closed.
type Expirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration) (int, error)
}

// Sweeper periodically expires stale bill requests.
type Sweeper struct {
	Expirer  Expirer
	TTL      time.Duration
	Interval time.Duration
}

// Run blocks until ctx is cancelled. A zero TTL disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.TTL <= 0 {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Expirer.ExpireStale(ctx, s.TTL)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("ERROR: expire bill requests: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("expired %d stale bill requests", n)
	}
}
