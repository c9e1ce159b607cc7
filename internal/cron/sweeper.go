package cron

import (
	"context"
	"fmt"
	"time"
)

const defaultSweepBatchSize = 500

// overdueRepo is the slice of the reservation repository the sweeper uses.
type overdueRepo interface {
	ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper expires active orders whose pickup window has passed. Stock is
// left alone: the window is gone, so a restored unit could not be sold
// again anyway.
type Sweeper struct {
	repo      overdueRepo
	batchSize int
}

// NewSweeper builds a sweeper. A non-positive batch size falls back to the
// default.
func NewSweeper(repo overdueRepo, batchSize int) (*Sweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("overdue repository is required")
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &Sweeper{repo: repo, batchSize: batchSize}, nil
}

// Sweep expires overdue orders in batches and returns the affected count.
// With dryRun set it only counts what a real sweep would touch.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, dryRun bool) (int64, error) {
	if dryRun {
		return s.repo.CountOverdue(ctx, now)
	}
	var total int64
	for {
		affected, err := s.repo.ExpireOverdue(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		total += affected
		if affected < int64(s.batchSize) {
			return total, nil
		}
	}
}
