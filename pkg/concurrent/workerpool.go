// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package concurrent provides a small bounded worker pool used to fan
// out independent root-server fetches during session startup.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs groups of functions with a bounded number of
// goroutines.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool limited to workerCount concurrent
// goroutines. Counts below one are clamped to one.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// Run executes all functions concurrently, up to the pool's limit.
// The first error cancels the remaining work and is returned.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		fn := fn
		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			return fn()
		})
	}

	return g.Wait()
}
