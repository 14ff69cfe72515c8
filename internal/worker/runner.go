package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/turf-booking/pkg/logger"
)

// batchFunc processes up to limit items and reports how many it handled
type batchFunc func(ctx context.Context, limit int) (int, error)

// Stats contains worker statistics
type Stats struct {
	IsRunning      bool      `json:"is_running"`
	TotalProcessed int64     `json:"total_processed"`
	TotalFailures  int64     `json:"total_failures"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastCount      int       `json:"last_count"`
}

// runner calls a batch function on a fixed interval until stopped
type runner struct {
	name      string
	interval  time.Duration
	batchSize int
	batch     batchFunc
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
	stats     Stats
}

func newRunner(name string, interval time.Duration, batchSize int, batch batchFunc) *runner {
	return &runner{
		name:      name,
		interval:  interval,
		batchSize: batchSize,
		batch:     batch,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the worker loop
func (r *runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("%s already running", r.name)
	}
	r.running = true
	r.mu.Unlock()

	r.log.Info(fmt.Sprintf("Starting %s (interval %s, batch %d)", r.name, r.interval, r.batchSize))

	r.wg.Add(1)
	go r.loop(ctx)

	return nil
}

// Stop stops the worker and waits for the current pass to finish
func (r *runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.log.Info(fmt.Sprintf("Stopping %s", r.name))
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info(fmt.Sprintf("%s stopped", r.name))
}

func (r *runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and returns the number of items handled
func (r *runner) RunOnce(ctx context.Context) int {
	n, err := r.batch(ctx, r.batchSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.LastScanTime = time.Now()
	r.stats.LastCount = n
	r.stats.TotalProcessed += int64(n)

	if err != nil {
		r.stats.TotalFailures++
		r.log.Error(fmt.Sprintf("%s pass failed after %d items: %v", r.name, n, err))
		return n
	}
	if n > 0 {
		r.log.Info(fmt.Sprintf("%s processed %d items", r.name, n))
	}
	return n
}

// GetStats returns worker statistics
func (r *runner) GetStats() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.IsRunning = r.running
	return &stats
}
