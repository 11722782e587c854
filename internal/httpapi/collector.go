// Package httpapi is the async job submission/status HTTP surface in
// front of the Prover Facade (SPEC_FULL.md §4.11): a job collector
// structurally adapted from the teacher's
// x/superblock/proofs/collector.ProofCollector (an in-memory,
// mutex-guarded map plus a periodic stats-logger goroutine), and a
// gorilla/mux handler adapted from x/superblock/proofs/http. Where the
// teacher collects per-rollup proof *submissions* keyed by superblock
// hash, this package tracks per-request proving *jobs* keyed by a
// generated job ID, since the prover service produces proofs rather
// than receiving them.
package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobCollector is an in-memory, single-instance job store.
type JobCollector struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	log    zerolog.Logger
	cancel context.CancelFunc
}

// NewJobCollector returns a configured JobCollector and starts its
// periodic stats-logger goroutine, stopped by Close.
func NewJobCollector(ctx context.Context, log zerolog.Logger) *JobCollector {
	logger := log.With().Str("component", "httpapi.job-collector").Logger()
	ctx, cancel := context.WithCancel(ctx)
	c := &JobCollector{
		jobs:   make(map[string]*Job),
		log:    logger,
		cancel: cancel,
	}
	logger.Info().Msg("job collector initialized")
	go c.statsLogger(ctx)
	return c
}

// Submit records a new queued job for clientID and returns its ID.
func (c *JobCollector) Submit(clientID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.jobs[id] = &Job{
		ID:          id,
		ClientID:    clientID,
		State:       StateQueued,
		SubmittedAt: time.Now(),
	}
	c.log.Info().Str("job_id", id).Str("client_id", clientID).Msg("proving job queued")
	return id
}

// MarkProving transitions a job from queued to proving.
func (c *JobCollector) MarkProving(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j, ok := c.jobs[jobID]; ok {
		j.State = StateProving
	}
}

// Complete records a successful proving result.
func (c *JobCollector) Complete(jobID string, proof, vkHash, publicValues []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return
	}
	j.State = StateComplete
	j.Proof = proof
	j.VerifyingKeyHash = vkHash
	j.PublicValues = publicValues
	j.CompletedAt = time.Now()
	c.log.Info().Str("job_id", jobID).Dur("elapsed", j.CompletedAt.Sub(j.SubmittedAt)).Msg("proving job complete")
}

// Fail records a terminal failure.
func (c *JobCollector) Fail(jobID string, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return
	}
	j.State = StateFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = time.Now()
	c.log.Error().Str("job_id", jobID).Str("error", errMsg).Msg("proving job failed")
}

// GetStatus returns a copy of the job's current state.
func (c *JobCollector) GetStatus(jobID string) (Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("httpapi: unknown job %q", jobID)
	}
	return *j, nil
}

// Stats summarizes the collector's current contents, for the periodic
// stats logger and for operator visibility.
func (c *JobCollector) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make(map[string]int)
	for _, j := range c.jobs {
		stats[string(j.State)]++
	}
	return stats
}

func (c *JobCollector) statsLogger(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.log.Info().Interface("jobs_by_state", c.Stats()).Msg("job collector statistics")
		}
	}
}

// Close stops the stats-logger goroutine.
func (c *JobCollector) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
