package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingProcessor brings the external mirror up to date with the store.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) error
}

type SyncProcessorConfig struct {
	// PollInterval is how often to check for an unsynced revision (default: 1m).
	PollInterval time.Duration

	// RunTimeout bounds a single catch-up run (default: 2m).
	RunTimeout time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		RunTimeout:   2 * time.Minute,
	}
}

// SyncStats describes the processor's recent runs.
type SyncStats struct {
	Runs                int64     `json:"runs"`
	Failures            int64     `json:"failures"`
	ConsecutiveFailures int64     `json:"consecutiveFailures"`
	LastRun             time.Time `json:"lastRun"`
	LastError           string    `json:"lastError,omitempty"`
}

// SyncProcessor periodically asks a PendingProcessor to catch up, covering
// change notifications that were lost or never published.
type SyncProcessor struct {
	processor PendingProcessor
	config    SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   SyncStats
}

func NewSyncProcessor(processor PendingProcessor, config SyncProcessorConfig) *SyncProcessor {
	defaults := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	return &SyncProcessor{processor: processor, config: config}
}

// Start runs one catch-up immediately and then every PollInterval until
// Stop is called or ctx is done.
func (p *SyncProcessor) Start(ctx context.Context) error {
	if p.processor == nil {
		return errors.New("sync processor has no pending processor")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started", "component", "worker", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully", "component", "worker")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out", "component", "worker")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) Stats() SyncStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.RunOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded catch-up and records its outcome.
func (p *SyncProcessor) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, p.config.RunTimeout)
	defer cancel()

	err := p.processor.ProcessPending(runCtx)

	p.mu.Lock()
	p.stats.Runs++
	p.stats.LastRun = time.Now()
	if err != nil {
		p.stats.Failures++
		p.stats.ConsecutiveFailures++
		p.stats.LastError = err.Error()
	} else {
		p.stats.ConsecutiveFailures = 0
		p.stats.LastError = ""
	}
	consecutive := p.stats.ConsecutiveFailures
	p.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "Pending sync failed",
			"component", "worker", "error", err, "consecutive_failures", consecutive)
	}
	return err
}
