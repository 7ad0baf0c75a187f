package service

import (
	"context"
	"log"
	"time"

	"github.com/BikerAndy/site-signin/internal/observability"
	"github.com/BikerAndy/site-signin/internal/signin/store"
)

// HistoryPruner periodically trims superseded blob revisions kept by the
// store. The ledger itself is never pruned; only old copies of the blobs
// are. A Keep of 0 disables pruning.
type HistoryPruner struct {
	store    store.HistoryStore
	keep     int
	interval time.Duration
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

type PrunerConfig struct {
	// Keep is how many superseded revisions to retain per key.
	Keep int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewHistoryPruner creates a pruner but does not start it.
func NewHistoryPruner(s store.HistoryStore, cfg PrunerConfig, logger *log.Logger) *HistoryPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &HistoryPruner{
		store:    s,
		keep:     cfg.Keep,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *HistoryPruner) Start(ctx context.Context) {
	if p.keep <= 0 {
		p.logger.Printf("history pruner disabled (keep=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("history pruner started (keep=%d, interval=%dh)", p.keep, int(p.interval.Hours()))
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *HistoryPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *HistoryPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *HistoryPruner) prune(ctx context.Context) {
	deleted, err := p.store.PruneHistory(ctx, p.keep)
	if err != nil {
		p.logger.Printf("history prune error: %v", err)
		return
	}
	if deleted > 0 {
		observability.HistoryPruned.Add(float64(deleted))
		p.logger.Printf("history prune: deleted %d superseded revisions", deleted)
	}
}
