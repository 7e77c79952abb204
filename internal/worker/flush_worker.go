package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/utils"
)

// Flusher retries persistence that was abandoned earlier.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushWorker periodically re-persists ledgers whose last write failed.
type FlushWorker struct {
	flusher  Flusher
	interval time.Duration
	timeout  time.Duration
}

// NewFlushWorker constructs a FlushWorker.
func NewFlushWorker(flusher Flusher, interval time.Duration) *FlushWorker {
	timeout := interval / 2
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &FlushWorker{flusher: flusher, interval: interval, timeout: timeout}
}

// Start begins the periodic flush loop until context is canceled.
func (w *FlushWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		log.Info().Msg("Flush worker disabled")
		return
	}
	log.Info().Dur("interval", w.interval).Msg("Starting flush worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Flush worker stopped")
			return
		}
	}
}

func (w *FlushWorker) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.flusher.Flush(runCtx)
	switch {
	case err == nil:
	case utils.IsWarning(err):
		log.Warn().Err(err).Msg("Flush incomplete, will retry")
	default:
		log.Error().Err(err).Msg("Flush failed")
	}
}
