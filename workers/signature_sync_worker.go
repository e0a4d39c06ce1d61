// workers/signature_sync_worker.go
package workers

import (
	"context"
	"time"

	"mandate-portal/services"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// batchSize caps provider status checks per tick.
const batchSize = 50

// SignatureSyncWorker periodically reconciles mandates whose signature is
// still pending, for when a webhook was lost.
type SignatureSyncWorker struct {
	reconciler *services.Reconciler
	interval   time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewSignatureSyncWorker(reconciler *services.Reconciler, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *SignatureSyncWorker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SignatureSyncWorker{
		reconciler: reconciler,
		interval:   interval,
		clock:      clock,
		logger:     logger,
	}
}

// Start runs the loop in the background until ctx is cancelled.
func (w *SignatureSyncWorker) Start(ctx context.Context) {
	w.logger.Info("🔁 starting signature sync worker", zap.Duration("interval", w.interval))
	go w.Run(ctx)
}

// Run blocks, syncing once per interval.
func (w *SignatureSyncWorker) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("signature sync worker stopped")
			return
		case <-ticker.Chan():
			w.SyncOnce(ctx)
		}
	}
}

// SyncOnce checks one batch of pending mandates and returns how many were marked signed.
func (w *SignatureSyncWorker) SyncOnce(ctx context.Context) int {
	pending, err := w.reconciler.PendingMandates(ctx, batchSize)
	if err != nil {
		w.logger.Error("❌ failed to load pending mandates", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	marked := w.reconciler.ReconcileAll(ctx, pending, 0)
	w.logger.Info("📥 signature sync finished",
		zap.Int("checked", len(pending)),
		zap.Int("signed", marked),
	)
	return marked
}
