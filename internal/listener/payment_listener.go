package listener

import (
	"context"
	"sync"
	"time"

	"pix-case-ledger-go/internal/intake"
	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"go.uber.org/zap"
)

type PaymentListenerConfig struct {
	IntakeService   *intake.Service
	DbService       store.Store
	PendingGrace    time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// PaymentListener is the safety net behind the webhook endpoint: it
// periodically polls the gateway for pending requests whose webhook never
// arrived and settles them through the same idempotent path, so a delivered
// webhook racing a poll cannot double-apply.
type PaymentListener struct {
	intakeService *intake.Service
	dbService     store.Store

	// State management for settled request ids
	settledIds      map[string]time.Time
	mutex           sync.RWMutex
	pendingGrace    time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewPaymentListener(cfg PaymentListenerConfig) *PaymentListener {
	return &PaymentListener{
		intakeService:   cfg.IntakeService,
		dbService:       cfg.DbService,
		settledIds:      make(map[string]time.Time),
		pendingGrace:    cfg.PendingGrace,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the payment reconciliation process
func (l *PaymentListener) Start(ctx context.Context) error {
	zap.L().Info("Starting payment listener")

	// Perform startup recovery to catch webhooks missed while down
	if err := l.performStartupRecovery(ctx); err != nil {
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return err
	}

	go l.pollLoop(ctx)
	go l.cleanupLoop(ctx)

	zap.L().Info("Payment listener started successfully",
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Duration("pending_grace", l.pendingGrace))

	return nil
}

// Stop gracefully stops the payment listener
func (l *PaymentListener) Stop() {
	zap.L().Info("Stopping payment listener")
	close(l.stopChan)
	<-l.doneChan
	zap.L().Info("Payment listener stopped")
}

// performStartupRecovery reconciles everything pending without a grace
// period, since any webhook sent while the process was down is gone.
func (l *PaymentListener) performStartupRecovery(ctx context.Context) error {
	zap.L().Info("Performing startup recovery")

	requests, err := l.dbService.ListPendingPayments(ctx, 0)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		zap.L().Info("No pending payments to recover")
		return nil
	}

	zap.L().Info("Recovering pending payments", zap.Int("count", len(requests)))
	l.reconcileBatch(ctx, requests)
	return nil
}

// pollLoop runs the main polling loop
func (l *PaymentListener) pollLoop(ctx context.Context) {
	defer close(l.doneChan)

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	l.pollPendingPayments(ctx)

	for {
		select {
		case <-ticker.C:
			l.pollPendingPayments(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollPendingPayments picks up requests that have been pending longer than
// the grace period. The grace keeps the poller from racing webhooks that are
// merely a few seconds behind the payment.
func (l *PaymentListener) pollPendingPayments(ctx context.Context) {
	requests, err := l.dbService.ListPendingPayments(ctx, l.pendingGrace)
	if err != nil {
		zap.L().Error("Failed to list pending payments", zap.Error(err))
		return
	}
	if len(requests) == 0 {
		return
	}

	zap.L().Debug("Polling pending payments", zap.Int("count", len(requests)))
	l.reconcileBatch(ctx, requests)
}

func (l *PaymentListener) reconcileBatch(ctx context.Context, requests []models.PaymentRequest) {
	var wg sync.WaitGroup

	for _, request := range requests {
		if l.isSettled(request.Id) {
			continue
		}
		wg.Add(1)

		go func(r models.PaymentRequest) {
			defer wg.Done()

			terminal, err := l.intakeService.ReconcilePending(ctx, r)
			if err != nil {
				zap.L().Error("Failed to reconcile payment",
					zap.String("request_id", r.Id),
					zap.String("provider_reference", r.ProviderReference),
					zap.Error(err))
				return
			}
			if terminal {
				l.markSettled(r.Id)
			}
		}(request)
	}

	wg.Wait()
}

// isSettled checks if this listener already resolved the request. The cache
// only saves gateway round trips; the settle path itself is idempotent.
func (l *PaymentListener) isSettled(requestId string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, exists := l.settledIds[requestId]
	return exists
}

// markSettled marks a request as resolved by this listener
func (l *PaymentListener) markSettled(requestId string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.settledIds[requestId] = time.Now()
}

// cleanupLoop periodically cleans old settled request ids
func (l *PaymentListener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupSettledIds()
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupSettledIds removes old entries from the settled request cache
func (l *PaymentListener) cleanupSettledIds() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	removed := 0
	for id, settledAt := range l.settledIds {
		if settledAt.Before(cutoff) {
			delete(l.settledIds, id)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Debug("Cleaned up settled request cache", zap.Int("removed", removed))
	}
}
