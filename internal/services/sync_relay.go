package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bbledger/internal/amqp"
	"bbledger/internal/cache"
	"bbledger/internal/log"
	"bbledger/internal/storage"
)

// Outbox is the dirty-row view of local storage.
type Outbox interface {
	Pending(ctx context.Context, table string, limit int) ([]storage.DirtyRow, error)
	MarkSynced(ctx context.Context, table, userID string, ids ...string) (int64, error)
}

type Publisher interface {
	PublishDirty(ctx context.Context, msg *amqp.DirtyRowMessage) error
}

type SyncRelayConfig struct {
	// Interval between announce rounds (default: 30s)
	Interval time.Duration

	// BatchSize caps announcements per round (default: 50)
	BatchSize int

	// ReannounceAfter is how long a row is left alone after being announced
	// before it is announced again if still dirty (default: 5m)
	ReannounceAfter time.Duration

	// CacheSize bounds how many announced rows are remembered (default: 10000)
	CacheSize int
}

func DefaultSyncRelayConfig() SyncRelayConfig {
	return SyncRelayConfig{
		Interval:        30 * time.Second,
		BatchSize:       50,
		ReannounceAfter: 5 * time.Minute,
		CacheSize:       10000,
	}
}

// SyncRelay announces dirty rows to the external sync service and clears
// the dirty flag when the service acknowledges them. It lives outside the
// ledger core; nothing in storage depends on it.
type SyncRelay struct {
	outbox    Outbox
	publisher Publisher
	config    SyncRelayConfig
	announced *cache.LRUCache[time.Time]

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncRelay(outbox Outbox, publisher Publisher, config SyncRelayConfig) *SyncRelay {
	return &SyncRelay{
		outbox:    outbox,
		publisher: publisher,
		config:    config,
		announced: cache.NewLRUCache[time.Time](config.CacheSize, config.ReannounceAfter),
	}
}

// Start begins the announce loop. Returns an error if already running.
func (r *SyncRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("sync relay is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	loggerFor(ctx, log.ComponentRelay).InfoContext(ctx, "Sync relay started",
		"interval", r.config.Interval,
		"batch_size", r.config.BatchSize,
		"reannounce_after", r.config.ReannounceAfter)
	return nil
}

// Stop signals the loop and waits for the current round to finish. Only
// the first of concurrent callers signals; the rest return nil at once.
func (r *SyncRelay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		loggerFor(ctx, log.ComponentRelay).InfoContext(ctx, "Sync relay stopped gracefully")
		return nil
	case <-ctx.Done():
		loggerFor(ctx, log.ComponentRelay).WarnContext(ctx, "Sync relay stop timed out")
		return ctx.Err()
	}
}

func (r *SyncRelay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *SyncRelay) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.round(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.round(ctx)
		}
	}
}

func (r *SyncRelay) round(ctx context.Context) {
	if n := r.announced.CleanExpired(); n > 0 {
		loggerFor(ctx, log.ComponentRelay).DebugContext(ctx, "Expired announcements dropped", log.FieldCount, n)
	}
	if _, err := r.AnnounceBatch(ctx); err != nil {
		loggerFor(ctx, log.ComponentRelay).
			WithFields(log.NewFields().WithOperation(log.OpAnnounce).WithError(err)).
			ErrorContext(ctx, "Announce round failed")
	}
}

// AnnounceBatch publishes up to BatchSize dirty rows that have not been
// announced within ReannounceAfter and returns how many it published.
func (r *SyncRelay) AnnounceBatch(ctx context.Context) (int, error) {
	logger := loggerFor(ctx, log.ComponentRelay).WithFields(log.NewFields().WithOperation(log.OpAnnounce))

	published := 0
	for _, table := range storage.SyncTables() {
		if published >= r.config.BatchSize {
			break
		}
		// Rows still remembered as announced are skipped, so fetch enough
		// to fill the batch past all of them.
		limit := r.config.BatchSize - published + r.announced.Size()
		rows, err := r.outbox.Pending(ctx, table, limit)
		if err != nil {
			return published, fmt.Errorf("pending %s: %w", table, err)
		}

		for _, row := range rows {
			if published >= r.config.BatchSize {
				return published, nil
			}
			select {
			case <-ctx.Done():
				return published, ctx.Err()
			default:
			}

			key := announceKey(row.Table, row.ID)
			if !r.announced.SetIfAbsent(key, time.Now()) {
				continue
			}
			if err := r.publisher.PublishDirty(ctx, amqp.NewDirtyRowMessage(row.Table, row.ID, row.UserID)); err != nil {
				r.announced.Delete(key)
				if errors.Is(err, amqp.ErrCircuitOpen) {
					return published, err
				}
				logger.WarnContext(ctx, "Failed to announce dirty row",
					log.FieldTable, row.Table, "id", row.ID, log.FieldError, err)
				continue
			}
			published++
		}
	}

	if published > 0 {
		logger.InfoContext(ctx, "Announced dirty rows", log.FieldCount, published)
	}
	return published, nil
}

// HandleAck clears the dirty flag of acknowledged rows. It is the ack
// consumer's handler.
func (r *SyncRelay) HandleAck(ctx context.Context, ack *amqp.SyncAck) error {
	n, err := r.outbox.MarkSynced(ctx, ack.Table, ack.UserID, ack.IDs...)
	if err != nil {
		return fmt.Errorf("apply ack for %s: %w", ack.Table, err)
	}
	for _, id := range ack.IDs {
		r.announced.Delete(announceKey(ack.Table, id))
	}

	loggerFor(ctx, log.ComponentRelay).
		WithFields(log.NewFields().WithOperation(log.OpAck).WithUser(ack.UserID)).
		InfoContext(ctx, "Sync acknowledged",
			log.FieldTable, ack.Table,
			"acked", len(ack.IDs),
			"cleared", n)
	return nil
}

func announceKey(table, id string) string {
	return table + "/" + id
}
