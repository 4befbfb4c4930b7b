package outbox

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groveapp/grove/pkg/clock"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/events"
	"github.com/groveapp/grove/pkg/log"
	"github.com/groveapp/grove/pkg/metrics"
	"github.com/groveapp/grove/pkg/remote"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
)

// Reporter receives operations abandoned after exhausting their retry
// budget. The queue never retries them again; divergence between local and
// remote state is the reporter's problem to surface.
type Reporter interface {
	ReportAbandoned(op *types.SyncOperation)
}

// Config holds queue tuning.
type Config struct {
	MaxRetries     int           // retry budget per operation
	Capacity       int           // pending operations before backlog warnings
	RequestTimeout time.Duration // per-attempt remote call timeout
	DrainInterval  time.Duration // periodic catch-up drain
	Retention      time.Duration // how long synced operations are kept
	InitialBackoff time.Duration // first retry delay
	MaxBackoff     time.Duration // retry delay ceiling
}

// DefaultConfig returns the standard queue tuning.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		Capacity:       1000,
		RequestTimeout: 10 * time.Second,
		DrainInterval:  30 * time.Second,
		Retention:      7 * 24 * time.Hour,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = d.DrainInterval
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	return c
}

// Queue is the durable outbox: a FIFO of pending remote mutations drained
// by a single background worker. Operations are processed strictly in
// enqueue order across all entity types so causal ordering holds (a habit
// is created remotely before a completion referencing it).
type Queue struct {
	store    storage.Store
	remote   remote.Store
	clk      clock.Clock
	broker   *events.Broker
	reporter Reporter
	cfg      Config
	logger   zerolog.Logger

	// OnSynced, when set, runs after an operation reaches synced. The
	// coordinator uses it to stamp completion records.
	OnSynced func(op *types.SyncOperation)

	drainMu sync.Mutex // serializes drains; all invocations coalesce here

	mu        sync.Mutex
	backoffs  map[string]backoff.BackOff
	notBefore map[string]time.Time

	notifyCh  chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a queue over the given store and remote. broker and reporter
// may be nil. Any operation left in syncing by a crash is reset to pending
// so it is retried rather than stuck forever.
func New(store storage.Store, rs remote.Store, clk clock.Clock, broker *events.Broker, reporter Reporter, cfg Config) (*Queue, error) {
	q := &Queue{
		store:     store,
		remote:    rs,
		clk:       clk,
		broker:    broker,
		reporter:  reporter,
		cfg:       cfg.withDefaults(),
		logger:    log.WithComponent("outbox"),
		backoffs:  make(map[string]backoff.BackOff),
		notBefore: make(map[string]time.Time),
		notifyCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	if err := q.recoverStale(); err != nil {
		return nil, err
	}
	return q, nil
}

// recoverStale resets operations stranded in syncing by a previous crash.
func (q *Queue) recoverStale() error {
	stale, err := q.store.ListSyncOperationsByStatus(types.SyncSyncing)
	if err != nil {
		return err
	}
	for _, op := range stale {
		op.Status = types.SyncPending
		if err := q.store.UpdateSyncOperation(op); err != nil {
			return err
		}
		q.logger.Warn().Str("op_id", op.ID).Msg("reset stale syncing operation to pending")
	}
	return nil
}

// Enqueue persists a new operation and nudges the worker for an immediate
// best-effort attempt. Local writes are never rejected to protect queue
// capacity: when the queue is over capacity the operation is still
// accepted and backlogged is true. The returned operation lets callers
// remove it again when a batched local action fails partway.
func (q *Queue) Enqueue(kind types.SyncKind, entityType types.EntityType, entityID string, payload json.RawMessage) (op *types.SyncOperation, backlogged bool, err error) {
	op = &types.SyncOperation{
		ID:         uuid.New().String(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		Status:     types.SyncPending,
		EnqueuedAt: q.clk.Now(),
	}

	if err := q.store.CreateSyncOperation(op); err != nil {
		return nil, false, err
	}

	// The depth check is advisory; the operation is already durable, so a
	// failed count never fails the enqueue.
	if pending, err := q.store.ListSyncOperationsByStatus(types.SyncPending); err == nil {
		backlogged = len(pending) > q.cfg.Capacity
		if backlogged {
			q.logger.Warn().Int("pending", len(pending)).Msg("sync queue backlogged")
		}
	}

	q.nudge()
	return op, backlogged, nil
}

// Remove deletes an operation that has not been (and must not be) applied
// remotely, used to unwind a batch whose local action failed partway.
// Taking the drain lock ensures no attempt is in flight for it.
func (q *Queue) Remove(opID string) error {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()
	q.clearBackoff(opID)
	return q.store.DeleteSyncOperation(opID)
}

// nudge wakes the worker without blocking.
func (q *Queue) nudge() {
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

// Start begins the background drain loop.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// Stop stops the worker between operations; an in-flight operation runs to
// completion or timeout first.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	<-q.doneCh
}

func (q *Queue) run() {
	defer close(q.doneCh)

	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.notifyCh:
		case <-ticker.C:
		case <-q.stopCh:
			return
		}

		if err := q.Drain(context.Background()); err != nil {
			q.logger.Error().Err(err).Msg("drain failed")
		}
	}
}

// Drain processes eligible pending operations oldest-first. Concurrent
// invocations (post-enqueue nudges, periodic passes, manual calls)
// coalesce into one serialized drain. A failing operation does not halt
// the queue; it is rescheduled or abandoned and the drain moves on.
// OnSynced callbacks fire after the drain lock is released; they take
// domain locks whose holders may be waiting on Remove.
func (q *Queue) Drain(ctx context.Context) error {
	synced, err := q.drainPending(ctx)
	if q.OnSynced != nil {
		for _, op := range synced {
			q.OnSynced(op)
		}
	}
	return err
}

func (q *Queue) drainPending(ctx context.Context) (synced []*types.SyncOperation, err error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.SyncDrainDuration)
		q.updateDepthMetrics()
	}()

	ops, err := q.store.ListSyncOperationsByStatus(types.SyncPending)
	if err != nil {
		return nil, err
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].EnqueuedAt.Before(ops[j].EnqueuedAt) })

	for _, op := range ops {
		select {
		case <-q.stopCh:
			return synced, nil
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		if !q.eligible(op) {
			continue
		}
		ok, err := q.processOne(ctx, op)
		if err != nil {
			return synced, err
		}
		if ok {
			synced = append(synced, op)
		}
	}

	return synced, q.prune()
}

// eligible reports whether the operation's backoff window has elapsed.
func (q *Queue) eligible(op *types.SyncOperation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	nb, ok := q.notBefore[op.ID]
	return !ok || !q.clk.Now().Before(nb)
}

// processOne executes a single attempt and reports whether the operation
// reached synced. Returned errors are local-store failures only; remote
// failures are absorbed into the operation's state.
func (q *Queue) processOne(ctx context.Context, op *types.SyncOperation) (synced bool, err error) {
	op.Status = types.SyncSyncing
	if err := q.store.UpdateSyncOperation(op); err != nil {
		return false, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.RequestTimeout)
	remoteErr := remote.Apply(attemptCtx, q.remote, op)
	cancel()

	now := q.clk.Now()
	op.LastAttemptAt = &now

	switch {
	case remoteErr == nil:
		op.Status = types.SyncSynced
		op.LastError = ""
		q.clearBackoff(op.ID)
		metrics.SyncAttemptsTotal.WithLabelValues("success").Inc()
		if err := q.store.UpdateSyncOperation(op); err != nil {
			return false, err
		}
		q.logger.Debug().Str("op_id", op.ID).Str("entity", string(op.EntityType)).Msg("operation synced")
		return true, nil

	case errdefs.IsRemoteTerminal(remoteErr):
		op.RetryCount++
		op.LastError = remoteErr.Error()
		op.Status = types.SyncFailed
		metrics.SyncAttemptsTotal.WithLabelValues("terminal").Inc()
		if err := q.store.UpdateSyncOperation(op); err != nil {
			return false, err
		}
		q.abandon(op)
		return false, nil

	default:
		// Transient: retry until the budget runs out.
		op.RetryCount++
		op.LastError = remoteErr.Error()
		metrics.SyncAttemptsTotal.WithLabelValues("transient").Inc()
		if op.RetryCount >= q.cfg.MaxRetries {
			op.Status = types.SyncFailed
			if err := q.store.UpdateSyncOperation(op); err != nil {
				return false, err
			}
			q.abandon(op)
			return false, nil
		}
		op.Status = types.SyncPending
		if err := q.store.UpdateSyncOperation(op); err != nil {
			return false, err
		}
		q.scheduleRetry(op.ID, now)
		return false, nil
	}
}

// scheduleRetry records the operation's next-eligible time using its
// exponential backoff.
func (q *Queue) scheduleRetry(opID string, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bo, ok := q.backoffs[opID]
	if !ok {
		ebo := backoff.NewExponentialBackOff()
		ebo.InitialInterval = q.cfg.InitialBackoff
		ebo.MaxInterval = q.cfg.MaxBackoff
		ebo.MaxElapsedTime = 0 // the retry budget, not elapsed time, bounds retries
		ebo.Reset()
		bo = ebo
		q.backoffs[opID] = bo
	}
	q.notBefore[opID] = now.Add(bo.NextBackOff())
}

func (q *Queue) clearBackoff(opID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.backoffs, opID)
	delete(q.notBefore, opID)
}

// abandon surfaces an operation that will never be retried again. The
// local write stands; divergence is reported, not rolled back.
func (q *Queue) abandon(op *types.SyncOperation) {
	q.clearBackoff(op.ID)
	metrics.SyncAbandonedTotal.Inc()
	q.logger.Error().
		Str("op_id", op.ID).
		Str("entity", string(op.EntityType)).
		Str("entity_id", op.EntityID).
		Int("retries", op.RetryCount).
		Str("last_error", op.LastError).
		Msg("sync operation abandoned")

	if q.reporter != nil {
		q.reporter.ReportAbandoned(op)
	}
	if q.broker != nil {
		q.broker.Publish(&events.Event{
			ID:      uuid.New().String(),
			Type:    events.EventSyncAbandoned,
			Message: "sync operation abandoned: " + op.LastError,
			Metadata: map[string]string{
				"op_id":       op.ID,
				"entity_type": string(op.EntityType),
				"entity_id":   op.EntityID,
			},
		})
	}
}

// prune removes synced operations older than the retention window.
func (q *Queue) prune() error {
	synced, err := q.store.ListSyncOperationsByStatus(types.SyncSynced)
	if err != nil {
		return err
	}
	cutoff := q.clk.Now().Add(-q.cfg.Retention)
	for _, op := range synced {
		at := op.EnqueuedAt
		if op.LastAttemptAt != nil {
			at = *op.LastAttemptAt
		}
		if at.Before(cutoff) {
			if err := q.store.DeleteSyncOperation(op.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Status returns operation counts by status.
func (q *Queue) Status() (map[types.SyncStatus]int, error) {
	ops, err := q.store.ListSyncOperations()
	if err != nil {
		return nil, err
	}
	counts := make(map[types.SyncStatus]int)
	for _, op := range ops {
		counts[op.Status]++
	}
	return counts, nil
}

func (q *Queue) updateDepthMetrics() {
	counts, err := q.Status()
	if err != nil {
		return
	}
	for _, status := range []types.SyncStatus{types.SyncPending, types.SyncSyncing, types.SyncSynced, types.SyncFailed} {
		metrics.SyncQueueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// LogReporter logs abandoned operations; the default reporter when no
// external error-reporting collaborator is wired.
type LogReporter struct{}

func (LogReporter) ReportAbandoned(op *types.SyncOperation) {
	logger := log.WithOperationID(op.ID)
	logger.Error().
		Str("entity_type", string(op.EntityType)).
		Str("entity_id", op.EntityID).
		Msg("abandoned sync operation needs attention")
}
