// Package offline buffers mutating operations while the backing
// service is unreachable and tracks connectivity transitions. Queued
// operations replay strictly in arrival order when connectivity
// returns.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/permanent"
	"farmalert/internal/state"
)

// SyncFunc pushes one queued operation to the backing service. A nil
// error removes the operation from the queue. An error wrapped with
// permanent.Mark drops the operation as unrecoverable; any other error
// keeps it for the next flush.
// Params: context and the operation to push.
// Returns: push outcome.
type SyncFunc func(ctx context.Context, op domain.QueuedOperation) error

// Stats summarizes the queue contents.
// Params: total, per-entity counts, and boundary timestamps.
// Returns: snapshot for diagnostics surfaces.
type Stats struct {
	Total    int            `json:"total"`
	ByEntity map[string]int `json:"by_entity"`
	Oldest   *time.Time     `json:"oldest,omitempty"`
	Newest   *time.Time     `json:"newest,omitempty"`
}

// FlushResult reports one flush pass.
// Params: synced, dropped, and remaining counts.
// Returns: flush outcome summary.
type FlushResult struct {
	Synced    int
	Dropped   int
	Remaining int
}

// Queue is the FIFO buffer of deferred operations.
// Params: persistence adapter, clock, sync function, and logger.
// Returns: durable operation buffer.
type Queue struct {
	mu      sync.Mutex
	persist state.Store
	clock   clock.Clock
	logger  *slog.Logger
	sync    SyncFunc
	ops     []domain.QueuedOperation
}

// NewQueue creates an empty queue. A nil sync function installs the
// default stub that accepts every operation; the host replaces it once
// a real backend transport exists.
// Params: persistence adapter, clock, sync function, and logger.
// Returns: initialized queue; call Load to read persisted operations.
func NewQueue(persist state.Store, clk clock.Clock, syncFn SyncFunc, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if syncFn == nil {
		syncFn = func(context.Context, domain.QueuedOperation) error { return nil }
	}
	return &Queue{persist: persist, clock: clk, logger: logger, sync: syncFn}
}

// Load reads persisted operations into memory.
// Params: context for the persistence read.
// Returns: decode/read error; an absent key is an empty queue.
func (q *Queue) Load(ctx context.Context) error {
	raw, err := q.persist.Get(ctx, state.KeyOfflineQueue)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load offline queue: %w", err)
	}
	var ops []domain.QueuedOperation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return fmt.Errorf("decode offline queue: %w", err)
	}
	q.mu.Lock()
	q.ops = ops
	q.mu.Unlock()
	return nil
}

// Enqueue appends one operation at the tail of the queue.
// Params: context, entity name, and opaque payload.
// Returns: the stored operation with its assigned id.
func (q *Queue) Enqueue(ctx context.Context, entity string, payload json.RawMessage) domain.QueuedOperation {
	now := q.clock.Now()
	op := domain.QueuedOperation{
		ID:        domain.NewOperationID(now),
		Entity:    entity,
		Payload:   payload,
		Timestamp: now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	q.persistLocked(ctx)
	return op
}

// List returns queued operations oldest-first.
// Params: none.
// Returns: detached operation slice.
func (q *Queue) List() []domain.QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.QueuedOperation(nil), q.ops...)
}

// Remove drops one operation by id.
// Params: context and operation id.
// Returns: false when the id is unknown.
func (q *Queue) Remove(ctx context.Context, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.ops {
		if q.ops[i].ID == id {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			q.persistLocked(ctx)
			return true
		}
	}
	return false
}

// Clear drops every queued operation.
// Params: context for the persistence write.
// Returns: side effect only.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = q.ops[:0]
	q.persistLocked(ctx)
}

// Len returns the number of queued operations.
// Params: none.
// Returns: queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Stats summarizes the queue.
// Params: none.
// Returns: total, per-entity counts, and oldest/newest timestamps.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{Total: len(q.ops), ByEntity: make(map[string]int, 4)}
	for _, op := range q.ops {
		stats.ByEntity[op.Entity]++
	}
	if len(q.ops) > 0 {
		oldest := q.ops[0].Timestamp
		newest := q.ops[len(q.ops)-1].Timestamp
		stats.Oldest = &oldest
		stats.Newest = &newest
	}
	return stats
}

// Flush replays queued operations in order through the sync function.
//
// The pass stops at the first operation that does not sync cleanly:
// a permanent error drops that operation and stops, any other error
// keeps it and stops. Later operations are never attempted past a
// failure, so replay order is preserved across flushes.
// Params: context for sync calls and persistence writes.
// Returns: counts of synced, dropped, and remaining operations.
func (q *Queue) Flush(ctx context.Context) FlushResult {
	q.mu.Lock()
	pending := append([]domain.QueuedOperation(nil), q.ops...)
	q.mu.Unlock()

	var result FlushResult
	processed := 0
	for _, op := range pending {
		err := q.sync(ctx, op)
		if err == nil {
			processed++
			result.Synced++
			continue
		}
		if permanent.Is(err) {
			q.logger.Error("dropping unsyncable operation",
				"id", op.ID, "entity", op.Entity, "error", err.Error())
			processed++
			result.Dropped++
		} else {
			q.logger.Warn("sync failed, keeping operation",
				"id", op.ID, "entity", op.Entity, "error", err.Error())
		}
		break
	}

	q.mu.Lock()
	if processed > 0 && processed <= len(q.ops) {
		q.ops = append(q.ops[:0], q.ops[processed:]...)
		q.persistLocked(ctx)
	}
	result.Remaining = len(q.ops)
	q.mu.Unlock()
	return result
}

// persistLocked writes the queue while holding the lock. Failures are
// logged and swallowed; the in-memory queue stays authoritative for
// the session.
// Params: context for the persistence write.
// Returns: side effect only.
func (q *Queue) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(q.ops)
	if err != nil {
		q.logger.Error("encode offline queue failed", "error", err.Error())
		return
	}
	if err := q.persist.Put(ctx, state.KeyOfflineQueue, raw); err != nil {
		q.logger.Error("persist offline queue failed", "error", err.Error())
	}
}
