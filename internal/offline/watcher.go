package offline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"farmalert/internal/state"
)

// Watcher tracks connectivity state and fans transitions out to
// listeners. The state survives restarts so a session that went down
// offline comes back up knowing it still has work queued.
// Params: persistence adapter and logger.
// Returns: connectivity state holder.
type Watcher struct {
	mu        sync.Mutex
	persist   state.Store
	logger    *slog.Logger
	online    bool
	listeners []func(online bool)
}

// NewWatcher creates a watcher that starts online.
// Params: persistence adapter and logger.
// Returns: initialized watcher; call Load to read the persisted flag.
func NewWatcher(persist state.Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{persist: persist, logger: logger, online: true}
}

// Load reads the persisted connectivity flag.
// Params: context for the persistence read.
// Returns: decode/read error; an absent key keeps the online default.
func (w *Watcher) Load(ctx context.Context) error {
	raw, err := w.persist.Get(ctx, state.KeyOfflineFlag)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return err
	}
	var offline bool
	if err := json.Unmarshal(raw, &offline); err != nil {
		return err
	}
	w.mu.Lock()
	w.online = !offline
	w.mu.Unlock()
	return nil
}

// Online reports the current connectivity state.
// Params: none.
// Returns: true while connected.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Register adds a listener and immediately reports the current state
// to it, so late registrants never wait for the next transition.
// Params: listener callback.
// Returns: side effect only.
func (w *Watcher) Register(fn func(online bool)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	current := w.online
	w.mu.Unlock()
	fn(current)
}

// Set records a connectivity change. Listeners fire only on actual
// transitions; repeated reports of the same state are ignored.
// Params: context and the new state.
// Returns: side effect only.
func (w *Watcher) Set(ctx context.Context, online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	listeners := append([]func(online bool){}, w.listeners...)
	w.persistLocked(ctx)
	w.mu.Unlock()

	if online {
		w.logger.Info("connectivity restored")
	} else {
		w.logger.Warn("connectivity lost, queueing writes")
	}
	for _, listener := range listeners {
		listener(online)
	}
}

func (w *Watcher) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(!w.online)
	if err != nil {
		w.logger.Error("encode offline flag failed", "error", err.Error())
		return
	}
	if err := w.persist.Put(ctx, state.KeyOfflineFlag, raw); err != nil {
		w.logger.Error("persist offline flag failed", "error", err.Error())
	}
}
