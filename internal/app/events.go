package app

import (
	"sync"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
)

// bannerDuration is how long a transient banner stays on screen.
const bannerDuration = 5 * time.Second

// Banner is one transient on-screen notification.
// Params: the notification and its display deadline.
// Returns: banner event payload.
type Banner struct {
	Notification domain.Notification
	ExpiresAt    time.Time
}

// Events fans notification signals out to UI listeners. Every recorded
// notification produces one notification event and one banner event
// with a fixed display deadline.
// Params: clock for banner deadlines.
// Returns: in-process event hub.
type Events struct {
	mu               sync.Mutex
	clock            clock.Clock
	notificationSubs []func(domain.Notification)
	bannerSubs       []func(Banner)
}

// NewEvents creates an empty hub.
// Params: clock implementation.
// Returns: initialized hub.
func NewEvents(clk clock.Clock) *Events {
	return &Events{clock: clk}
}

// OnNotification registers a listener for every new notification.
// Params: listener callback.
// Returns: side effect only.
func (e *Events) OnNotification(fn func(domain.Notification)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationSubs = append(e.notificationSubs, fn)
}

// OnBanner registers a listener for transient banners.
// Params: listener callback.
// Returns: side effect only.
func (e *Events) OnBanner(fn func(Banner)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bannerSubs = append(e.bannerSubs, fn)
}

// Emit delivers one notification to every listener.
// Params: recorded notification.
// Returns: side effect only.
func (e *Events) Emit(notification domain.Notification) {
	e.mu.Lock()
	notificationSubs := append([]func(domain.Notification){}, e.notificationSubs...)
	bannerSubs := append([]func(Banner){}, e.bannerSubs...)
	e.mu.Unlock()

	for _, fn := range notificationSubs {
		fn(notification)
	}
	if len(bannerSubs) == 0 {
		return
	}
	banner := Banner{
		Notification: notification,
		ExpiresAt:    e.clock.Now().Add(bannerDuration),
	}
	for _, fn := range bannerSubs {
		fn(banner)
	}
}
