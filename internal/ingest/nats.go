package ingest

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSSubscriber consumes snapshots from one subject and forwards them
// to the sink. Snapshots are last-write-wins state, so a plain core
// subscription is enough; a missed message is superseded by the next
// publish anyway.
// Params: shared NATS connection, subject, and sink.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber subscribes to the snapshot subject on an existing
// connection. The connection is owned by the caller and stays open
// after Close.
// Params: connection, subject, sink, and logger.
// Returns: started subscriber or subscription error.
func NewNATSSubscriber(nc *nats.Conn, subject string, sink SnapshotSink, logger *slog.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	subscriber := &NATSSubscriber{logger: logger}
	sub, err := nc.Subscribe(subject, func(message *nats.Msg) {
		snapshot, decodeErr := decodeSnapshot(message.Data)
		if decodeErr != nil {
			logger.Warn("nats snapshot decode failed", "subject", message.Subject, "error", decodeErr.Error())
			return
		}
		if applyErr := sink.Apply(snapshot); applyErr != nil {
			logger.Error("nats snapshot apply failed", "subject", message.Subject, "error", applyErr.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", subject, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// Close stops the subscription without closing the shared connection.
// Params: none.
// Returns: unsubscribe error.
func (s *NATSSubscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}
