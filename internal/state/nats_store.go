package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds connection settings for the KV persistence backend.
// Params: server URLs, bucket name, and create-on-demand flag.
// Returns: settings consumed by NewNATSStore.
type NATSConfig struct {
	URL               []string
	Bucket            string
	AllowCreateBucket bool
}

// StatusFunc receives connectivity transitions from the NATS connection.
// Params: true when the connection is (re)established, false on loss.
// Returns: side effects in the registered watcher.
type StatusFunc func(online bool)

// NATSStore persists subsystem blobs in one JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed persistence adapter implementation.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore connects to NATS and opens (or creates) the KV bucket.
// Connectivity transitions are forwarded to onStatus when non-nil, which
// is how the offline queue observes disconnect/reconnect events.
// Params: backend settings and optional status callback.
// Returns: initialized store or setup error.
func NewNATSStore(cfg NATSConfig, onStatus StatusFunc) (*NATSStore, error) {
	options := []nats.Option{
		nats.MaxReconnects(-1),
	}
	if onStatus != nil {
		options = append(options,
			nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) {
				onStatus(false)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				onStatus(true)
			}),
		)
	}

	nc, err := nats.Connect(strings.Join(cfg.URL, ","), options...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if err != nil {
		if !cfg.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open bucket %q: %w", cfg.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.Bucket})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Conn exposes the underlying connection so subscribers can share it.
// Params: none.
// Returns: live NATS connection owned by the store.
func (s *NATSStore) Conn() *nats.Conn {
	return s.nc
}

// Get reads one blob by key.
// Params: persistence key.
// Returns: stored value or ErrNotFound.
func (s *NATSStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value(), nil
}

// Put writes one blob unconditionally (whole-value overwrite).
// Params: persistence key and serialized value.
// Returns: write error.
func (s *NATSStore) Put(_ context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes one key; absent keys are not an error.
// Params: persistence key.
// Returns: delete error.
func (s *NATSStore) Delete(_ context.Context, key string) error {
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys lists all keys in the bucket.
// Params: none.
// Returns: key list; empty when the bucket has no keys.
func (s *NATSStore) Keys(_ context.Context) ([]string, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
