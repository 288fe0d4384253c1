// Package suppress keeps a notification from being delivered twice across runs.
package suppress

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/digimosa/hawk-scan/internal/models"
)

// Store persists delivered message hashes.
type Store interface {
	HasAlertHash(hash string) (bool, error)
	SaveAlertHash(hash string) error
}

// Suppressor gates notifications on their content hash. Volatile fields
// (permalinks) are left out of the hash so link churn does not defeat it.
type Suppressor struct {
	enabled bool
	store   Store

	mu sync.Mutex
}

// New returns a Suppressor. When enabled is false nothing is ever
// suppressed or recorded.
func New(enabled bool, store Store) *Suppressor {
	return &Suppressor{enabled: enabled && store != nil, store: store}
}

func (s *Suppressor) Enabled() bool { return s.enabled }

// Hash is the SHA-256 hex digest of the message without its volatile fields.
func Hash(msg models.Message) string {
	return ChannelHash("", msg)
}

// ChannelHash is Hash scoped to one delivery channel, so a message that
// reached one channel and failed on another is only retried where it failed.
// An empty channel gives Hash.
func ChannelHash(channel string, msg models.Message) string {
	data := msg.Stable()
	if channel != "" {
		data = channel + "\n" + data
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// ShouldSuppress reports whether msg was delivered to channel before. A
// store error does not suppress.
func (s *Suppressor) ShouldSuppress(channel string, msg models.Message) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.HasAlertHash(ChannelHash(channel, msg))
}

// RecordSent persists the hash of a message delivered to channel.
func (s *Suppressor) RecordSent(channel string, msg models.Message) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveAlertHash(ChannelHash(channel, msg))
}

// Gate runs send unless msg was already delivered to channel, and records
// it after a successful send. The check and the record happen under one
// lock so concurrent callers cannot both deliver the same message.
func (s *Suppressor) Gate(channel string, msg models.Message, send func() error) (sent bool, err error) {
	if !s.enabled {
		return true, send()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := ChannelHash(channel, msg)
	seen, err := s.store.HasAlertHash(hash)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	if err := send(); err != nil {
		return false, err
	}
	return true, s.store.SaveAlertHash(hash)
}
