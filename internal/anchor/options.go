package anchor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Manager during construction in NewManager.
type Option func(*Manager) error

// WithLogger sets the logger used for operation failures.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) error {
		m.log = log
		return nil
	}
}

// WithClock replaces time.Now, mainly for duration-gated completion tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now == nil {
			return fmt.Errorf("clock must not be nil")
		}
		m.now = now
		return nil
	}
}

// WithIDGenerator replaces the generator used for anchor ids and QR codes.
// Generated tokens must be unique.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) error {
		if gen == nil {
			return fmt.Errorf("id generator must not be nil")
		}
		m.newID = gen
		return nil
	}
}

// WithIdentityPreservingUndo controls how undoing a removal (or redoing an
// add) re-creates the anchor. When enabled, the default, the exact record
// comes back with its id and QR codes. When disabled the anchor is re-created
// from its editable fields under a freshly minted identity.
func WithIdentityPreservingUndo(enabled bool) Option {
	return func(m *Manager) error {
		m.preserveIdentity = enabled
		return nil
	}
}
