package lifecycle

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Manager owns process shutdown. The worker entrypoint registers its store,
// pool, and other handles here so teardown happens in one place instead of a
// stack of defers scattered through main.
type Manager struct {
	logger zerolog.Logger

	mu      sync.Mutex
	closed  bool
	handles []handle
}

type handle struct {
	name   string
	closer io.Closer
}

// NewManager creates a resource lifecycle manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a resource to close at shutdown. Resources are closed in
// reverse registration order, so register dependencies before their users.
func (m *Manager) Register(name string, closer io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = append(m.handles, handle{name: name, closer: closer})
}

// RegisterFunc registers a cleanup function.
func (m *Manager) RegisterFunc(name string, fn func() error) {
	m.Register(name, closerFunc(fn))
}

// Close closes every registered resource in LIFO order. Every closer runs
// even when earlier ones fail; the joined error carries all failures. Calling
// Close more than once is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for i := len(m.handles) - 1; i >= 0; i-- {
		h := m.handles[i]
		if err := h.closer.Close(); err != nil {
			m.logger.Error().Err(err).Str("resource", h.name).Msg("Resource close failed")
			errs = append(errs, err)
			continue
		}
		m.logger.Debug().Str("resource", h.name).Msg("Resource closed")
	}

	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
