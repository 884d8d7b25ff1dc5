package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager guarantees that an instance id runs at most once and that its
// trace is written exactly once. Local locks are reference counted so
// finished instances do not leak entries.
type Manager struct {
	store ports.TraceStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager over the given trace store.
func NewManager(store ports.TraceStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Execute runs fn for a fresh instance id and persists its result.
// It returns domain.ErrInstanceExists if a trace is already stored for the id.
// A failed run is still a result: the error return is reserved for
// bookkeeping failures (lock, lookup, save).
func (m *Manager) Execute(ctx context.Context, instanceID string, fn func(context.Context) *domain.ExecutionResult) (*domain.ExecutionResult, error) {
	var res *domain.ExecutionResult
	err := m.WithLock(ctx, instanceID, func(ctx context.Context) error {
		_, err := m.store.LoadTrace(ctx, instanceID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrInstanceExists, instanceID)
		}
		if !errors.Is(err, domain.ErrTraceNotFound) {
			return fmt.Errorf("failed to check instance existence: %w", err)
		}

		res = fn(ctx)

		// The run may have been cancelled; the trace is still written.
		if err := m.store.SaveTrace(context.WithoutCancel(ctx), res); err != nil {
			return fmt.Errorf("failed to save trace: %w", err)
		}
		return nil
	})
	return res, err
}

// Load retrieves the stored result of an instance.
func (m *Manager) Load(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	return m.store.LoadTrace(ctx, instanceID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.ListTraces(ctx)
}

// Store returns the underlying trace store.
func (m *Manager) Store() ports.TraceStore {
	return m.store
}

// WithLock executes a function while holding the lock for the instance.
func (m *Manager) WithLock(ctx context.Context, instanceID string, fn func(context.Context) error) error {
	entry := m.acquire(instanceID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(instanceID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, instanceID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"instance_id", instanceID,
					"error", err,
				)
			}
		}()
	}

	return fn(ctx)
}
