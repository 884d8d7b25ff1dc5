package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/quorum/pkg/adapters/memory"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed(id string) func(context.Context) *domain.ExecutionResult {
	return func(context.Context) *domain.ExecutionResult {
		return &domain.ExecutionResult{InstanceID: id, Status: domain.StatusCompleted, FinalNodeID: "end"}
	}
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 2000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("inst-%d", i)
		_, err := mgr.Execute(ctx, id, completed(id))
		require.NoError(t, err)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory", n)
	}
}

func TestManager_RejectsDuplicateInstance(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	_, err := mgr.Execute(ctx, "dup", completed("dup"))
	require.NoError(t, err)

	var ran bool
	_, err = mgr.Execute(ctx, "dup", func(context.Context) *domain.ExecutionResult {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrInstanceExists)
	assert.False(t, ran)
}

func TestManager_ConcurrentSameID(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var runs atomic.Int32
	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Execute(ctx, "race", func(ctx context.Context) *domain.ExecutionResult {
				runs.Add(1)
				return completed("race")(ctx)
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	var rejected int
	for _, err := range errs {
		if errors.Is(err, domain.ErrInstanceExists) {
			rejected++
		}
	}
	assert.Equal(t, len(errs)-1, rejected)
}

func TestManager_SavesCancelledRun(t *testing.T) {
	store := memory.NewStore()
	mgr := NewManager(store)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := mgr.Execute(ctx, "c", func(ctx context.Context) *domain.ExecutionResult {
		cancel()
		res := &domain.ExecutionResult{InstanceID: "c"}
		res.Fail(&domain.CancelledError{NodeID: "start", Err: ctx.Err()})
		return res
	})
	require.NoError(t, err)

	loaded, err := store.LoadTrace(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, domain.KindCancelled, loaded.Error.Kind)
}

type countingLocker struct {
	locks, unlocks atomic.Int32
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := NewManager(memory.NewStore(), WithLocker(locker), WithLockTTL(time.Second))

	_, err := mgr.Execute(context.Background(), "d", completed("d"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), locker.locks.Load())
	assert.Equal(t, int32(1), locker.unlocks.Load())
}
