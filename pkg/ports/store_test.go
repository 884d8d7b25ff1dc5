package ports_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// MockStore is a minimal TraceStore that round-trips through JSON like a real backend would.
type MockStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

func (m *MockStore) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	// Serialize to simulate persistence
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[result.InstanceID] = data
	return nil
}

func (m *MockStore) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	data, ok := m.data[instanceID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrTraceNotFound
	}
	var res domain.ExecutionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *MockStore) ListTraces(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestTraceStore_Contract(t *testing.T) {
	// The mock must satisfy the same suite the adapters run.
	ports.RunTraceStoreContract(t, NewMockStore())
}

func TestOracleFunc(t *testing.T) {
	var called bool
	oracle := ports.OracleFunc(func(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
		called = true
		return domain.RiskAssessment{Level: domain.RiskLow}, nil
	})

	got, err := oracle.Evaluate(context.Background(), ports.RiskRequest{NodeID: "risk"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !called || got.Level != domain.RiskLow {
		t.Errorf("unexpected result %+v (called=%v)", got, called)
	}
}
