package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/quorum/pkg/adapters/memory"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func sampleResult(instanceID string, fields map[string]any) *domain.ExecutionResult {
	now := time.Now().UTC()
	return &domain.ExecutionResult{
		InstanceID:  instanceID,
		FlowID:      "expense",
		FlowVersion: "1",
		Status:      domain.StatusCompleted,
		FinalNodeID: "end",
		StartedAt:   now,
		FinishedAt:  now,
		Trace: []domain.TraceEntry{
			{NodeID: "start", NodeType: domain.NodeTypeStart, Timestamp: now},
			{NodeID: "end", NodeType: domain.NodeTypeEnd, Timestamp: now, ContextIn: fields},
		},
		Context: domain.NewExecutionContext(instanceID, "expense", fields),
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := sampleResult("run-1", map[string]any{"secret": "my-secret-sauce"})

	if err := secureStore.SaveTrace(ctx, original); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}

	// The underlying store only sees the envelope.
	stored, err := underlyingStore.LoadTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if val, ok := stored.Context.Fields["secret"]; ok {
		t.Fatalf("Expected secret to be hidden, found: %v", val)
	}
	if _, ok := stored.Context.Fields[middleware.EnvelopeField]; !ok {
		t.Fatal("Expected envelope field in context")
	}
	if len(stored.Trace) != 0 {
		t.Fatalf("Expected no trace in the envelope, got %d entries", len(stored.Trace))
	}
	if stored.Status != domain.StatusCompleted {
		t.Errorf("Expected status to stay visible, got %q", stored.Status)
	}

	loaded, err := secureStore.LoadTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadTrace via middleware failed: %v", err)
	}
	if loaded.Context.Fields["secret"] != "my-secret-sauce" {
		t.Errorf("Expected 'my-secret-sauce', got %v", loaded.Context.Fields["secret"])
	}
	if len(loaded.Trace) != 2 || loaded.FinalNodeID != "end" {
		t.Errorf("Expected the full result back, got %+v", loaded)
	}

	ids, err := secureStore.ListTraces(ctx)
	if err != nil || len(ids) != 1 {
		t.Errorf("Expected one listed trace, got %v (%v)", ids, err)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	ctx := context.Background()

	if err := secureStoreOld.SaveTrace(ctx, sampleResult("old", map[string]any{"data": "encrypted-with-old-key"})); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.LoadTrace(ctx, "old")
	if err != nil {
		t.Fatalf("LoadTrace with rotated key failed: %v", err)
	}
	if loaded.Context.Fields["data"] != "encrypted-with-old-key" {
		t.Errorf("Decryption with fallback key failed")
	}

	if err := secureStoreNew.SaveTrace(ctx, sampleResult("new", map[string]any{"data": "encrypted-with-new-key"})); err != nil {
		t.Fatalf("SaveTrace with new key failed: %v", err)
	}
	if _, err := secureStoreOld.LoadTrace(ctx, "new"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainTrace(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	if err := underlyingStore.SaveTrace(ctx, sampleResult("plain", map[string]any{"a": 1})); err != nil {
		t.Fatal(err)
	}

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.LoadTrace(ctx, "plain"); err == nil {
		t.Error("Expected an unencrypted trace to be rejected")
	}
	if _, err := secureStore.LoadTrace(ctx, "missing"); err != domain.ErrTraceNotFound {
		t.Errorf("Expected ErrTraceNotFound to pass through, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
