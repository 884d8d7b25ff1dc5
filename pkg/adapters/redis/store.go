package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/quorum/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "quorum:"

// farFuture is the index score of entries that never expire (2100-01-01).
const farFuture = 4102444800

// Store implements ports.TraceStore, ports.AssessmentRecorder and
// ports.FlowRepository on Redis.
//
// Traces are JSON strings indexed by a sorted set scored with their expiry,
// assessments are a list per instance plus a global list, and flows are
// hashes holding the raw document and its format.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for traces and assessment lists.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) traceKey(instanceID string) string { return s.prefix + "trace:" + instanceID }
func (s *Store) traceIndex() string                 { return s.prefix + "traces" }
func (s *Store) assessmentKey(instanceID string) string {
	return s.prefix + "assessments:" + instanceID
}
func (s *Store) assessmentLog() string { return s.prefix + "assessments" }

// SaveTrace persists the result and indexes it.
func (s *Store) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.traceKey(result.InstanceID), data, s.ttl)
	pipe.ZAdd(ctx, s.traceIndex(), backend.Z{Score: score, Member: result.InstanceID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save trace to redis: %w", err)
	}
	return nil
}

// LoadTrace retrieves a result.
func (s *Store) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	val, err := s.client.Get(ctx, s.traceKey(instanceID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get trace from redis: %w", err)
	}

	var res domain.ExecutionResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return &res, nil
}

// ListTraces prunes expired index entries, then returns the rest.
func (s *Store) ListTraces(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.traceIndex(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired traces: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.traceIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	return ids, nil
}

// RecordAssessment appends to the instance list and the global list.
func (s *Store) RecordAssessment(ctx context.Context, rec domain.AssessmentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.assessmentKey(rec.InstanceID), data)
	pipe.RPush(ctx, s.assessmentLog(), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.assessmentKey(rec.InstanceID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record assessment in redis: %w", err)
	}
	return nil
}

// ListAssessments reads one instance list, or the global list when instanceID is empty.
func (s *Store) ListAssessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error) {
	key := s.assessmentLog()
	if instanceID != "" {
		key = s.assessmentKey(instanceID)
	}
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	out := make([]domain.AssessmentRecord, 0, len(vals))
	for _, v := range vals {
		var rec domain.AssessmentRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
