// Package file persists traces, assessment history and flow documents as
// plain files under one base directory:
//
//	<base>/traces/<instance>.json
//	<base>/assessments.jsonl
//	<base>/flows/<flow>@<version>.<json|yaml|hcl>
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/quorum/pkg/domain"
)

// Store implements ports.TraceStore, ports.AssessmentRecorder and
// ports.FlowRepository using the local filesystem.
type Store struct {
	BasePath string

	// appends to the assessment log are serialized within the process
	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".quorum".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".quorum"
	}
	return &Store{BasePath: basePath}
}

func (s *Store) tracesDir() string     { return filepath.Join(s.BasePath, "traces") }
func (s *Store) flowsDir() string      { return filepath.Join(s.BasePath, "flows") }
func (s *Store) assessmentLog() string { return filepath.Join(s.BasePath, "assessments.jsonl") }

// SaveTrace writes the result as indented JSON, atomically.
func (s *Store) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	if err := checkName(result.InstanceID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	return writeAtomic(s.tracesDir(), result.InstanceID+".json", data)
}

// LoadTrace reads a stored result.
func (s *Store) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	if err := checkName(instanceID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.tracesDir(), instanceID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}

	var res domain.ExecutionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return &res, nil
}

// ListTraces returns the ids of every stored trace.
func (s *Store) ListTraces(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.tracesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// RecordAssessment appends one JSON line to the assessment log.
func (s *Store) RecordAssessment(ctx context.Context, rec domain.AssessmentRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}
	f, err := os.OpenFile(s.assessmentLog(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open assessment log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append assessment: %w", err)
	}
	return nil
}

// ListAssessments reads the log back in append order.
func (s *Store) ListAssessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error) {
	data, err := os.ReadFile(s.assessmentLog())
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.AssessmentRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read assessment log: %w", err)
	}

	out := make([]domain.AssessmentRecord, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec domain.AssessmentRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt assessment log: %w", err)
		}
		if instanceID == "" || rec.InstanceID == instanceID {
			out = append(out, rec)
		}
	}
	return out, sc.Err()
}

func checkName(name string) error {
	if name == "" {
		return errors.New("id cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("id %q is not a valid file name", name)
	}
	return nil
}

// writeAtomic writes to a temporary file first, syncs via fsync, and then
// renames it to the destination. The temporary file lives in the same
// directory so the rename stays on one filesystem.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}
	destPath := filepath.Join(dir, name)

	tmpFile, err := os.CreateTemp(dir, "tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var flowExts = []string{".json", ".yaml", ".yml", ".hcl"}

func isFlowExt(ext string) bool {
	return slices.Contains(flowExts, ext)
}
