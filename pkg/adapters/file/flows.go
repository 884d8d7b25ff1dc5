package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
)

func flowBase(flowID, version string) string {
	return flowID + "@" + version
}

// SaveGraph writes the document with the extension of its format. Copies of
// the same ref stored in another format are removed.
func (s *Store) SaveGraph(ctx context.Context, flowID, version string, data []byte, format flow.Format) error {
	if err := checkName(flowID); err != nil {
		return err
	}
	if err := checkName(version); err != nil {
		return err
	}
	base := flowBase(flowID, version)
	ext := "." + string(format)
	if err := writeAtomic(s.flowsDir(), base+ext, data); err != nil {
		return err
	}
	for _, other := range flowExts {
		if other == ext {
			continue
		}
		path := filepath.Join(s.flowsDir(), base+other)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale flow file: %w", err)
		}
	}
	return nil
}

// LoadGraph reads a flow document, whatever format it was saved in.
func (s *Store) LoadGraph(ctx context.Context, flowID, version string) ([]byte, flow.Format, error) {
	if err := checkName(flowID); err != nil {
		return nil, "", err
	}
	if err := checkName(version); err != nil {
		return nil, "", err
	}
	base := flowBase(flowID, version)
	for _, ext := range flowExts {
		path := filepath.Join(s.flowsDir(), base+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, flow.FormatFromPath(path), nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read flow file: %w", err)
		}
	}
	return nil, "", domain.ErrFlowNotFound
}

// ListFlows scans the flows directory.
func (s *Store) ListFlows(ctx context.Context) ([]ports.FlowRef, error) {
	entries, err := os.ReadDir(s.flowsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []ports.FlowRef{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	var refs []ports.FlowRef
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || !isFlowExt(ext) || strings.HasPrefix(name, "tmp-") {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		at := strings.LastIndex(base, "@")
		if at <= 0 {
			continue
		}
		refs = append(refs, ports.FlowRef{FlowID: base[:at], Version: base[at+1:]})
	}
	return refs, nil
}
