package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
)

func (s *Store) flowKey(flowID, version string) string {
	return s.prefix + "flow:" + flowID + "@" + version
}

func (s *Store) flowIndex() string { return s.prefix + "flows" }

// SaveGraph stores the document in a hash. Flows never expire.
func (s *Store) SaveGraph(ctx context.Context, flowID, version string, data []byte, format flow.Format) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.flowKey(flowID, version), "format", string(format), "data", data)
	pipe.SAdd(ctx, s.flowIndex(), flowID+"@"+version)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save flow to redis: %w", err)
	}
	return nil
}

// LoadGraph reads a stored document.
func (s *Store) LoadGraph(ctx context.Context, flowID, version string) ([]byte, flow.Format, error) {
	vals, err := s.client.HGetAll(ctx, s.flowKey(flowID, version)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get flow from redis: %w", err)
	}
	data, ok := vals["data"]
	if !ok {
		return nil, "", domain.ErrFlowNotFound
	}
	return []byte(data), flow.Format(vals["format"]), nil
}

// ListFlows returns every stored ref.
func (s *Store) ListFlows(ctx context.Context) ([]ports.FlowRef, error) {
	members, err := s.client.SMembers(ctx, s.flowIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	refs := make([]ports.FlowRef, 0, len(members))
	for _, m := range members {
		at := strings.LastIndex(m, "@")
		if at < 0 {
			continue
		}
		refs = append(refs, ports.FlowRef{FlowID: m[:at], Version: m[at+1:]})
	}
	return refs, nil
}
