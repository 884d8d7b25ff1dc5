package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// Mask replaces the value of every masked field.
const Mask = "***"

type piiMiddleware struct {
	next     ports.TraceStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the
// patterns before they are stored: in the final context, and in what every
// trace entry read and wrote. The caller's result is left untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.TraceStore) ports.TraceStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	masked := *result
	if result.Context != nil {
		c := *result.Context
		c.Fields = m.maskedCopy(result.Context.Fields)
		masked.Context = &c
	}

	if result.Trace != nil {
		masked.Trace = make([]domain.TraceEntry, len(result.Trace))
		for i, e := range result.Trace {
			e.ContextIn = m.maskedCopy(e.ContextIn)
			if e.ContextOut != nil {
				d := *e.ContextOut
				d.Fields = m.maskedCopy(d.Fields)
				e.ContextOut = &d
			}
			masked.Trace[i] = e
		}
	}
	return m.next.SaveTrace(ctx, &masked)
}

func (m *piiMiddleware) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	return m.next.LoadTrace(ctx, instanceID)
}

func (m *piiMiddleware) ListTraces(ctx context.Context) ([]string, error) {
	return m.next.ListTraces(ctx)
}

// maskedCopy deep copies nested maps and masks matching keys at any depth.
func (m *piiMiddleware) maskedCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		if m.sensitive(k) {
			out[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = m.maskedCopy(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
