package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunFinish    EventType = "run_finish"
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventOracleCall   EventType = "oracle_call"
	EventOracleReturn EventType = "oracle_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id"`
	FlowID     string    `json:"flow_id"`
}

// RunEvent marks the beginning or the end of a run.
type RunEvent struct {
	EventBase
	Status   Status        `json:"status,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
	Path     string   `json:"path,omitempty"`
	Err      error    `json:"-"`
}

// OracleEvent represents a risk oracle round trip.
type OracleEvent struct {
	EventBase
	NodeID     string          `json:"node_id"`
	Provider   string          `json:"provider,omitempty"`
	Assessment *RiskAssessment `json:"assessment,omitempty"`
	Duration   time.Duration   `json:"duration,omitempty"`
	Err        error           `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks fired from merge lanes run concurrently; implementations must be safe for that.
type LifecycleHooks struct {
	OnRunStart     func(context.Context, *RunEvent)
	OnRunFinish    func(context.Context, *RunEvent)
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnOracleCall   func(context.Context, *OracleEvent)
	OnOracleReturn func(context.Context, *OracleEvent)
}

// Chain combines several hook sets into one that calls each in order.
func Chain(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *RunEvent) {
			for _, h := range hooks {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnRunFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range hooks {
				if h.OnRunFinish != nil {
					h.OnRunFinish(ctx, e)
				}
			}
		},
		OnNodeEnter: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnOracleCall: func(ctx context.Context, e *OracleEvent) {
			for _, h := range hooks {
				if h.OnOracleCall != nil {
					h.OnOracleCall(ctx, e)
				}
			}
		},
		OnOracleReturn: func(ctx context.Context, e *OracleEvent) {
			for _, h := range hooks {
				if h.OnOracleReturn != nil {
					h.OnOracleReturn(ctx, e)
				}
			}
		},
	}
}
