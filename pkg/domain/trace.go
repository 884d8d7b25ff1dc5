package domain

import (
	"errors"
	"time"
)

// Status is the terminal state of a run.
// Running only exists while the engine walks; it is never persisted.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TraceEntry records one node visit.
type TraceEntry struct {
	NodeID    string    `json:"node_id"`
	NodeType  NodeType  `json:"node_type"`
	Timestamp time.Time `json:"timestamp"`

	// Path is the entry node id of the merge lane the visit happened in.
	// Empty for the main walk.
	Path string `json:"path,omitempty"`

	// ContextIn holds the fields the node read.
	ContextIn map[string]any `json:"context_in,omitempty"`

	// ContextOut holds what the node wrote. Nil on failure.
	ContextOut *ContextDelta `json:"context_out,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Failed reports whether the visit ended in an error.
func (e TraceEntry) Failed() bool {
	return e.ErrorKind != ""
}

// Failure is the serializable form of the error that terminated a run.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	NodeID  string    `json:"node_id,omitempty"`
	Message string    `json:"message"`
}

// ExecutionResult is the outcome of one run.
type ExecutionResult struct {
	InstanceID  string       `json:"instance_id"`
	FlowID      string       `json:"flow_id"`
	FlowVersion string       `json:"flow_version,omitempty"`
	Status      Status       `json:"status"`
	FinalNodeID string       `json:"final_node_id,omitempty"`
	Trace       []TraceEntry `json:"trace"`
	Error       *Failure     `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`

	// Context is the final context of the run.
	Context *ExecutionContext `json:"context,omitempty"`

	err error
}

// Fail marks the result as failed with err.
func (r *ExecutionResult) Fail(err error) {
	r.Status = StatusFailed
	r.FinalNodeID = ""
	r.err = err
	r.Error = &Failure{
		Kind:    KindOf(err),
		NodeID:  NodeOf(err),
		Message: err.Error(),
	}
}

// Err returns the typed error of a failed run. For a result decoded from a
// store the live error is gone; a generic error carrying the message is
// returned instead.
func (r *ExecutionResult) Err() error {
	if r.Status != StatusFailed {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	if r.Error != nil {
		return errors.New(r.Error.Message)
	}
	return errors.New("run failed")
}

// Visited returns the node ids of the trace in visit order.
func (r *ExecutionResult) Visited() []string {
	ids := make([]string, 0, len(r.Trace))
	for _, e := range r.Trace {
		ids = append(ids, e.NodeID)
	}
	return ids
}
