package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTraceNotFound is returned when no trace exists for an instance ID.
var ErrTraceNotFound = errors.New("trace not found")

// ErrFlowNotFound is returned when a flow document cannot be found in a graph source.
var ErrFlowNotFound = errors.New("flow not found")

// ErrInstanceExists is returned when a run is requested for an instance ID that already has a trace.
var ErrInstanceExists = errors.New("instance already executed")

// ErrLockNotAcquired is returned when a distributed lock is held by someone else.
var ErrLockNotAcquired = errors.New("lock not acquired")

// ErrorKind classifies a failure. It is what gets persisted with a failed result.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindRiskEvaluation   ErrorKind = "risk_evaluation"
	KindUnroutableBranch ErrorKind = "unroutable_branch"
	KindCycleDetected    ErrorKind = "cycle_detected"
	KindMergeConflict    ErrorKind = "merge_conflict"
	KindMergeFailed      ErrorKind = "merge_failed"
	KindCancelled        ErrorKind = "cancelled"
	KindInternal         ErrorKind = "internal"
)

// Violation is a single broken graph invariant.
type Violation struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.NodeID == "" {
		return fmt.Sprintf("%s: %s", v.Code, v.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", v.Code, v.NodeID, v.Message)
}

// GraphValidationError is returned when a flow document violates one or more invariants.
// Load never produces a partial graph alongside it.
type GraphValidationError struct {
	FlowID     string
	Violations []Violation
}

func (e *GraphValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("invalid flow %q: %d violation(s): %s", e.FlowID, len(e.Violations), strings.Join(parts, "; "))
}

// Has reports whether a violation with the given code was collected.
func (e *GraphValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// NotFoundError is returned when a node id is not part of a graph.
type NotFoundError struct {
	NodeID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.NodeID)
}

// RiskEvaluationError is returned when the oracle times out, fails, or answers garbage.
type RiskEvaluationError struct {
	NodeID  string
	Timeout bool
	Err     error
}

func (e *RiskEvaluationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("risk evaluation at node %q timed out: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("risk evaluation at node %q failed: %v", e.NodeID, e.Err)
}

func (e *RiskEvaluationError) Unwrap() error { return e.Err }

// UnroutableBranchError is returned when no branch condition matched.
type UnroutableBranchError struct {
	NodeID     string
	Conditions []string
}

func (e *UnroutableBranchError) Error() string {
	return fmt.Sprintf("no branch of node %q matched (tried: %s)", e.NodeID, strings.Join(e.Conditions, ", "))
}

// CycleDetectedError is returned when a node is visited twice within one run.
type CycleDetectedError struct {
	NodeID string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("node %q visited twice in one run", e.NodeID)
}

// MergeConflictError is returned when two merge lanes wrote different values to the same field.
type MergeConflictError struct {
	NodeID string
	Field  string
	Paths  [2]string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge %q: paths %q and %q wrote conflicting values to %q", e.NodeID, e.Paths[0], e.Paths[1], e.Field)
}

// MergeFailedError is returned when a merge lane failed and the merge is not best-effort.
type MergeFailedError struct {
	NodeID string
	Path   string
	Err    error
}

func (e *MergeFailedError) Error() string {
	return fmt.Sprintf("merge %q: path %q failed: %v", e.NodeID, e.Path, e.Err)
}

func (e *MergeFailedError) Unwrap() error { return e.Err }

// CancelledError is returned when the caller cancelled the run and the engine observed it at a safe point.
type CancelledError struct {
	NodeID string
	Err    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before node %q: %v", e.NodeID, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// KindOf classifies err. The outermost recognised error wins, so a merge
// failure wrapping an oracle failure reports KindMergeFailed.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	switch err.(type) {
	case *GraphValidationError:
		return KindValidation
	case *NotFoundError:
		return KindNotFound
	case *RiskEvaluationError:
		return KindRiskEvaluation
	case *UnroutableBranchError:
		return KindUnroutableBranch
	case *CycleDetectedError:
		return KindCycleDetected
	case *MergeConflictError:
		return KindMergeConflict
	case *MergeFailedError:
		return KindMergeFailed
	case *CancelledError:
		return KindCancelled
	}
	if next := errors.Unwrap(err); next != nil {
		return KindOf(next)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	if errors.Is(err, ErrTraceNotFound) || errors.Is(err, ErrFlowNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// NodeOf extracts the failing node id from a taxonomy error, if any.
func NodeOf(err error) string {
	var (
		nf *NotFoundError
		re *RiskEvaluationError
		ub *UnroutableBranchError
		cd *CycleDetectedError
		mc *MergeConflictError
		mf *MergeFailedError
		ce *CancelledError
	)
	switch {
	case errors.As(err, &mf):
		return mf.NodeID
	case errors.As(err, &mc):
		return mc.NodeID
	case errors.As(err, &re):
		return re.NodeID
	case errors.As(err, &ub):
		return ub.NodeID
	case errors.As(err, &cd):
		return cd.NodeID
	case errors.As(err, &ce):
		return ce.NodeID
	case errors.As(err, &nf):
		return nf.NodeID
	}
	return ""
}
