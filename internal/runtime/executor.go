package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ApproverField is the context field an approve node writes its approver to.
func ApproverField(nodeID string) string {
	return nodeID + ".approver"
}

// dispatch is the node executor: one handler per node variant.
type dispatch struct {
	ctx context.Context
	w   *walker

	next     string
	terminal bool
	in       map[string]any
}

var _ flow.Visitor = (*dispatch)(nil)

func (d *dispatch) VisitStart(n *flow.Node, _ flow.StartConfig) error {
	d.next = n.Next
	return nil
}

func (d *dispatch) VisitApprove(n *flow.Node, c flow.ApproveConfig) error {
	d.w.ectx.Fields[ApproverField(n.ID)] = c.Approver
	d.next = n.Next
	return nil
}

func (d *dispatch) VisitRiskEval(n *flow.Node, c flow.RiskEvalConfig) error {
	in := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		if v, ok := d.w.ectx.Lookup(f); ok {
			in[f] = v
		}
	}
	d.in = in

	a, err := d.w.engine.evaluate(d.ctx, d.w.ectx, n, c, in)
	if err != nil {
		return err
	}
	d.w.ectx.Risk = &a
	d.next = n.Next
	return nil
}

func (d *dispatch) VisitBranch(n *flow.Node, c flow.BranchConfig) error {
	target, in, err := Route(n, c, d.w.ectx)
	d.in = in
	if err != nil {
		return err
	}
	d.next = target
	return nil
}

func (d *dispatch) VisitMerge(n *flow.Node, c flow.MergeConfig) error {
	if err := d.w.fork(d.ctx, n, c); err != nil {
		return err
	}
	d.next = n.Next
	return nil
}

func (d *dispatch) VisitEnd(*flow.Node, flow.EndConfig) error {
	d.terminal = true
	return nil
}

// evaluate consults the oracle for a risk_eval node.
func (e *Engine) evaluate(ctx context.Context, ectx *domain.ExecutionContext, n *flow.Node, c flow.RiskEvalConfig, fields map[string]any) (domain.RiskAssessment, error) {
	if e.oracle == nil {
		return domain.RiskAssessment{}, &domain.RiskEvaluationError{NodeID: n.ID, Err: errors.New("no risk oracle configured")}
	}

	req := ports.RiskRequest{
		InstanceID: ectx.InstanceID,
		FlowID:     ectx.FlowID,
		NodeID:     n.ID,
		Provider:   c.Provider,
		Fields:     fields,
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.oracleTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.oracleTimeout)
	}
	defer cancel()

	callCtx, span := e.tracer.Start(callCtx, "quorum.oracle", trace.WithAttributes(
		attribute.String("quorum.node_id", n.ID),
		attribute.String("quorum.provider", c.Provider),
	))
	defer span.End()

	base := domain.EventBase{InstanceID: ectx.InstanceID, FlowID: ectx.FlowID}
	if e.hooks.OnOracleCall != nil {
		ev := &domain.OracleEvent{EventBase: base, NodeID: n.ID, Provider: c.Provider}
		ev.Type, ev.Timestamp = domain.EventOracleCall, e.now()
		e.hooks.OnOracleCall(ctx, ev)
	}

	started := e.now()
	a, err := e.oracle.Evaluate(callCtx, req)
	if err == nil && !a.Level.Valid() {
		err = fmt.Errorf("oracle returned unknown risk level %q", a.Level)
	}
	if err == nil && a.Provider == "" {
		a.Provider = c.Provider
	}

	if e.hooks.OnOracleReturn != nil {
		ev := &domain.OracleEvent{EventBase: base, NodeID: n.ID, Provider: c.Provider, Duration: e.now().Sub(started), Err: err}
		if err == nil {
			ev.Assessment = &a
		}
		ev.Type, ev.Timestamp = domain.EventOracleReturn, e.now()
		e.hooks.OnOracleReturn(ctx, ev)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle failed")
		if cerr := ctx.Err(); errors.Is(cerr, context.Canceled) {
			return domain.RiskAssessment{}, &domain.CancelledError{NodeID: n.ID, Err: cerr}
		}
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return domain.RiskAssessment{}, &domain.RiskEvaluationError{NodeID: n.ID, Timeout: timeout, Err: err}
	}

	span.SetAttributes(attribute.String("quorum.risk_level", string(a.Level)))
	if e.recorder != nil {
		rec := domain.AssessmentRecord{
			InstanceID: ectx.InstanceID,
			FlowID:     ectx.FlowID,
			NodeID:     n.ID,
			Assessment: a,
			RecordedAt: e.now(),
		}
		if rerr := e.recorder.RecordAssessment(ctx, rec); rerr != nil {
			e.logger.WarnContext(ctx, "failed to record assessment", "node_id", n.ID, "error", rerr)
		}
	}
	return a, nil
}
