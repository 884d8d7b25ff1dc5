/*
Package domain contains the core domain models of the Quorum approval engine.

It defines the values that flow through a run: node kinds, the per-run
ExecutionContext, risk assessments produced by the oracle, the append-only
Trace and the terminal ExecutionResult. It also owns the error taxonomy every
other package reports failures with. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - NodeType: The closed set of node variants (start, approve, risk_eval, branch, merge, end).
  - ExecutionContext: Business fields plus the optional risk assessment slot of one run.
  - ContextDelta: What a single node (or a merge lane) wrote to the context.
  - TraceEntry: One visited node, in visit order.
  - ExecutionResult: The terminal outcome of a run, with the full partial trace on failure.
*/
package domain
