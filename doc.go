/*
Package quorum executes approval flows: directed graphs of nodes that route a
request through risk assessment, branching and concurrent sign-off.

A flow is a JSON, YAML or HCL document. Loading it produces an immutable,
validated graph. Every run of the graph walks from the start node to an end
node against its own context and returns the full trace of the nodes it
visited, or a typed failure with the partial trace.

# Node types

  - start: entry point, exactly one per flow.
  - approve: records who signed off on the request.
  - risk_eval: asks a RiskOracle for a low, medium or high level.
  - branch: follows the first branch whose condition holds.
  - merge: runs several lanes concurrently and joins their writes.
  - end: terminal node.

# Usage

	eng := quorum.New(quorum.WithOracle(oracle.NewHeuristic()))

	g, err := flow.LoadFile("expense.yaml")
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Run(ctx, g, "", map[string]any{"amount": 12000})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Status, res.FinalNodeID)

Runs are persisted through a ports.TraceStore and an instance id is never
executed twice. The memory, file, redis and sqlite adapters under
pkg/adapters implement the storage ports; pkg/adapters/llm turns a chat
model into a RiskOracle.
*/
package quorum
