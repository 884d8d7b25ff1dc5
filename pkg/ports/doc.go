/*
Package ports defines the driven ports (interfaces) for the Quorum engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, flow sources and risk oracles.

# Key Interfaces

  - RiskOracle: The external risk-assessment capability consulted by risk_eval nodes.
  - TraceStore: Persists terminal ExecutionResults and serves them back by instance id.
  - GraphSource / GraphSink: Load and store flow documents by flow id and version.
  - AssessmentRecorder: Keeps the history of every oracle verdict.
  - DistributedLocker: Provides distributed locking so one instance id runs once across replicas.
*/
package ports
