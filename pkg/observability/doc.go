/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log records.

Both are plain domain.LifecycleHooks values and can be combined with
domain.Chain before being passed to quorum.WithLifecycleHooks.
*/
package observability
