/*
Package instance coordinates runs per instance id.

It serializes work on the same id inside the process with reference-counted
locks and, when a ports.DistributedLocker is configured, across replicas. An
id that already has a stored trace is never executed again.
*/
package instance
