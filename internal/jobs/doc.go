// Package jobs is a small in-process background job runner: a registry of
// task definitions, pluggable queues (memory or Redis), per-queue worker
// pools with retries, batch fan-out with ordered waits, and a single
// goroutine that aggregates onboarding progress events.
package jobs
