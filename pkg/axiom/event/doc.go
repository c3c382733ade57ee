// Package event implements the AXIOM in-process event bus.
//
// The bus provides typed publish/subscribe with a closed event-type
// registry, a publisher allow-list, a bounded delivery queue, a fixed
// worker pool, per-delivery retry bookkeeping, and a dead-letter queue
// with periodic best-effort reprocessing.
//
// Delivery is at-least-once: handlers must be idempotent. Publish-time
// validation errors are synchronous; handler failures are retried and
// never propagate back to the publisher.
package event
