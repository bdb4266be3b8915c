// Package webhooks verifies Tripline webhook deliveries.
//
// A delivery carries X-Tripline-Signature ("sha256=" + hex HMAC-SHA256) and
// X-Tripline-Timestamp (unix seconds). The MAC covers timestamp + "." + body
// using the exact received bytes. Verify checks freshness in both directions
// (300s by default, 0 disables) and compares digests in constant time.
//
// Verify itself keeps no state. Consumers that need idempotency beyond the
// freshness window attach a replay ledger to Processor, keyed by event_id.
package webhooks
