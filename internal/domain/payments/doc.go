// Package payments implements the payment reconciliation engine: it converts
// an unordered, append-only log of heterogeneous payment lifecycle events
// (card, pay-by-bank, direct debit, Bitcoin Lightning) into a consistent,
// idempotent view of what has happened to a payment request.
//
// The engine has two cooperating components:
//   - Attempt builder: groups raw events by correlation key into per-attempt
//     clusters and reduces each cluster into one PaymentAttempt aggregate
//   - Result aggregator: combines all attempts for a request into a single
//     PaymentResult with outstanding-amount and capped-partial utilities
//
// Key Aggregates:
//   - PaymentEvent: Immutable fact about a payment request's lifecycle
//   - PaymentAttempt: One reconstructed payment try, identified by its
//     correlation key
//   - PaymentResult: Whole-request aggregate, derived from the event log on
//     every request
//
// The computation is pure and synchronous: no I/O, no shared mutable state,
// and recomputing from the same event set always yields the same result
// regardless of input order. Unknown status codes are non-authorising,
// non-settling no-ops, so an unreconciled payment never appears as paid.
package payments
