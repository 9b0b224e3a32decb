// Package store provides SQLite-backed durable storage for the engine.
//
// The in-memory entitlement set never needs the store: it is rebuilt from
// the entitlement stream on every start. The store adds two things on top.
//
// # Journal
//
// An append-only log of normalized transactions, idempotent on
// (transaction_id, digest). Rows are read back ordered by seq, so a journal
// can be replayed into a fresh reconciler to audit that the reconciled state
// does not depend on arrival order.
//
// # Acknowledgement ledger
//
// A claim table with transaction_id as primary key. ClaimAck inserts with
// ON CONFLICT DO NOTHING and reports whether this caller won the claim,
// which keeps the external "finish transaction" call at most once per id
// across restarts.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
