// Package reconcile implements the entitlement reconciler, the only writer of
// the EntitlementSet.
//
// ARCHITECTURE:
//
// Single-Writer State:
// Every mutation (Ingest, BulkLoad, ReplaceProducts) takes the write lock and
// completes without suspending. A query therefore never observes a
// half-applied transaction, even when the host calls in from many goroutines.
//
// Governance Rules:
//  1. All deliveries are kept in history, keyed by transaction id
//  2. Redelivery of an id merges: a revoked copy is never replaced by a
//     non-revoked one; other conflicts resolve by content digest
//  3. Upgraded transactions are recorded but never govern their product
//  4. Among the remaining transactions of a product, the newest by
//     (purchase date, id) is the last known transaction
//  5. The last known transaction governs only if it is not revoked
//
// Every rule is a function of the history set alone, so the final state is
// independent of arrival order.
package reconcile
