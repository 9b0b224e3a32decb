// Package harness runs reconciliation scenarios against a real service.
//
// A scenario feeds stream deliveries, restores, renewal facts and clock
// moves through the same pipeline the update listener uses, then checks the
// resulting entitlement state. Every scenario runs against a fresh service
// and a fresh in-memory journal, so scenarios are independent and their
// outcomes deterministic.
//
// # Scenario Format
//
//	name: refund_revokes
//	description: "A refund redelivery revokes the purchase"
//	now: 2000
//	steps:
//	  - deliver:
//	      verified: true
//	      transaction: { transactionId: "1", productId: com.app.pro, purchaseDate: 1000 }
//	  - clock: 3000
//	assertions:
//	  - type: purchased
//	    product: com.app.pro
//	    expect: true
//
// # Golden Files
//
// RunWithGolden snapshots the trace and the final entitlement set as
// canonical JSON under testdata/golden. Because canonical JSON sorts keys
// and forbids whitespace, equal outcomes always produce identical bytes.
package harness
