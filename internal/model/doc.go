// Package model provides the canonical purchase-state types shared by every
// other package: transactions, products, renewal facts and the projected
// subscription status.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - A Transaction is never mutated after normalization
//   - Prices are decimals (apd), never floats
//   - Platform enum values this version does not know map to an explicit
//     "unknown" variant instead of failing
//   - Optional instants are pointers; absent offers are a nil *Offer, never ""
package model
