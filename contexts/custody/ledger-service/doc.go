// Package ledgerservice contains the Warden custody ledger: the
// append-only, hash-chained audit trail every other module writes to.
//
// Events for a family form a singly linked hash chain. Appends are
// serialized per family through a conditional insert keyed on the
// expected chain position; integrity is checked by replaying the chain
// and recomputing every hash.
package ledgerservice
