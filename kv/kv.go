// Package kv defines the ordered key-value store contract the rest of the
// engine is built on (component A of the design: the KV driver itself,
// directory allocation's storage, and serialization of user field values
// are external collaborators, consumed only through these interfaces).
//
// The contract mirrors an ordered, transactional KV: byte-string keys in a
// total order, range scans that yield keys in sorted order, and a single
// atomic transaction per logical operation. Suspension happens only at the
// await points named in the design: opening a transaction, each range-scan
// batch, and commit.
package kv

import "context"

// KeyValue is one entry yielded by a range scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Iterator is an async, cancelable sequence of key-value pairs in sorted
// key order. The consumer drives iteration; cancellation of ctx (or of the
// enclosing transaction) stops further KV I/O after the in-flight batch.
type Iterator interface {
	// Next advances the iterator. It returns ok=false once the range is
	// exhausted, with err nil on clean exhaustion.
	Next(ctx context.Context) (kv KeyValue, ok bool, err error)
	// Close releases any resources held by the iterator. Safe to call
	// more than once and safe to call before exhausting the sequence.
	Close()
}

// Transaction exposes the mutations and reads available inside one atomic
// unit of work. All mutations issued against a Transaction become visible
// atomically to subsequent readers only once the enclosing WithTransaction
// call returns without error.
type Transaction interface {
	// Set writes key->value, overwriting any existing value.
	Set(key, value []byte)
	// Clear removes key, if present.
	Clear(key []byte)
	// ClearRange removes every key in [begin, end). A nil end means "no
	// upper bound" (clear through the end of the keyspace).
	ClearRange(begin, end []byte)
	// GetRange returns an iterator over [begin, end) in ascending key
	// order. snapshot requests a read that does not participate in this
	// transaction's conflict detection (the caller accepts it may race
	// with concurrent writers).
	GetRange(ctx context.Context, begin, end []byte, snapshot bool) (Iterator, error)
	// Get is a convenience single-key read; ok is false when absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)
}

// Database runs f inside a single atomic transaction, retrying internally
// on retryable KV errors per the store's own policy, and returns whatever
// f returns.
type Database interface {
	WithTransaction(ctx context.Context, f func(ctx context.Context, txn Transaction) (any, error)) (any, error)
}
