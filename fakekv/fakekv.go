// Package fakekv is an in-memory implementation of the kv contract backed
// by a github.com/google/btree ordered tree, standing in for a real KV
// driver in tests rather than a network-backed one.
package fakekv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/dolthub/recordgraph/kv"
)

type entry struct {
	key   []byte
	value []byte
}

func (e *entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(*entry).key) < 0
}

// DB is a single in-memory keyspace guarded by one mutex; WithTransaction
// serializes callers the way a single-writer KV would, which is sufficient
// for exercising the engine's maintainers and scanners in tests.
type DB struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// New returns an empty in-memory database.
func New() *DB {
	return &DB{tree: btree.New(32)}
}

// WithTransaction implements kv.Database.
func (d *DB) WithTransaction(ctx context.Context, f func(ctx context.Context, txn kv.Transaction) (any, error)) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	txn := &Txn{db: d}
	return f(ctx, txn)
}

// Snapshot returns every key currently stored, for test assertions.
func (d *DB) Snapshot() map[string][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]byte)
	d.tree.Ascend(func(i btree.Item) bool {
		e := i.(*entry)
		out[string(e.key)] = append([]byte(nil), e.value...)
		return true
	})
	return out
}

// Txn is the fake transaction handed to maintainers and scanners.
type Txn struct {
	db *DB
}

func (t *Txn) Set(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	t.db.tree.ReplaceOrInsert(&entry{key: k, value: v})
}

func (t *Txn) Clear(key []byte) {
	t.db.tree.Delete(&entry{key: key})
}

func (t *Txn) ClearRange(begin, end []byte) {
	var toDelete []*entry
	t.db.tree.AscendRange(&entry{key: begin}, rangeEnd(end), func(i btree.Item) bool {
		toDelete = append(toDelete, i.(*entry))
		return true
	})
	for _, e := range toDelete {
		t.db.tree.Delete(e)
	}
}

func (t *Txn) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	item := t.db.tree.Get(&entry{key: key})
	if item == nil {
		return nil, false, nil
	}
	e := item.(*entry)
	return append([]byte(nil), e.value...), true, nil
}

func (t *Txn) GetRange(ctx context.Context, begin, end []byte, snapshot bool) (kv.Iterator, error) {
	var pairs []kv.KeyValue
	t.db.tree.AscendRange(&entry{key: begin}, rangeEnd(end), func(i btree.Item) bool {
		e := i.(*entry)
		pairs = append(pairs, kv.KeyValue{
			Key:   append([]byte(nil), e.key...),
			Value: append([]byte(nil), e.value...),
		})
		return true
	})
	return &sliceIterator{pairs: pairs}, nil
}

// rangeEnd returns a sentinel high enough to include everything when end
// is nil (no upper bound), matching ClearRange/GetRange's "through the end
// of the keyspace" semantics.
func rangeEnd(end []byte) btree.Item {
	if end == nil {
		return &entry{key: bytes.Repeat([]byte{0xff}, 256)}
	}
	return &entry{key: end}
}

type sliceIterator struct {
	pairs []kv.KeyValue
	pos   int
}

func (it *sliceIterator) Next(ctx context.Context) (kv.KeyValue, bool, error) {
	if err := ctx.Err(); err != nil {
		return kv.KeyValue{}, false, err
	}
	if it.pos >= len(it.pairs) {
		return kv.KeyValue{}, false, nil
	}
	kvp := it.pairs[it.pos]
	it.pos++
	return kvp, true, nil
}

func (it *sliceIterator) Close() {
	it.pos = len(it.pairs)
}
