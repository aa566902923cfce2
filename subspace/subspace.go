// Package subspace implements namespaced prefix allocation for indexes
// (component C): a Directory resolves a logical path (record-type name,
// index name, permutation number, ...) to a byte-string prefix, and a
// Subspace packs/unpacks tuples relative to that prefix the way the
// teacher's content-addressed store partitions its keyspace by chunk kind.
package subspace

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/val"
)

// Subspace is a prefix within the keyspace, plus the tuple-codec
// operations relative to that prefix.
type Subspace struct {
	prefix []byte
}

// New wraps a raw prefix as a Subspace.
func New(prefix []byte) Subspace {
	return Subspace{prefix: append([]byte(nil), prefix...)}
}

// Bytes returns the subspace's raw prefix.
func (s Subspace) Bytes() []byte { return append([]byte(nil), s.prefix...) }

// Sub returns a child subspace whose prefix is this subspace's prefix
// followed by the packed encoding of elements.
func (s Subspace) Sub(elements ...any) (Subspace, error) {
	packed, err := val.Pack(val.Tuple(elements))
	if err != nil {
		return Subspace{}, err
	}
	return Subspace{prefix: append(append([]byte(nil), s.prefix...), packed...)}, nil
}

// Pack encodes t and prepends the subspace prefix, producing a full KV key.
func (s Subspace) Pack(t val.Tuple) ([]byte, error) {
	packed, err := val.Pack(t)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), s.prefix...), packed...), nil
}

// Unpack strips the subspace prefix from key and decodes the remainder.
// It returns an error if key does not begin with this subspace's prefix.
func (s Subspace) Unpack(key []byte) (val.Tuple, error) {
	if len(key) < len(s.prefix) || string(key[:len(s.prefix)]) != string(s.prefix) {
		return nil, errNotInSubspace
	}
	return val.Unpack(key[len(s.prefix):])
}

// Range returns the half-open range covering every key in this subspace.
func (s Subspace) Range() (begin, end []byte) {
	return val.Range(s.prefix)
}

// PrefixRange packs t and returns the half-open range covering every key
// in this subspace for which the packed encoding of t is a proper prefix
// — the building block every partially-bound index scan uses.
func (s Subspace) PrefixRange(t val.Tuple) (begin, end []byte, err error) {
	packed, err := s.Pack(t)
	if err != nil {
		return nil, nil, err
	}
	begin, end = val.Range(packed)
	return begin, end, nil
}

var errNotInSubspace = subspaceErr("key not in subspace")

type subspaceErr string

func (e subspaceErr) Error() string { return string(e) }

// Directory allocates stable prefixes for logical paths (slices of path
// segments) and caches the resolution so repeat lookups avoid a KV round
// trip. Allocation state itself lives in the KV under rootPrefix so it
// survives process restarts; the cache is purely a derived accelerator,
// never authoritative, matching the design's treatment of per-database
// caches.
type Directory struct {
	root  Subspace
	cache *lru.Cache[string, []byte]
	mu    sync.Mutex
}

// NewDirectory creates a directory layer rooted at rootPrefix, with an
// LRU cache of cacheSize resolved paths.
func NewDirectory(rootPrefix []byte, cacheSize int) (*Directory, error) {
	c, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Directory{root: New(rootPrefix), cache: c}, nil
}

func pathKey(path []string) string {
	var s string
	for i, p := range path {
		if i > 0 {
			s += "\x00"
		}
		s += p
	}
	return s
}

// Resolve returns the Subspace for path, allocating and persisting a new
// prefix on first use. Concurrent callers resolving the same new path
// serialize on the directory's mutex for the allocation itself; the
// transaction still owns visibility of the persisted mapping.
func (d *Directory) Resolve(ctx context.Context, txn kv.Transaction, path []string) (Subspace, error) {
	key := pathKey(path)
	if cached, ok := d.cache.Get(key); ok {
		return New(cached), nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check the cache under lock in case a racing resolver already
	// populated it while we waited.
	if cached, ok := d.cache.Get(key); ok {
		return New(cached), nil
	}

	mappingKey, err := d.root.Pack(val.Tuple{"path", key})
	if err != nil {
		return Subspace{}, err
	}
	if existing, ok, err := txn.Get(ctx, mappingKey); err != nil {
		return Subspace{}, err
	} else if ok {
		d.cache.Add(key, existing)
		return New(existing), nil
	}

	next, err := d.nextCounter(ctx, txn)
	if err != nil {
		return Subspace{}, err
	}
	allocated, err := val.Pack(val.Tuple{"idx", next})
	if err != nil {
		return Subspace{}, err
	}
	txn.Set(mappingKey, allocated)
	d.cache.Add(key, allocated)
	return New(allocated), nil
}

func (d *Directory) nextCounter(ctx context.Context, txn kv.Transaction) (int64, error) {
	counterKey, err := d.root.Pack(val.Tuple{"counter"})
	if err != nil {
		return 0, err
	}
	raw, ok, err := txn.Get(ctx, counterKey)
	if err != nil {
		return 0, err
	}
	var n int64
	if ok {
		t, err := val.Unpack(raw)
		if err != nil {
			return 0, err
		}
		n = t[0].(int64)
	}
	n++
	packed, err := val.Pack(val.Tuple{n})
	if err != nil {
		return 0, err
	}
	txn.Set(counterKey, packed)
	return n, nil
}

// Remove clears the path's allocation mapping and every key under its
// resolved subspace, and evicts it from the cache.
func (d *Directory) Remove(ctx context.Context, txn kv.Transaction, path []string) error {
	key := pathKey(path)
	sub, err := d.Resolve(ctx, txn, path)
	if err != nil {
		return err
	}
	begin, end := sub.Range()
	txn.ClearRange(begin, end)

	mappingKey, err := d.root.Pack(val.Tuple{"path", key})
	if err != nil {
		return err
	}
	txn.Clear(mappingKey)
	d.cache.Remove(key)
	return nil
}
