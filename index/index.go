// Package index defines the maintainer interface (component E): for each
// record write, a maintainer computes the index keys implied by the old
// and new record images and applies the diff inside the caller's
// transaction. Graph, spatial, and leaderboard maintainers (packages
// graph, spatial, leaderboard) each implement this interface over their
// own key layout.
package index

import (
	"context"

	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

// Kind tags which maintainer family a descriptor belongs to.
type Kind int

const (
	KindGraph Kind = iota
	KindSpatial
	KindLeaderboard
)

// Record is the minimal view a maintainer needs of a record image: its
// primary key and a way to read a named field's already-encoded tuple
// element. A nil Record represents "no image" (used for inserts with no
// old image, or deletes with no new image).
type Record interface {
	PK() val.Tuple
	Type() string
	Field(name string) (any, bool)
}

// Descriptor names an index, where its data lives, which maintainer kind
// owns it, which fields it extracts, and which record types it applies to.
type Descriptor struct {
	Name        string
	Subspace    subspace.Subspace
	Kind        Kind
	Fields      []string
	RecordTypes []string
}

// Maintainer is the capability set every index kind implements: compute
// and apply a diff for an update, perform an unconditional write for
// backfill, and (kind-specifically) scan.
type Maintainer interface {
	// UpdateIndex computes the diff between the key sets derived from
	// oldRecord and newRecord and issues the implied set/clear mutations.
	// Either argument may be nil. When both are present and produce an
	// identical key set, no KV I/O occurs.
	UpdateIndex(ctx context.Context, txn kv.Transaction, oldRecord, newRecord Record) error

	// ScanItem performs an unconditional write of the index keys implied
	// by record, used by bulk backfill when moving an index from
	// disabled to writeOnly.
	ScanItem(ctx context.Context, txn kv.Transaction, record Record) error
}

// StateAware is implemented by maintainers that enforce the index-state
// guards from component D before performing I/O.
type StateAware interface {
	States() *indexstate.Manager
}

// MapRecord is a trivial in-memory Record useful for tests and for small
// programs wiring the engine directly, backed by a plain field map.
type MapRecord struct {
	TypeName string
	Key      val.Tuple
	Fields   map[string]any
}

func (r MapRecord) PK() val.Tuple   { return r.Key }
func (r MapRecord) Type() string    { return r.TypeName }
func (r MapRecord) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}
