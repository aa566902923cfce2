// Package indexstate implements the per-index lifecycle state machine
// (component D): disabled -> writeOnly -> readable, with transition
// guards enforcing that reads only ever touch a readable index and writes
// only ever touch an index that is at least writeOnly.
package indexstate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dolthub/recordgraph/errs"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

// State is one of the three lifecycle states an index can be in.
type State int

const (
	Disabled State = iota
	WriteOnly
	Readable
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case WriteOnly:
		return "writeOnly"
	case Readable:
		return "readable"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Manager persists and mutates lifecycle state for every index name under
// a subspace, one sub-subspace entry per name, as named in the design's
// persisted-state layout.
type Manager struct {
	sub Subspace
	log *zap.Logger
}

// Subspace is an alias of subspace.Subspace, so callers pass a
// subspace.Subspace directly.
type Subspace = subspace.Subspace

// NewManager creates a state manager rooted at sub. log may be nil, in
// which case a no-op logger is used.
func NewManager(sub Subspace, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{sub: sub, log: log}
}

func (m *Manager) key(indexName string) ([]byte, error) {
	return m.sub.Pack(val.Tuple{indexName})
}

// Get returns the current state of indexName. A name with no persisted
// entry is Disabled: the design specifies that a schema change introducing
// a new index begins in the disabled state.
func (m *Manager) Get(ctx context.Context, txn kv.Transaction, indexName string) (State, error) {
	key, err := m.key(indexName)
	if err != nil {
		return Disabled, err
	}
	raw, ok, err := txn.Get(ctx, key)
	if err != nil {
		return Disabled, err
	}
	if !ok {
		return Disabled, nil
	}
	if len(raw) != 1 {
		return Disabled, errs.Wrap(errs.ErrIndexState, "corrupt state record")
	}
	return State(raw[0]), nil
}

func (m *Manager) set(ctx context.Context, txn kv.Transaction, indexName string, s State) error {
	key, err := m.key(indexName)
	if err != nil {
		return err
	}
	txn.Set(key, []byte{byte(s)})
	return nil
}

// Enable transitions disabled -> writeOnly. Any other current state fails
// with ErrInvalidTransition.
func (m *Manager) Enable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := m.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	if cur != Disabled {
		m.log.Warn("invalid index transition",
			zap.String("index", indexName), zap.String("from", cur.String()), zap.String("to", WriteOnly.String()))
		return errs.Wrap(errs.ErrInvalidTransition, fmt.Sprintf("enable: index %q is %s, not disabled", indexName, cur))
	}
	if err := m.set(ctx, txn, indexName, WriteOnly); err != nil {
		return err
	}
	m.log.Info("index enabled", zap.String("index", indexName))
	return nil
}

// MakeReadable transitions writeOnly -> readable, and is idempotent when
// already readable.
func (m *Manager) MakeReadable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := m.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	if cur == Readable {
		return nil
	}
	if cur != WriteOnly {
		m.log.Warn("invalid index transition",
			zap.String("index", indexName), zap.String("from", cur.String()), zap.String("to", Readable.String()))
		return errs.Wrap(errs.ErrInvalidTransition, fmt.Sprintf("makeReadable: index %q is %s, not writeOnly", indexName, cur))
	}
	if err := m.set(ctx, txn, indexName, Readable); err != nil {
		return err
	}
	m.log.Info("index made readable", zap.String("index", indexName))
	return nil
}

// RequireReadable returns ErrIndexState unless indexName is Readable.
func (m *Manager) RequireReadable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := m.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	if cur != Readable {
		return errs.Wrap(errs.ErrIndexState, fmt.Sprintf("index %q is %s, not readable", indexName, cur))
	}
	return nil
}

// RequireWritable returns ErrIndexState unless indexName is WriteOnly or
// Readable.
func (m *Manager) RequireWritable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := m.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	if cur == Disabled {
		return errs.Wrap(errs.ErrIndexState, fmt.Sprintf("index %q is disabled", indexName))
	}
	return nil
}
