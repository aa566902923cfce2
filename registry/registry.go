// Package registry glues record types to the index descriptors and
// maintainers that apply to them, the core-side half of the record schema
// contract described in the engine's external-interfaces section (the
// other half — reading a named field's ordered-element encoding off a
// user-typed record — is owned by the host application's codegen, which
// is why index.Record is the narrow interface this package depends on).
package registry

import (
	"context"
	"fmt"

	"github.com/dolthub/recordgraph/errs"
	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/kv"
)

type entry struct {
	descriptor index.Descriptor
	maintainer index.Maintainer
}

// Registry maps record type name -> its registered indexes.
type Registry struct {
	byType map[string][]entry
	byName map[string]entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byType: make(map[string][]entry),
		byName: make(map[string]entry),
	}
}

// Register adds an index descriptor and its maintainer, applying it to
// every record type named on the descriptor.
func (r *Registry) Register(desc index.Descriptor, m index.Maintainer) {
	e := entry{descriptor: desc, maintainer: m}
	r.byName[desc.Name] = e
	for _, rt := range desc.RecordTypes {
		r.byType[rt] = append(r.byType[rt], e)
	}
}

// Maintainer returns the maintainer registered under indexName, or
// ErrIndexNotFound.
func (r *Registry) Maintainer(indexName string) (index.Maintainer, error) {
	e, ok := r.byName[indexName]
	if !ok {
		return nil, errs.Wrap(errs.ErrIndexNotFound, indexName)
	}
	return e.maintainer, nil
}

// Descriptor returns the descriptor registered under indexName, or
// ErrIndexNotFound.
func (r *Registry) Descriptor(indexName string) (index.Descriptor, error) {
	e, ok := r.byName[indexName]
	if !ok {
		return index.Descriptor{}, errs.Wrap(errs.ErrIndexNotFound, indexName)
	}
	return e.descriptor, nil
}

// OnWrite drives every maintainer registered for the record type of
// oldRecord/newRecord (whichever is non-nil; they must agree on type if
// both are present) inside the caller's transaction, matching the
// control-flow contract: one write sweeps every applicable maintainer
// atomically.
func (r *Registry) OnWrite(ctx context.Context, txn kv.Transaction, oldRecord, newRecord index.Record) error {
	var typeName string
	switch {
	case newRecord != nil:
		typeName = newRecord.Type()
	case oldRecord != nil:
		typeName = oldRecord.Type()
	default:
		return nil
	}
	if oldRecord != nil && newRecord != nil && oldRecord.Type() != newRecord.Type() {
		return fmt.Errorf("registry: old and new record images disagree on type (%q vs %q)", oldRecord.Type(), newRecord.Type())
	}
	for _, e := range r.byType[typeName] {
		if err := e.maintainer.UpdateIndex(ctx, txn, oldRecord, newRecord); err != nil {
			return fmt.Errorf("maintaining index %q: %w", e.descriptor.Name, err)
		}
	}
	return nil
}
