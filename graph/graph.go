// Package graph implements the graph-index maintainer (component F) and
// its property-pushdown scanner (component G): edges are encoded under a
// chosen storage strategy (triple store, hexastore, or adjacency list),
// with an optional named-graph element and a small set of stored property
// fields persisted as the value bytes of every permutation entry.
package graph

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

// Strategy selects the storage layout described in the data model.
type Strategy int

const (
	TripleStore Strategy = iota
	Hexastore
	Adjacency
)

// component names one slot of the logical (subject, predicate, object)
// triple, used to describe a permutation's element order.
type component int

const (
	compS component = iota
	compP
	compO
)

// permutation is one numbered sub-subspace holding one ordering of
// (S, P, O).
type permutation struct {
	name  string
	num   int64
	order [3]component
}

func tripleStorePerms() []permutation {
	return []permutation{
		{"SPO", 2, [3]component{compS, compP, compO}},
		{"POS", 3, [3]component{compP, compO, compS}},
		{"OSP", 4, [3]component{compO, compS, compP}},
	}
}

func hexastorePerms() []permutation {
	return []permutation{
		{"SPO", 2, [3]component{compS, compP, compO}},
		{"POS", 3, [3]component{compP, compO, compS}},
		{"OSP", 4, [3]component{compO, compS, compP}},
		{"SOP", 5, [3]component{compS, compO, compP}},
		{"PSO", 6, [3]component{compP, compS, compO}},
		{"OPS", 7, [3]component{compO, compP, compS}},
	}
}

func adjacencyPerms() []permutation {
	return []permutation{
		{"out", 0, [3]component{compP, compS, compO}},
		{"in", 1, [3]component{compP, compO, compS}},
	}
}

func permsForStrategy(s Strategy) []permutation {
	switch s {
	case TripleStore:
		return tripleStorePerms()
	case Hexastore:
		return hexastorePerms()
	case Adjacency:
		return adjacencyPerms()
	default:
		return nil
	}
}

// Edge is the logical graph entity: a (from, predicate, to) triple,
// optionally tagged with a named graph, uniquely identified together with
// the owning record's primary key, and optionally carrying stored
// property values.
type Edge struct {
	From        any
	Predicate   any
	To          any
	Graph       any // nil means "no graph"
	HasGraph    bool
	PK          val.Tuple
	StoredProps map[string]any
}

func (e Edge) component(c component) any {
	switch c {
	case compS:
		return e.From
	case compP:
		return e.Predicate
	case compO:
		return e.To
	default:
		panic("unreachable component")
	}
}

// Maintainer is the graph-index maintainer for one index descriptor.
type Maintainer struct {
	IndexName    string
	Sub          subspace.Subspace
	Strategy     Strategy
	HasGraph     bool
	StoredFields []string // fixed at index creation, per the data model invariant
	States       *indexstate.Manager
	Log          *zap.Logger
}

// NewMaintainer constructs a graph-index maintainer. log may be nil.
func NewMaintainer(indexName string, sub subspace.Subspace, strategy Strategy, hasGraph bool, storedFields []string, states *indexstate.Manager, log *zap.Logger) *Maintainer {
	if log == nil {
		log = zap.NewNop()
	}
	fields := append([]string(nil), storedFields...)
	sort.Strings(fields) // deterministic value-byte layout across permutations
	return &Maintainer{
		IndexName:    indexName,
		Sub:          sub,
		Strategy:     strategy,
		HasGraph:     hasGraph,
		StoredFields: fields,
		States:       states,
		Log:          log,
	}
}

func (m *Maintainer) permSubspace(p permutation) (subspace.Subspace, error) {
	return m.Sub.Sub(p.num)
}

// edgeTuple builds the full key tuple for one permutation of e: the
// permutation's (S,P,O) order, the graph element if this index carries
// one, then the PK elements flattened onto the end.
func edgeTuple(p permutation, e Edge, hasGraph bool) val.Tuple {
	t := make(val.Tuple, 0, 3+2+len(e.PK))
	for _, c := range p.order {
		t = append(t, e.component(c))
	}
	if hasGraph {
		t = append(t, e.Graph)
	}
	t = append(t, e.PK...)
	return t
}

// valueBytes encodes the edge's stored property values as an ordered list
// of (fieldName, fieldValue) pairs, restricted to and ordered by
// m.StoredFields, omitting any field absent from e.StoredProps. The same
// bytes are written as the value of every permutation entry for e.
func (m *Maintainer) valueBytes(e Edge) ([]byte, error) {
	t := make(val.Tuple, 0, 2*len(m.StoredFields))
	for _, f := range m.StoredFields {
		if v, ok := e.StoredProps[f]; ok {
			t = append(t, f, v)
		}
	}
	return val.Pack(t)
}

// keyValues returns the (key, value) pair for every permutation entry of
// e under this index's current strategy.
func (m *Maintainer) keyValues(e Edge) (map[string][]byte, error) {
	perms := permsForStrategy(m.Strategy)
	value, err := m.valueBytes(e)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(perms))
	for _, p := range perms {
		sub, err := m.permSubspace(p)
		if err != nil {
			return nil, err
		}
		key, err := sub.Pack(edgeTuple(p, e, m.HasGraph))
		if err != nil {
			return nil, err
		}
		out[string(key)] = value
	}
	return out, nil
}

func edgeFromRecord(rec index.Record, hasGraph bool) (Edge, bool) {
	if rec == nil {
		return Edge{}, false
	}
	from, _ := rec.Field("from")
	pred, _ := rec.Field("predicate")
	to, _ := rec.Field("to")
	e := Edge{
		From:      from,
		Predicate: pred,
		To:        to,
		PK:        rec.PK(),
		HasGraph:  hasGraph,
	}
	if hasGraph {
		g, ok := rec.Field("graph")
		if ok {
			e.Graph = g
		}
	}
	e.StoredProps = make(map[string]any)
	return e, true
}

// UpdateIndex implements index.Maintainer.
func (m *Maintainer) UpdateIndex(ctx context.Context, txn kv.Transaction, oldRecord, newRecord index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}

	oldEdge, haveOld := edgeFromRecord(oldRecord, m.HasGraph)
	newEdge, haveNew := edgeFromRecord(newRecord, m.HasGraph)
	if err := m.fillStoredProps(&oldEdge, oldRecord, haveOld); err != nil {
		return err
	}
	if err := m.fillStoredProps(&newEdge, newRecord, haveNew); err != nil {
		return err
	}

	var oldKV, newKV map[string][]byte
	var err error
	if haveOld {
		oldKV, err = m.keyValues(oldEdge)
		if err != nil {
			return err
		}
	}
	if haveNew {
		newKV, err = m.keyValues(newEdge)
		if err != nil {
			return err
		}
	}

	if sameKeyValues(oldKV, newKV) {
		return nil
	}

	for k := range oldKV {
		if _, stillPresent := newKV[k]; !stillPresent {
			txn.Clear([]byte(k))
		}
	}
	for k, v := range newKV {
		if old, ok := oldKV[k]; !ok || string(old) != string(v) {
			txn.Set([]byte(k), v)
		}
	}
	m.Log.Debug("graph index updated",
		zap.String("index", m.IndexName),
		zap.Int("cleared", len(oldKV)-overlap(oldKV, newKV)),
		zap.Int("set", len(newKV)-overlap(oldKV, newKV)))
	return nil
}

func overlap(a, b map[string][]byte) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func sameKeyValues(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || string(v) != string(bv) {
			return false
		}
	}
	return true
}

func (m *Maintainer) fillStoredProps(e *Edge, rec index.Record, have bool) error {
	if !have {
		return nil
	}
	for _, f := range m.StoredFields {
		if v, ok := rec.Field(f); ok {
			e.StoredProps[f] = v
		}
	}
	return nil
}

// ScanItem implements index.Maintainer: an unconditional write of record's
// index keys, used by backfill.
func (m *Maintainer) ScanItem(ctx context.Context, txn kv.Transaction, record index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}
	e, ok := edgeFromRecord(record, m.HasGraph)
	if !ok {
		return nil
	}
	if err := m.fillStoredProps(&e, record, true); err != nil {
		return err
	}
	kvs, err := m.keyValues(e)
	if err != nil {
		return err
	}
	for k, v := range kvs {
		txn.Set([]byte(k), v)
	}
	return nil
}

func (m *Maintainer) requireWritable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireWritable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("graph maintainer %q: %w", m.IndexName, err)
	}
	return nil
}
