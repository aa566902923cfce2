package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dolthub/recordgraph/errs"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

// Bound is one optionally-bound query field. Unbound (the zero value) means
// "no constraint on this field".
type Bound struct {
	Set   bool
	Value any
}

// BindValue returns a Bound carrying value.
func BindValue(value any) Bound { return Bound{Set: true, Value: value} }

// Pattern is the set of bindings a scan request supplies on (from,
// predicate, to, graph); any subset may be bound.
type Pattern struct {
	From      Bound
	Predicate Bound
	To        Bound
	Graph     Bound
}

func (p Pattern) bound(c component) Bound {
	switch c {
	case compS:
		return p.From
	case compP:
		return p.Predicate
	case compO:
		return p.To
	default:
		return Bound{}
	}
}

// Op is a stored-property filter operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpContains
	OpIsNil
	OpIsNotNil
	OpRegex
)

// PropertyFilter is a single predicate over one stored (or non-stored)
// field, as supplied by the caller of ScanEdges.
type PropertyFilter struct {
	Field string
	Op    Op
	Value any
}

// Result is one decoded edge from a scan, with its property values.
type Result struct {
	From, Predicate, To any
	Graph               any
	HasGraph            bool
	PK                  val.Tuple
	StoredProps         map[string]any
}

// choosePermutation selects the permutation whose prefix is the longest
// bound prefix of pattern, per the scan-selection rule: ties broken
// lexicographically on permutation name, and adjacency constrained to
// "out" when From is bound, "in" when To is bound (and From is not), with
// "out" as the deterministic default otherwise.
func (m *Maintainer) choosePermutation(pattern Pattern) permutation {
	perms := permsForStrategy(m.Strategy)

	if m.Strategy == Adjacency {
		for _, p := range perms {
			if pattern.From.Set && p.name == "out" {
				return p
			}
		}
		for _, p := range perms {
			if pattern.To.Set && !pattern.From.Set && p.name == "in" {
				return p
			}
		}
		for _, p := range perms {
			if p.name == "out" {
				return p
			}
		}
	}

	best := perms[0]
	bestLen := boundPrefixLen(best, pattern, m.HasGraph)
	for _, p := range perms[1:] {
		l := boundPrefixLen(p, pattern, m.HasGraph)
		if l > bestLen || (l == bestLen && p.name < best.name) {
			best, bestLen = p, l
		}
	}
	return best
}

func boundPrefixLen(p permutation, pattern Pattern, hasGraph bool) int {
	n := 0
	for _, c := range p.order {
		if !pattern.bound(c).Set {
			return n
		}
		n++
	}
	if hasGraph && pattern.Graph.Set {
		n++
	}
	return n
}

// prefixTuple builds the leading contiguous bound elements of p's order
// (plus the graph slot, if bound and present) as a val.Tuple suitable for
// Subspace.PrefixRange.
func prefixTuple(p permutation, pattern Pattern, hasGraph bool) val.Tuple {
	var t val.Tuple
	for _, c := range p.order {
		b := pattern.bound(c)
		if !b.Set {
			return t
		}
		t = append(t, b.Value)
	}
	if hasGraph && pattern.Graph.Set {
		t = append(t, pattern.Graph.Value)
	}
	return t
}

// Iterator lazily yields scan results, applying pushdown filters as it
// goes. Cancellation of ctx stops further KV I/O after the in-flight
// batch, matching the engine's suspension-point contract.
type Iterator struct {
	inner        kv.Iterator
	perm         permutation
	hasGraph     bool
	sub          subspace.Subspace
	pushedDown   []PropertyFilter
	storedFields map[string]bool
}

// ScanEdges implements component G/F's scan contract: it range-scans the
// permutation chosen for pattern, decodes stored properties, applies
// filters whose field is stored during iteration, and returns the
// remaining filters for the caller to evaluate post-scan.
func (m *Maintainer) ScanEdges(ctx context.Context, txn kv.Transaction, pattern Pattern, filters []PropertyFilter) (*Iterator, []PropertyFilter, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, nil, err
	}

	perm := m.choosePermutation(pattern)
	permSub, err := m.permSubspace(perm)
	if err != nil {
		return nil, nil, err
	}

	stored := make(map[string]bool, len(m.StoredFields))
	for _, f := range m.StoredFields {
		stored[f] = true
	}

	var pushed, deferred []PropertyFilter
	for _, f := range filters {
		if stored[f.Field] {
			pushed = append(pushed, f)
		} else {
			deferred = append(deferred, f)
		}
	}

	prefix := prefixTuple(perm, pattern, m.HasGraph)
	begin, end, err := permSub.PrefixRange(prefix)
	if err != nil {
		return nil, nil, err
	}
	inner, err := txn.GetRange(ctx, begin, end, false)
	if err != nil {
		return nil, nil, err
	}

	return &Iterator{
		inner:        inner,
		perm:         perm,
		hasGraph:     m.HasGraph,
		sub:          permSub,
		pushedDown:   pushed,
		storedFields: stored,
	}, deferred, nil
}

func (m *Maintainer) requireReadable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireReadable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("graph scanner %q: %w", m.IndexName, err)
	}
	return nil
}

// Next advances the iterator, applying pushed-down filters and skipping
// non-matching entries, until it yields the next matching Result or
// exhausts the underlying range.
func (it *Iterator) Next(ctx context.Context) (Result, bool, error) {
	for {
		kvp, ok, err := it.inner.Next(ctx)
		if err != nil || !ok {
			return Result{}, false, err
		}
		tup, err := it.sub.Unpack(kvp.Key)
		if err != nil {
			return Result{}, false, err
		}
		res := decodeResult(it.perm, it.hasGraph, tup)

		props, err := decodeValue(kvp.Value)
		if err != nil {
			return Result{}, false, err
		}
		res.StoredProps = props

		match, err := matchesAll(it.pushedDown, res.StoredProps)
		if err != nil {
			return Result{}, false, err
		}
		if !match {
			continue
		}
		return res, true, nil
	}
}

// Close releases the underlying KV iterator.
func (it *Iterator) Close() { it.inner.Close() }

func decodeResult(p permutation, hasGraph bool, tup val.Tuple) Result {
	var res Result
	i := 0
	for _, c := range p.order {
		switch c {
		case compS:
			res.From = tup[i]
		case compP:
			res.Predicate = tup[i]
		case compO:
			res.To = tup[i]
		}
		i++
	}
	if hasGraph {
		res.Graph = tup[i]
		res.HasGraph = true
		i++
	}
	res.PK = append(val.Tuple(nil), tup[i:]...)
	return res
}

func decodeValue(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	t, err := val.Unpack(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(t)/2)
	for i := 0; i+1 < len(t); i += 2 {
		name, ok := t[i].(string)
		if !ok {
			return nil, errs.Wrap(errs.ErrCodec, "stored property name must be a string")
		}
		out[name] = t[i+1]
	}
	return out, nil
}

func matchesAll(filters []PropertyFilter, props map[string]any) (bool, error) {
	for _, f := range filters {
		ok, err := matches(f, props)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matches evaluates one PropertyFilter. Null semantics: IsNil matches only
// when the field is absent from props (omitted at write time); IsNotNil
// matches whenever it is present, including the empty-string/zero-length
// case. Equality with the empty string matches only the present-and-empty
// case, never the absent case.
func matches(f PropertyFilter, props map[string]any) (bool, error) {
	v, present := props[f.Field]

	switch f.Op {
	case OpIsNil:
		return !present, nil
	case OpIsNotNil:
		return present, nil
	}

	if !present {
		return false, nil
	}

	switch f.Op {
	case OpEq:
		return compareEqual(v, f.Value), nil
	case OpNe:
		return !compareEqual(v, f.Value), nil
	case OpLt, OpLe, OpGt, OpGe:
		cmp, ok := compareOrdered(v, f.Value)
		if !ok {
			return false, fmt.Errorf("property filter: %v and %v are not comparable", v, f.Value)
		}
		switch f.Op {
		case OpLt:
			return cmp < 0, nil
		case OpLe:
			return cmp <= 0, nil
		case OpGt:
			return cmp > 0, nil
		case OpGe:
			return cmp >= 0, nil
		}
	case OpContains:
		s, ok1 := v.(string)
		sub, ok2 := f.Value.(string)
		if ok1 && ok2 {
			return strings.Contains(s, sub), nil
		}
		return false, fmt.Errorf("property filter: contains requires string operands")
	case OpRegex:
		s, ok1 := v.(string)
		pat, ok2 := f.Value.(string)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("property filter: regex requires string operands")
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	}
	return false, fmt.Errorf("property filter: unsupported operator")
}

func compareEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	default:
		return a == b
	}
}

func compareOrdered(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	default:
		return 0, false
	}
}
