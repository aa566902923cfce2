// Package proppath implements the SPARQL property-path executor
// (component H): normalization of the path AST, a complexity estimate used
// for query planning, and evaluation over a graph index, including the
// origin-preserving breadth-first traversal required for transitive
// quantifiers over unbound endpoints.
package proppath

import "github.com/dolthub/recordgraph/errs"

// Node is one node of a property-path AST.
type Node interface {
	isNode()
}

// Iri matches exactly one predicate.
type Iri struct{ Predicate any }

// Inverse swaps the role of subject and object for Inner.
type Inverse struct{ Inner Node }

// Sequence evaluates Left then Right, with the intermediate node
// unprojected.
type Sequence struct{ Left, Right Node }

// Alternative evaluates Left and Right and unions the results.
type Alternative struct{ Left, Right Node }

// ZeroOrOne is the identity binding unioned with one evaluation of Inner.
type ZeroOrOne struct{ Inner Node }

// ZeroOrMore is the reflexive-transitive closure of Inner, emitting the
// start node at depth 0.
type ZeroOrMore struct{ Inner Node }

// OneOrMore is the transitive closure of Inner, suppressing the zero-hop
// emission.
type OneOrMore struct{ Inner Node }

// NegatedPropertySet matches any single edge whose predicate is not in
// Predicates.
type NegatedPropertySet struct{ Predicates []any }

func (Iri) isNode()                {}
func (Inverse) isNode()            {}
func (Sequence) isNode()           {}
func (Alternative) isNode()        {}
func (ZeroOrOne) isNode()          {}
func (ZeroOrMore) isNode()         {}
func (OneOrMore) isNode()          {}
func (NegatedPropertySet) isNode() {}

// Normalize pushes Inverse through structure and right-associates
// Alternative, per the component H contract. It is idempotent:
// Normalize(Normalize(p)) == Normalize(p).
func Normalize(n Node) (Node, error) {
	if n == nil {
		return nil, errs.Wrap(errs.ErrPath, "nil path node")
	}
	return normalize(n)
}

func normalize(n Node) (Node, error) {
	switch v := n.(type) {
	case Iri:
		return v, nil
	case NegatedPropertySet:
		return v, nil
	case Inverse:
		if v.Inner == nil {
			return nil, errs.Wrap(errs.ErrPath, "inverse of nil")
		}
		switch inner := v.Inner.(type) {
		case Inverse:
			// inverse(inverse(P)) = P
			return normalize(inner.Inner)
		case Sequence:
			// inverse(sequence(P,Q)) = sequence(inverse(Q), inverse(P))
			left, err := normalize(Inverse{Inner: inner.Right})
			if err != nil {
				return nil, err
			}
			right, err := normalize(Inverse{Inner: inner.Left})
			if err != nil {
				return nil, err
			}
			return normalize(Sequence{Left: left, Right: right})
		case Alternative:
			// inverse(alternative(P,Q)) = alternative(inverse(P), inverse(Q))
			left, err := normalize(Inverse{Inner: inner.Left})
			if err != nil {
				return nil, err
			}
			right, err := normalize(Inverse{Inner: inner.Right})
			if err != nil {
				return nil, err
			}
			return normalize(Alternative{Left: left, Right: right})
		default:
			inNorm, err := normalize(v.Inner)
			if err != nil {
				return nil, err
			}
			if _, same := inNorm.(Inverse); same {
				return normalize(Inverse{Inner: inNorm})
			}
			return Inverse{Inner: inNorm}, nil
		}
	case Sequence:
		left, err := normalize(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := normalize(v.Right)
		if err != nil {
			return nil, err
		}
		return Sequence{Left: left, Right: right}, nil
	case Alternative:
		left, err := normalize(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := normalize(v.Right)
		if err != nil {
			return nil, err
		}
		return rightAssociate(left, right), nil
	case ZeroOrOne:
		inner, err := normalize(v.Inner)
		if err != nil {
			return nil, err
		}
		return ZeroOrOne{Inner: inner}, nil
	case ZeroOrMore:
		inner, err := normalize(v.Inner)
		if err != nil {
			return nil, err
		}
		return ZeroOrMore{Inner: inner}, nil
	case OneOrMore:
		if v.Inner == nil {
			return nil, errs.Wrap(errs.ErrPath, "oneOrMore of nil inner path")
		}
		inner, err := normalize(v.Inner)
		if err != nil {
			return nil, err
		}
		return OneOrMore{Inner: inner}, nil
	default:
		return nil, errs.Wrap(errs.ErrPath, "unrecognized path node")
	}
}

// rightAssociate rewrites ((a|b)|c) into (a|(b|c)).
func rightAssociate(left, right Node) Node {
	if la, ok := left.(Alternative); ok {
		return rightAssociate(la.Left, rightAssociate(la.Right, right))
	}
	return Alternative{Left: left, Right: right}
}

// Complexity estimates query-planning cost per the component H formula.
func Complexity(n Node) int {
	switch v := n.(type) {
	case Iri:
		return 1
	case NegatedPropertySet:
		return 10
	case Inverse:
		return Complexity(v.Inner) + 1
	case Sequence:
		return Complexity(v.Left) + Complexity(v.Right)
	case Alternative:
		return Complexity(v.Left) + Complexity(v.Right)
	case ZeroOrOne:
		return Complexity(v.Inner) + 1
	case ZeroOrMore:
		return 100 * Complexity(v.Inner)
	case OneOrMore:
		return 100 * Complexity(v.Inner)
	default:
		return 0
	}
}
