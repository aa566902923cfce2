package proppath

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/dolthub/recordgraph/errs"
)

// Pair is one (subject, object) binding produced by evaluating a path.
type Pair struct {
	Subject any
	Object  any
}

// Source is the narrow graph-scanning surface the executor needs. A
// concrete graph.Maintainer is adapted to this interface by the caller;
// keeping it this narrow lets the executor be tested against a trivial
// in-memory adjacency list as well as a real index.
type Source interface {
	// ScanByPredicate returns every (subject, object) pair connected by
	// exactly predicate, restricted to subject/object when non-nil.
	ScanByPredicate(ctx context.Context, predicate any, subject, object *any) ([]Pair, error)
	// ScanAllExcept returns every (subject, object) pair connected by any
	// predicate not in excluded, restricted to subject/object when
	// non-nil — the one-hop relation a negatedPropertySet denotes.
	ScanAllExcept(ctx context.Context, excluded map[any]bool, subject, object *any) ([]Pair, error)
	// AllNodes enumerates every node with at least one incident edge.
	// Only needed for zeroOrOne/zeroOrMore/oneOrMore evaluated with both
	// endpoints unbound.
	AllNodes(ctx context.Context) ([]any, error)
}

// Config bounds unconstrained transitive-quantifier evaluation.
type Config struct {
	// MaxDepth caps BFS expansion for zeroOrMore/oneOrMore; depth is
	// exceeded silently (the traversal simply stops, no error). Zero
	// means "use the default of 10".
	MaxDepth int
}

func (c Config) maxDepth() int {
	if c.MaxDepth <= 0 {
		return 10
	}
	return c.MaxDepth
}

// Evaluate evaluates path over source with the given endpoint bindings
// (nil means unbound) and returns the resulting (subject, object) pairs.
func Evaluate(ctx context.Context, source Source, path Node, subject, object *any, cfg Config) ([]Pair, error) {
	if path == nil {
		return nil, errs.Wrap(errs.ErrPath, "nil path")
	}
	switch v := path.(type) {
	case Iri:
		return source.ScanByPredicate(ctx, v.Predicate, subject, object)

	case NegatedPropertySet:
		excluded := make(map[any]bool, len(v.Predicates))
		for _, p := range v.Predicates {
			excluded[p] = true
		}
		return source.ScanAllExcept(ctx, excluded, subject, object)

	case Inverse:
		pairs, err := Evaluate(ctx, source, v.Inner, object, subject, cfg)
		if err != nil {
			return nil, err
		}
		return swapAll(pairs), nil

	case Sequence:
		left, err := Evaluate(ctx, source, v.Left, subject, nil, cfg)
		if err != nil {
			return nil, err
		}
		var out []Pair
		seen := make(map[pairKey]bool)
		for _, lp := range left {
			mid := lp.Object
			right, err := Evaluate(ctx, source, v.Right, &mid, object, cfg)
			if err != nil {
				return nil, err
			}
			for _, rp := range right {
				p := Pair{Subject: lp.Subject, Object: rp.Object}
				k := key(p)
				if !seen[k] {
					seen[k] = true
					out = append(out, p)
				}
			}
		}
		return out, nil

	case Alternative:
		left, err := Evaluate(ctx, source, v.Left, subject, object, cfg)
		if err != nil {
			return nil, err
		}
		right, err := Evaluate(ctx, source, v.Right, subject, object, cfg)
		if err != nil {
			return nil, err
		}
		return dedup(append(left, right...)), nil

	case ZeroOrOne:
		identity, err := identityPairs(ctx, source, subject, object)
		if err != nil {
			return nil, err
		}
		one, err := Evaluate(ctx, source, v.Inner, subject, object, cfg)
		if err != nil {
			return nil, err
		}
		return dedup(append(identity, one...)), nil

	case ZeroOrMore:
		return evalBFS(ctx, source, v.Inner, subject, object, cfg, true)

	case OneOrMore:
		return evalBFS(ctx, source, v.Inner, subject, object, cfg, false)

	default:
		return nil, errs.Wrap(errs.ErrPath, "unsupported path node")
	}
}

func swapAll(pairs []Pair) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{Subject: p.Object, Object: p.Subject}
	}
	return out
}

type pairKey uint64

func key(p Pair) pairKey {
	h := xxhash.New()
	writeAny(h, p.Subject)
	h.Write([]byte{0})
	writeAny(h, p.Object)
	return pairKey(h.Sum64())
}

func writeAny(h *xxhash.Digest, v any) {
	switch x := v.(type) {
	case string:
		h.Write([]byte(x))
	case []byte:
		h.Write(x)
	default:
		h.Write([]byte(toStringFallback(v)))
	}
}

func toStringFallback(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

func dedup(pairs []Pair) []Pair {
	seen := make(map[pairKey]bool, len(pairs))
	var out []Pair
	for _, p := range pairs {
		k := key(p)
		if !seen[k] {
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

func identityPairs(ctx context.Context, source Source, subject, object *any) ([]Pair, error) {
	switch {
	case subject != nil && object != nil:
		if equalAny(*subject, *object) {
			return []Pair{{Subject: *subject, Object: *object}}, nil
		}
		return nil, nil
	case subject != nil:
		return []Pair{{Subject: *subject, Object: *subject}}, nil
	case object != nil:
		return []Pair{{Subject: *object, Object: *object}}, nil
	default:
		nodes, err := source.AllNodes(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Pair, len(nodes))
		for i, n := range nodes {
			out[i] = Pair{Subject: n, Object: n}
		}
		return out, nil
	}
}

func equalAny(a, b any) bool { return key(Pair{Subject: a}) == key(Pair{Subject: b}) }
