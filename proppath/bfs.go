package proppath

import "context"

// evalBFS evaluates the reflexive-transitive (zeroOrMore, reflexive=true)
// or plain transitive (oneOrMore, reflexive=false) closure of inner.
//
// When both endpoints are unbound this performs the origin-preserving BFS
// the design calls out as the repository's most subtle contract: a naive
// BFS keyed only on the frontier node loses the originating start node by
// depth >= 2, so the traversal instead keeps, for every frontier node, the
// set of origin nodes that can reach it via inner, and a new hop extends
// each such origin association independently.
func evalBFS(ctx context.Context, source Source, inner Node, subject, object *any, cfg Config, reflexive bool) ([]Pair, error) {
	switch {
	case subject != nil:
		pairs, err := bfsFromOrigins(ctx, source, inner, []any{*subject}, cfg, reflexive)
		if err != nil {
			return nil, err
		}
		return filterByObject(pairs, object), nil

	case object != nil:
		// Run the BFS over the inverse relation starting from object;
		// every (object, x) pair found means x reaches object via inner,
		// i.e. (x, object) holds for the forward path.
		pairs, err := bfsFromOrigins(ctx, source, Inverse{Inner: inner}, []any{*object}, cfg, reflexive)
		if err != nil {
			return nil, err
		}
		return swapAll(pairs), nil

	default:
		nodes, err := source.AllNodes(ctx)
		if err != nil {
			return nil, err
		}
		return bfsFromOrigins(ctx, source, inner, nodes, cfg, reflexive)
	}
}

// bfsFromOrigins runs the origin-preserving BFS seeded from origins. It
// returns one Pair per (origin, reached) association discovered, each at
// most once, in the order first discovered. reflexive controls whether
// the depth-0 identity pairs (origin, origin) are included.
func bfsFromOrigins(ctx context.Context, source Source, inner Node, origins []any, cfg Config, reflexive bool) ([]Pair, error) {
	frontier := make(map[any]map[any]bool)
	for _, o := range origins {
		if frontier[o] == nil {
			frontier[o] = make(map[any]bool)
		}
		frontier[o][o] = true
	}

	var result []Pair
	visited := make(map[pairKey]bool) // (origin, reached) combos already emitted/expanded

	if reflexive {
		for node, origs := range frontier {
			for o := range origs {
				p := Pair{Subject: o, Object: node}
				visited[key(p)] = true
				result = append(result, p)
			}
		}
	}

	for depth := 1; depth <= cfg.maxDepth(); depth++ {
		next := make(map[any]map[any]bool)
		anyNew := false

		for node, origs := range frontier {
			frontierNode := node
			successors, err := Evaluate(ctx, source, inner, &frontierNode, nil, cfg)
			if err != nil {
				return nil, err
			}
			for _, succ := range successors {
				for o := range origs {
					p := Pair{Subject: o, Object: succ.Object}
					k := key(p)
					if visited[k] {
						continue
					}
					visited[k] = true
					anyNew = true
					result = append(result, p)
					if next[succ.Object] == nil {
						next[succ.Object] = make(map[any]bool)
					}
					next[succ.Object][o] = true
				}
			}
		}
		if !anyNew {
			break
		}
		frontier = next
	}

	return result, nil
}

func filterByObject(pairs []Pair, object *any) []Pair {
	if object == nil {
		return pairs
	}
	var out []Pair
	for _, p := range pairs {
		if equalAny(p.Object, *object) {
			out = append(out, p)
		}
	}
	return out
}
