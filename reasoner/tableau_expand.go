package reasoner

import "strings"

// solve runs the tableau to completion on g: it saturates deterministic
// rules, then branches over the first pending disjunction or required
// cardinality merge, backtracking on clash. It returns true iff a
// clash-free completed graph was found within the step budget.
func (e *engine) solve(g *graph) bool {
	if e.steps >= e.maxSteps {
		return false
	}
	if e.saturate(g) {
		return false
	}
	if e.steps >= e.maxSteps {
		return false
	}

	if ni, orV, ok := e.findPendingOr(g); ok {
		for _, d := range []Concept{orV.Left, orV.Right} {
			g2 := g.clone()
			g2.nodes[ni].add(d)
			e.steps++
			if e.solve(g2) {
				return true
			}
			if e.steps >= e.maxSteps {
				return false
			}
		}
		return false
	}

	if ni, role, filler, n, inverse, ok := e.findCardinalityMergeNeeded(g); ok {
		pairs := candidatePairs(g, ni, role, filler, n, inverse, e.onto.RBox)
		for _, pr := range pairs {
			g2 := g.clone()
			if tryMerge(g2, pr[0], pr[1]) && !clashAny(g2, e.onto) {
				e.steps++
				if e.solve(g2) {
					return true
				}
			}
			if e.steps >= e.maxSteps {
				return false
			}
		}
		return false
	}

	return true
}

// saturate applies every deterministic expansion rule to fixpoint,
// returning true the moment a clash is found.
func (e *engine) saturate(g *graph) bool {
	for {
		if clashAny(g, e.onto) {
			return true
		}
		progress := false

		for ni := 0; ni < len(g.nodes); ni++ {
			if e.steps >= e.maxSteps {
				break
			}
			n := g.nodes[ni]
			if n.blocked {
				continue
			}
			for _, c := range labelValues(n) {
				switch v := c.(type) {
				case And:
					if n.add(v.Left) {
						progress = true
						e.steps++
					}
					if n.add(v.Right) {
						progress = true
						e.steps++
					}
				case SomeValuesFrom:
					if !e.hasSatisfyingSuccessor(g, ni, v.Role, v.Filler) {
						e.createSuccessor(g, ni, v.Role, v.Filler)
						progress = true
						e.steps++
					}
				case HasSelf:
					if !hasEdgeTo(n, v.Role, ni) {
						n.edges = append(n.edges, roleEdge{role: v.Role, to: ni})
						progress = true
						e.steps++
					}
				case HasValue:
					target := e.nominalNode(g, v.Individual)
					if !hasEdgeTo(n, v.Role, target) {
						n.edges = append(n.edges, roleEdge{role: v.Role, to: target})
						progress = true
						e.steps++
					}
				case OneOf:
					if n.nominal == "" && len(v.Individuals) > 0 {
						n.nominal = v.Individuals[0]
						progress = true
						e.steps++
					}
				case AllValuesFrom:
					for _, succ := range g.successors(ni, v.Role, e.onto.RBox) {
						if g.nodes[succ].add(v.Filler) {
							progress = true
							e.steps++
						}
						if isTransitive(v.Role, e.onto.RBox) && g.nodes[succ].add(v) {
							progress = true
							e.steps++
						}
					}
				case MinCardinality:
					count := 0
					for _, succ := range g.successors(ni, v.Role, e.onto.RBox) {
						if g.nodes[succ].has(v.Filler) {
							count++
						}
					}
					for count < v.N {
						e.createSuccessor(g, ni, v.Role, v.Filler)
						count++
						progress = true
						e.steps++
					}
				}
			}
		}

		if e.propagateRoleAxioms(g) {
			progress = true
		}
		if !progress || e.steps >= e.maxSteps {
			break
		}
	}
	return clashAny(g, e.onto)
}

func labelValues(n *node) []Concept {
	out := make([]Concept, 0, len(n.label))
	for _, c := range n.label {
		out = append(out, c)
	}
	return out
}

func hasEdgeTo(n *node, role string, to int) bool {
	for _, e := range n.edges {
		if e.role == role && e.to == to {
			return true
		}
	}
	return false
}

func (e *engine) hasSatisfyingSuccessor(g *graph, ni int, role string, filler Concept) bool {
	for _, succ := range g.successors(ni, role, e.onto.RBox) {
		if g.nodes[succ].has(filler) {
			return true
		}
	}
	return false
}

func (e *engine) createSuccessor(g *graph, ni int, role string, filler Concept) int {
	y := newNode(append(g.nodes[ni].ancestors, ni))
	y.add(filler)
	for _, a := range e.absorbed {
		y.add(a)
	}
	yIdx := g.addNode(y)
	g.nodes[ni].edges = append(g.nodes[ni].edges, roleEdge{role: role, to: yIdx})
	if isSymmetric(role, e.onto.RBox) {
		y.edges = append(y.edges, roleEdge{role: role, to: ni})
	}
	if e.isBlocked(g, yIdx) {
		y.blocked = true
	}
	return yIdx
}

// isBlocked implements subset blocking: y is blocked by an ancestor whose
// label is a superset of y's.
func (e *engine) isBlocked(g *graph, yIdx int) bool {
	y := g.nodes[yIdx]
	for _, a := range y.ancestors {
		if labelSubset(y.label, g.nodes[a].label) {
			return true
		}
	}
	return false
}

func labelSubset(a, b map[string]Concept) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (e *engine) nominalNode(g *graph, name string) int {
	for i, n := range g.nodes {
		if n.nominal == name {
			return i
		}
	}
	y := newNode(nil)
	y.nominal = name
	for _, a := range e.absorbed {
		y.add(a)
	}
	return g.addNode(y)
}

// propagateRoleAxioms applies symmetric, reflexive, inverse, domain/range,
// and chain role axioms over the current edge set until no new edge or
// label assertion is implied.
func (e *engine) propagateRoleAxioms(g *graph) bool {
	changed := false
	for _, ax := range e.onto.RBox {
		switch ax.Kind {
		case Symmetric:
			for ni, n := range g.nodes {
				for _, ed := range append([]roleEdge(nil), n.edges...) {
					if ed.role == ax.Role && !hasEdgeTo(g.nodes[ed.to], ax.Role, ni) {
						g.nodes[ed.to].edges = append(g.nodes[ed.to].edges, roleEdge{role: ax.Role, to: ni})
						changed = true
					}
				}
			}
		case Reflexive:
			for ni, n := range g.nodes {
				if !hasEdgeTo(n, ax.Role, ni) {
					n.edges = append(n.edges, roleEdge{role: ax.Role, to: ni})
					changed = true
				}
			}
		case Domain:
			for _, n := range g.nodes {
				for _, ed := range n.edges {
					if ed.role == ax.Role || isSubRoleOf(ed.role, ax.Role, e.onto.RBox) {
						if n.add(toNNF(ax.Filler)) {
							changed = true
						}
					}
				}
			}
		case Range:
			for _, n := range g.nodes {
				for _, ed := range n.edges {
					if ed.role == ax.Role || isSubRoleOf(ed.role, ax.Role, e.onto.RBox) {
						if g.nodes[ed.to].add(toNNF(ax.Filler)) {
							changed = true
						}
					}
				}
			}
		case InverseOf:
			for ni, n := range g.nodes {
				for _, ed := range append([]roleEdge(nil), n.edges...) {
					if ed.role == ax.Role && !hasEdgeTo(g.nodes[ed.to], ax.Super, ni) {
						g.nodes[ed.to].edges = append(g.nodes[ed.to].edges, roleEdge{role: ax.Super, to: ni})
						changed = true
					}
					if ed.role == ax.Super && !hasEdgeTo(g.nodes[ed.to], ax.Role, ni) {
						g.nodes[ed.to].edges = append(g.nodes[ed.to].edges, roleEdge{role: ax.Role, to: ni})
						changed = true
					}
				}
			}
		case Chain:
			if len(ax.Chain) != 2 {
				continue
			}
			for _, n := range g.nodes {
				for _, first := range n.edges {
					if first.role != ax.Chain[0] {
						continue
					}
					for _, second := range g.nodes[first.to].edges {
						if second.role != ax.Chain[1] {
							continue
						}
						if !hasEdgeTo(n, ax.Role, second.to) {
							n.edges = append(n.edges, roleEdge{role: ax.Role, to: second.to})
							changed = true
						}
					}
				}
			}
		}
	}
	return changed
}

func clashAny(g *graph, onto *Ontology) bool {
	for ni, n := range g.nodes {
		if clash(ni, n, onto) {
			return true
		}
	}
	return false
}

func clash(ni int, n *node, onto *Ontology) bool {
	for k := range n.label {
		if strings.HasPrefix(k, "¬(") && strings.HasSuffix(k, ")") {
			inner := k[len("¬(") : len(k)-1]
			if _, ok := n.label[inner]; ok {
				return true
			}
		}
	}
	if _, ok := n.label["⊥"]; ok {
		return true
	}
	for _, pair := range onto.Disjoint {
		_, a := n.label[pair[0]]
		_, b := n.label[pair[1]]
		if a && b {
			return true
		}
	}
	// An irreflexive or asymmetric role can never hold of a node and
	// itself; a self-loop on either is a clash.
	for _, ax := range onto.RBox {
		if ax.Kind != Irreflexive && ax.Kind != Asymmetric {
			continue
		}
		if hasEdgeTo(n, ax.Role, ni) {
			return true
		}
	}
	return false
}

// findPendingOr returns the first node and Or concept whose disjunction
// has not yet been resolved by either disjunct being present.
func (e *engine) findPendingOr(g *graph) (int, Or, bool) {
	for ni, n := range g.nodes {
		if n.blocked {
			continue
		}
		for _, c := range n.label {
			if orV, ok := c.(Or); ok {
				if !n.has(orV.Left) && !n.has(orV.Right) {
					return ni, orV, true
				}
			}
		}
	}
	return 0, Or{}, false
}

// findCardinalityMergeNeeded looks for a max-cardinality restriction, an
// implicit functional-role restriction, or an implicit inverse-functional
// restriction whose current successor/predecessor count exceeds its
// bound. The inverse flag tells candidatePairs whether the qualifying set
// to merge over is gathered along outgoing (successor) or incoming
// (predecessor) edges.
func (e *engine) findCardinalityMergeNeeded(g *graph) (ni int, role string, filler Concept, n int, inverse bool, ok bool) {
	for ni, nd := range g.nodes {
		if nd.blocked {
			continue
		}
		for _, c := range nd.label {
			if mc, ok := c.(MaxCardinality); ok {
				qualifying := qualifyingSuccessors(g, ni, mc.Role, mc.Filler, e.onto.RBox)
				if len(qualifying) > mc.N {
					return ni, mc.Role, mc.Filler, mc.N, false, true
				}
			}
		}
	}
	for _, ax := range e.onto.RBox {
		switch ax.Kind {
		case Functional:
			for ni := range g.nodes {
				succ := g.successors(ni, ax.Role, e.onto.RBox)
				if len(succ) > 1 {
					return ni, ax.Role, Top{}, 1, false, true
				}
			}
		case InverseFunctional:
			for yi := range g.nodes {
				preds := predecessors(g, yi, ax.Role, e.onto.RBox)
				if len(preds) > 1 {
					return yi, ax.Role, Top{}, 1, true, true
				}
			}
		}
	}
	return 0, "", nil, 0, false, false
}

func qualifyingSuccessors(g *graph, ni int, role string, filler Concept, rbox []RoleAxiom) []int {
	var out []int
	for _, succ := range g.successors(ni, role, rbox) {
		if _, isTop := filler.(Top); isTop || g.nodes[succ].has(filler) {
			out = append(out, succ)
		}
	}
	return out
}

// predecessors returns the distinct nodes with an edge to y via role (or a
// sub-role of it) -- the inverse-functional counterpart of graph.successors.
func predecessors(g *graph, y int, role string, rbox []RoleAxiom) []int {
	var out []int
	for xi, n := range g.nodes {
		for _, e := range n.edges {
			if e.to == y && (e.role == role || isSubRoleOf(e.role, role, rbox)) {
				out = append(out, xi)
				break
			}
		}
	}
	return out
}

func candidatePairs(g *graph, ni int, role string, filler Concept, n int, inverse bool, rbox []RoleAxiom) [][2]int {
	var qualifying []int
	if inverse {
		qualifying = predecessors(g, ni, role, rbox)
	} else {
		qualifying = qualifyingSuccessors(g, ni, role, filler, rbox)
	}
	var pairs [][2]int
	for i := 0; i < len(qualifying); i++ {
		for j := i + 1; j < len(qualifying); j++ {
			pairs = append(pairs, [2]int{qualifying[i], qualifying[j]})
		}
	}
	return pairs
}

// tryMerge merges node b into node a (union of labels and edges,
// redirecting every edge pointing at b) and reports whether the merge is
// consistent with identity (two differently-named nominals cannot merge).
func tryMerge(g *graph, a, b int) bool {
	if a == b {
		return true
	}
	na, nb := g.nodes[a], g.nodes[b]
	if na.nominal != "" && nb.nominal != "" && na.nominal != nb.nominal {
		return false
	}
	if na.nominal == "" {
		na.nominal = nb.nominal
	}
	for k, v := range nb.label {
		na.label[k] = v
	}
	na.edges = append(na.edges, nb.edges...)
	for _, n := range g.nodes {
		for i := range n.edges {
			if n.edges[i].to == b {
				n.edges[i].to = a
			}
		}
	}
	nb.label = map[string]Concept{}
	nb.edges = nil
	nb.blocked = true
	return true
}
