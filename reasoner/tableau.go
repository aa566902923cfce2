package reasoner

import (
	"go.uber.org/zap"
)

// Status is the three-valued satisfiability verdict.
type Status int

const (
	Satisfiable Status = iota
	Unsatisfiable
	Unknown
)

func (s Status) String() string {
	switch s {
	case Satisfiable:
		return "satisfiable"
	case Unsatisfiable:
		return "unsatisfiable"
	default:
		return "unknown"
	}
}

// Config bounds and tunes one satisfiability check.
type Config struct {
	MaxExpansionSteps           int
	CheckRegularity             bool
	AbortOnRegularityViolations bool
	CacheClassification         bool
}

func (c Config) maxSteps() int {
	if c.MaxExpansionSteps <= 0 {
		return 5000
	}
	return c.MaxExpansionSteps
}

// Result is the outcome of one satisfiability check.
type Result struct {
	Status Status
	Steps  int
}

type roleEdge struct {
	role string
	to   int
}

type node struct {
	label     map[string]Concept
	edges     []roleEdge
	nominal   string
	ancestors []int
	blocked   bool
}

func newNode(ancestors []int) *node {
	return &node{label: make(map[string]Concept), ancestors: append([]int(nil), ancestors...)}
}

func (n *node) add(c Concept) bool {
	k := c.key()
	if _, ok := n.label[k]; ok {
		return false
	}
	n.label[k] = c
	return true
}

func (n *node) has(c Concept) bool {
	_, ok := n.label[c.key()]
	return ok
}

type graph struct {
	nodes []*node
}

func newGraph() *graph { return &graph{} }

func (g *graph) addNode(n *node) int {
	g.nodes = append(g.nodes, n)
	return len(g.nodes) - 1
}

func (g *graph) clone() *graph {
	out := &graph{nodes: make([]*node, len(g.nodes))}
	for i, n := range g.nodes {
		cn := &node{
			label:     make(map[string]Concept, len(n.label)),
			edges:     append([]roleEdge(nil), n.edges...),
			nominal:   n.nominal,
			ancestors: append([]int(nil), n.ancestors...),
			blocked:   n.blocked,
		}
		for k, v := range n.label {
			cn.label[k] = v
		}
		out.nodes[i] = cn
	}
	return out
}

func (g *graph) successors(x int, role string, rbox []RoleAxiom) []int {
	var out []int
	seen := make(map[int]bool)
	for _, e := range g.nodes[x].edges {
		if (e.role == role || isSubRoleOf(e.role, role, rbox)) && !seen[e.to] {
			seen[e.to] = true
			out = append(out, e.to)
		}
	}
	return out
}

func isSubRoleOf(r, s string, rbox []RoleAxiom) bool {
	if r == s {
		return true
	}
	visited := map[string]bool{r: true}
	queue := []string{r}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ax := range rbox {
			if ax.Kind == SubRole && ax.Role == cur {
				if ax.Super == s {
					return true
				}
				if !visited[ax.Super] {
					visited[ax.Super] = true
					queue = append(queue, ax.Super)
				}
			}
		}
	}
	return false
}

func isTransitive(r string, rbox []RoleAxiom) bool {
	for _, ax := range rbox {
		if ax.Kind == Transitive && ax.Role == r {
			return true
		}
	}
	return false
}

func isFunctional(r string, rbox []RoleAxiom) bool {
	for _, ax := range rbox {
		if ax.Kind == Functional && ax.Role == r {
			return true
		}
	}
	return false
}

func isSymmetric(r string, rbox []RoleAxiom) bool {
	for _, ax := range rbox {
		if ax.Kind == Symmetric && ax.Role == r {
			return true
		}
	}
	return false
}

// engine holds the fixed ontology context for one satisfiability run.
type engine struct {
	onto       *Ontology
	absorbed   []Concept // GCIs injected into every node, ¬Sub ⊔ Super (or Super directly if Sub==Top)
	log        *zap.Logger
	steps      int
	maxSteps   int
}

// Satisfiable decides whether c is satisfiable with respect to onto.
func Satisfiable(onto *Ontology, c Concept, cfg Config, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CheckRegularity {
		if violatesRegularity(onto, c) && cfg.AbortOnRegularityViolations {
			return Result{Status: Unknown}
		}
	}

	e := &engine{onto: onto, log: log, maxSteps: cfg.maxSteps()}
	for _, ax := range onto.TBox {
		if _, isTop := ax.Sub.(Top); isTop {
			e.absorbed = append(e.absorbed, toNNF(ax.Super))
		} else {
			e.absorbed = append(e.absorbed, toNNF(Or{Left: negate(ax.Sub), Right: ax.Super}))
		}
	}

	g := newGraph()
	root := newNode(nil)
	g.addNode(root)
	root.add(toNNF(c))
	for _, a := range e.absorbed {
		root.add(a)
	}

	sat := e.solve(g)
	status := Unsatisfiable
	if e.steps >= e.maxSteps {
		status = Unknown
	} else if sat {
		status = Satisfiable
	}
	e.log.Debug("tableau run complete", zap.String("status", status.String()), zap.Int("steps", e.steps))
	return Result{Status: status, Steps: e.steps}
}

// violatesRegularity flags a transitive role used inside a cardinality
// restriction anywhere in the TBox or the query concept, which SHOIN(D)
// forbids (a "non-simple" role in a counting restriction).
func violatesRegularity(onto *Ontology, query Concept) bool {
	transitive := make(map[string]bool)
	for _, ax := range onto.RBox {
		if ax.Kind == Transitive {
			transitive[ax.Role] = true
		}
	}
	var walk func(c Concept) bool
	walk = func(c Concept) bool {
		switch v := c.(type) {
		case MinCardinality:
			if transitive[v.Role] {
				return true
			}
			return walk(v.Filler)
		case MaxCardinality:
			if transitive[v.Role] {
				return true
			}
			return walk(v.Filler)
		case And:
			return walk(v.Left) || walk(v.Right)
		case Or:
			return walk(v.Left) || walk(v.Right)
		case Not:
			return walk(v.Inner)
		case SomeValuesFrom:
			return walk(v.Filler)
		case AllValuesFrom:
			return walk(v.Filler)
		default:
			return false
		}
	}
	if walk(query) {
		return true
	}
	for _, ax := range onto.TBox {
		if walk(ax.Sub) || walk(ax.Super) {
			return true
		}
	}
	return false
}
