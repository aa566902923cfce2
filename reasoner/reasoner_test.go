package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cfg() Config { return Config{MaxExpansionSteps: 2000} }

// P12: soundness on propositional fragments.
func TestContradictionIsUnsatisfiable(t *testing.T) {
	a := Atomic{Name: "A"}
	r := Satisfiable(&Ontology{}, And{Left: a, Right: Not{Inner: a}}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestExcludedMiddleIsSatisfiable(t *testing.T) {
	a := Atomic{Name: "A"}
	r := Satisfiable(&Ontology{}, Or{Left: a, Right: Not{Inner: a}}, cfg(), nil)
	assert.Equal(t, Satisfiable, r.Status)
}

func TestDisjointClassIntersectionIsUnsatisfiable(t *testing.T) {
	onto := &Ontology{Disjoint: [][2]string{{"Animal", "Plant"}}}
	r := Satisfiable(onto, And{Left: Atomic{Name: "Animal"}, Right: Atomic{Name: "Plant"}}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

// Scenario 6: Dog ⊑ Mammal, Mammal ⊑ Animal, Animal ⊓ Plant ⊑ ⊥.
func scenario6() *Ontology {
	dog, mammal, animal, plant := Atomic{"Dog"}, Atomic{"Mammal"}, Atomic{"Animal"}, Atomic{"Plant"}
	return &Ontology{
		TBox: []Axiom{
			{Sub: dog, Super: mammal},
			{Sub: mammal, Super: animal},
			{Sub: And{Left: animal, Right: plant}, Super: Bottom{}},
		},
	}
}

func TestScenario6DogAndPlantUnsatisfiable(t *testing.T) {
	onto := scenario6()
	r := Satisfiable(onto, And{Left: Atomic{"Dog"}, Right: Atomic{"Plant"}}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestScenario6AnimalDoesNotSubsumeDog(t *testing.T) {
	onto := scenario6()
	assert.False(t, Subsumes(onto, Atomic{"Animal"}, Atomic{"Dog"}, cfg(), nil))
}

func TestScenario6DogSubsumedByMammalAndAnimal(t *testing.T) {
	onto := scenario6()
	assert.True(t, Subsumes(onto, Atomic{"Dog"}, Atomic{"Mammal"}, cfg(), nil))
	assert.True(t, Subsumes(onto, Atomic{"Dog"}, Atomic{"Animal"}, cfg(), nil))
}

func TestClassifyBuildsTaxonomy(t *testing.T) {
	onto := scenario6()
	classifier, err := NewClassifier(onto, cfg(), 64, nil)
	assert.NoError(t, err)
	taxonomy := classifier.Classify([]string{"Dog", "Mammal", "Animal", "Plant"})
	assert.ElementsMatch(t, []string{"Mammal", "Animal"}, taxonomy["Dog"].Parents)
	assert.ElementsMatch(t, []string{"Animal"}, taxonomy["Mammal"].Parents)
	assert.Empty(t, taxonomy["Animal"].Parents)
}

func TestSomeValuesFromCreatesSatisfyingSuccessor(t *testing.T) {
	c := SomeValuesFrom{Role: "hasChild", Filler: Atomic{"Person"}}
	r := Satisfiable(&Ontology{}, c, cfg(), nil)
	assert.Equal(t, Satisfiable, r.Status)
}

func TestAllValuesFromWithDisjointFillerIsUnsatisfiable(t *testing.T) {
	// x has a hasChild-successor forced by someValuesFrom to be Dog, but
	// allValuesFrom says every hasChild successor is Plant, and
	// Dog/Plant are disjoint -- unsatisfiable.
	onto := &Ontology{Disjoint: [][2]string{{"Dog", "Plant"}}}
	c := And{
		Left:  SomeValuesFrom{Role: "hasChild", Filler: Atomic{"Dog"}},
		Right: AllValuesFrom{Role: "hasChild", Filler: Atomic{"Plant"}},
	}
	r := Satisfiable(onto, c, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

// P13: termination within the step budget, reporting unknown rather
// than hanging, on a query whose search space exceeds the budget.
func TestStepBudgetYieldsUnknownNotHang(t *testing.T) {
	onto := &Ontology{}
	// A long chain of nested existentials with a tiny budget forces the
	// reasoner to give up before completing.
	var c Concept = Atomic{"Base"}
	for i := 0; i < 50; i++ {
		c = SomeValuesFrom{Role: "r", Filler: c}
	}
	r := Satisfiable(onto, c, Config{MaxExpansionSteps: 5}, nil)
	assert.Equal(t, Unknown, r.Status)
	assert.Less(t, r.Steps, 50, "budget must cut the chain short of full expansion")
}

func TestFunctionalRoleForcesMerge(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: Functional, Role: "hasSSN"}}}
	c := And{
		Left:  SomeValuesFrom{Role: "hasSSN", Filler: Atomic{"A"}},
		Right: SomeValuesFrom{Role: "hasSSN", Filler: Atomic{"B"}},
	}
	r := Satisfiable(onto, c, cfg(), nil)
	assert.Equal(t, Satisfiable, r.Status)
}

func TestRegularityViolationReportsUnknownWhenConfiguredToAbort(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: Transitive, Role: "partOf"}}}
	c := MaxCardinality{N: 2, Role: "partOf", Filler: Top{}}
	r := Satisfiable(onto, c, Config{MaxExpansionSteps: 2000, CheckRegularity: true, AbortOnRegularityViolations: true}, nil)
	assert.Equal(t, Unknown, r.Status)
}

func TestInstanceCheck(t *testing.T) {
	onto := scenario6()
	onto.ABox = []any{ConceptAssertion{Individual: "rex", Concept: Atomic{"Dog"}}}
	assert.True(t, InstanceOf(onto, "rex", Atomic{"Animal"}, cfg(), nil))
	assert.False(t, InstanceOf(onto, "rex", Atomic{"Plant"}, cfg(), nil))
}

func TestInverseFunctionalRoleForcesMerge(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: InverseFunctional, Role: "hasParent"}}}
	// Two distinct successors both point at the same nominal via hasParent;
	// inverse-functional forces them to merge into one node.
	c := And{
		Left:  SomeValuesFrom{Role: "friendOf", Filler: HasValue{Role: "hasParent", Individual: "tom"}},
		Right: SomeValuesFrom{Role: "colleagueOf", Filler: HasValue{Role: "hasParent", Individual: "tom"}},
	}
	r := Satisfiable(onto, c, cfg(), nil)
	assert.Equal(t, Satisfiable, r.Status)
}

func TestInverseFunctionalMergeCausesClashOnDisjointLabels(t *testing.T) {
	onto := &Ontology{
		RBox:     []RoleAxiom{{Kind: InverseFunctional, Role: "hasParent"}},
		Disjoint: [][2]string{{"X", "Y"}},
	}
	c := And{
		Left:  SomeValuesFrom{Role: "friendOf", Filler: And{Left: Atomic{"X"}, Right: HasValue{Role: "hasParent", Individual: "tom"}}},
		Right: SomeValuesFrom{Role: "colleagueOf", Filler: And{Left: Atomic{"Y"}, Right: HasValue{Role: "hasParent", Individual: "tom"}}},
	}
	r := Satisfiable(onto, c, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestIrreflexiveRoleClashesOnSelfLoop(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: Irreflexive, Role: "marriedTo"}}}
	r := Satisfiable(onto, HasSelf{Role: "marriedTo"}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestAsymmetricRoleClashesOnSelfLoop(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: Asymmetric, Role: "marriedTo"}}}
	r := Satisfiable(onto, HasSelf{Role: "marriedTo"}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestReflexiveRoleAloneIsSatisfiable(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{{Kind: Reflexive, Role: "sameAs"}}}
	r := Satisfiable(onto, Top{}, cfg(), nil)
	assert.Equal(t, Satisfiable, r.Status)
}

func TestReflexiveRoleConflictsWithIrreflexiveOnSameRole(t *testing.T) {
	onto := &Ontology{RBox: []RoleAxiom{
		{Kind: Reflexive, Role: "sameAs"},
		{Kind: Irreflexive, Role: "sameAs"},
	}}
	r := Satisfiable(onto, Top{}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestDomainPropagatesToSubject(t *testing.T) {
	onto := &Ontology{
		RBox:     []RoleAxiom{{Kind: Domain, Role: "hasChild", Filler: Atomic{"Parent"}}},
		Disjoint: [][2]string{{"Parent", "Plant"}},
	}
	c := And{Left: Atomic{"Plant"}, Right: SomeValuesFrom{Role: "hasChild", Filler: Atomic{"Person"}}}
	r := Satisfiable(onto, c, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}

func TestRangePropagatesToObject(t *testing.T) {
	onto := &Ontology{
		RBox:     []RoleAxiom{{Kind: Range, Role: "hasChild", Filler: Atomic{"Person"}}},
		Disjoint: [][2]string{{"Person", "Robot"}},
	}
	r := Satisfiable(onto, SomeValuesFrom{Role: "hasChild", Filler: Atomic{"Robot"}}, cfg(), nil)
	assert.Equal(t, Unsatisfiable, r.Status)
}
