package kernel

import (
	"reflect"
	"testing"
)

func mustSpec(t *testing.T) *Spec {
	t.Helper()
	s, err := NewSpec("builtin://noop", "noop", Dims{16}, Dims{1})
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	return s
}

func TestBuildConfigurationsOrderedValidSet(t *testing.T) {
	s := mustSpec(t)
	if err := s.AddParameter("A", []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParameter("B", []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddConstraint(Constraint{Target: "A", Operands: []string{"B"}}); err != nil {
		t.Fatal(err)
	}

	got := BuildConfigurations(s)
	want := []Configuration{
		{"A": 1, "B": 1},
		{"A": 2, "B": 1},
		{"A": 2, "B": 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("valid set: got %v, want %v", got, want)
	}
}

func TestBuildConfigurationsChainFold(t *testing.T) {
	// target multiple-of A*B/C must fold strictly left to right.
	s := mustSpec(t)
	for _, p := range []struct {
		name   string
		values []int
	}{
		{"T", []int{8, 12}},
		{"A", []int{4}},
		{"B", []int{6}},
		{"C", []int{3}},
	} {
		if err := s.AddParameter(p.name, p.values); err != nil {
			t.Fatal(err)
		}
	}
	// (4*6)/3 = 8, so T=8 passes and T=12 fails.
	err := s.AddConstraint(Constraint{
		Target:   "T",
		Operands: []string{"A", "B", "C"},
		Ops:      []ChainOp{OpMultiply, OpDivide},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := BuildConfigurations(s)
	if len(got) != 1 {
		t.Fatalf("got %d configurations, want 1: %v", len(got), got)
	}
	if got[0]["T"] != 8 {
		t.Errorf("T: got %d, want 8", got[0]["T"])
	}
}

func TestBuildConfigurationsAllSatisfyConstraints(t *testing.T) {
	s := mustSpec(t)
	if err := s.AddParameter("MWG", []int{16, 32, 64}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParameter("MDIMC", []int{8, 16}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParameter("VWM", []int{1, 2, 4}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddConstraint(Constraint{
		Target:   "MWG",
		Operands: []string{"MDIMC", "VWM"},
		Ops:      []ChainOp{OpMultiply},
	}); err != nil {
		t.Fatal(err)
	}

	configs := BuildConfigurations(s)
	if len(configs) == 0 {
		t.Fatal("expected a non-empty valid set")
	}
	seen := make(map[string]bool)
	for _, cfg := range configs {
		for _, c := range s.Constraints {
			if !c.Holds(cfg) {
				t.Errorf("configuration %v violates %s", cfg, c)
			}
		}
		key := cfg.Key(s.Parameters)
		if seen[key] {
			t.Errorf("duplicate configuration %v", cfg)
		}
		seen[key] = true
	}
}

func TestBuildConfigurationsEmptySet(t *testing.T) {
	s := mustSpec(t)
	if err := s.AddParameter("A", []int{3}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParameter("B", []int{2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddConstraint(Constraint{Target: "A", Operands: []string{"B"}}); err != nil {
		t.Fatal(err)
	}

	if got := BuildConfigurations(s); len(got) != 0 {
		t.Errorf("got %d configurations, want 0", len(got))
	}
}

func TestBuildConfigurationsCartesianWithoutConstraints(t *testing.T) {
	s := mustSpec(t)
	if err := s.AddParameter("A", []int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParameter("B", []int{10, 20}); err != nil {
		t.Fatal(err)
	}

	got := BuildConfigurations(s)
	if len(got) != 6 {
		t.Errorf("got %d configurations, want 6", len(got))
	}
	// Lexicographic over declaration order: A varies slowest.
	if got[0]["A"] != 1 || got[0]["B"] != 10 {
		t.Errorf("first configuration: got %v", got[0])
	}
	if got[5]["A"] != 3 || got[5]["B"] != 20 {
		t.Errorf("last configuration: got %v", got[5])
	}
}

func TestConstraintZeroFoldNeverHolds(t *testing.T) {
	c := Constraint{
		Target:   "T",
		Operands: []string{"A", "B"},
		Ops:      []ChainOp{OpDivide},
	}
	// 2/4 folds to 0 under integer division.
	if c.Holds(Configuration{"T": 8, "A": 2, "B": 4}) {
		t.Error("constraint with zero fold should not hold")
	}
	if c.Holds(Configuration{"T": 8, "A": 2, "B": 0}) {
		t.Error("constraint with zero divisor should not hold")
	}
}
