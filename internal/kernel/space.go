package kernel

// BuildConfigurations enumerates every constraint-satisfying configuration of
// the spec. Parameters are bound in declaration order over the Cartesian
// product of their candidate values; as soon as the last parameter a
// constraint references becomes bound the constraint is evaluated, and the
// branch is pruned on failure, so invalid combinations are never
// materialized. The result is ordered by candidate declaration order,
// lexicographic over parameter declaration order.
//
// A constraint set admitting zero configurations yields an empty slice.
func BuildConfigurations(s *Spec) []Configuration {
	if len(s.Parameters) == 0 {
		return nil
	}

	// Constraints become checkable once their deepest-bound reference is set.
	checkAt := make([][]Constraint, len(s.Parameters))
	for _, c := range s.Constraints {
		deepest := 0
		for _, name := range c.Refs() {
			if idx := s.FindParameter(name); idx > deepest {
				deepest = idx
			}
		}
		checkAt[deepest] = append(checkAt[deepest], c)
	}

	var (
		out     []Configuration
		partial = make(Configuration, len(s.Parameters))
		bind    func(depth int)
	)
	bind = func(depth int) {
		if depth == len(s.Parameters) {
			out = append(out, partial.Clone())
			return
		}
		p := s.Parameters[depth]
		for _, v := range p.Values {
			partial[p.Name] = v
			ok := true
			for _, c := range checkAt[depth] {
				if !c.Holds(partial) {
					ok = false
					break
				}
			}
			if ok {
				bind(depth + 1)
			}
		}
		delete(partial, p.Name)
	}
	bind(0)
	return out
}
