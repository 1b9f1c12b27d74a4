// Package kernel defines the tunable-kernel data model: parameters with
// candidate values, divisibility constraints, thread-size modifiers and
// fully bound configurations, plus the generator that enumerates the
// constraint-satisfying configuration space.
package kernel

import (
	"fmt"
	"slices"
)

// Dims holds up to three work-size dimensions.
type Dims []int

// Clone returns an independent copy of the dimensions.
func (d Dims) Clone() Dims {
	return slices.Clone(d)
}

// Total returns the product of all dimensions.
func (d Dims) Total() int {
	total := 1
	for _, v := range d {
		total *= v
	}
	return total
}

// Parameter is a named tuning knob with an ordered set of candidate values.
// Immutable after declaration.
type Parameter struct {
	Name   string
	Values []int
}

// SizeTarget selects which work-size a modifier applies to.
type SizeTarget int

const (
	GlobalSize SizeTarget = iota
	LocalSize
)

// SizeOp is the arithmetic a modifier applies to a work-size dimension.
type SizeOp int

const (
	SizeMul SizeOp = iota
	SizeDiv
)

// ThreadSizeModifier scales work-size dimensions by chosen parameter values.
// Names holds one parameter name per dimension, in dimension order; modifiers
// are applied in declaration order to derive the launch geometry.
type ThreadSizeModifier struct {
	Target SizeTarget
	Op     SizeOp
	Names  []string
}

// Spec describes one tunable kernel: where its source lives, the entry point,
// the base launch sizes, and the declared parameters, constraints and
// thread-size modifiers. A Spec is declared once before tuning and treated as
// immutable afterwards.
type Spec struct {
	Source      string
	Entry       string
	Global      Dims
	Local       Dims
	Parameters  []Parameter
	Constraints []Constraint
	Modifiers   []ThreadSizeModifier
}

// NewSpec creates a kernel spec with the given base launch geometry.
func NewSpec(source, entry string, global, local Dims) (*Spec, error) {
	if entry == "" {
		return nil, fmt.Errorf("kernel entry point is required")
	}
	if len(global) == 0 || len(global) > 3 {
		return nil, fmt.Errorf("global size must have 1 to 3 dimensions, got %d", len(global))
	}
	if len(local) != len(global) {
		return nil, fmt.Errorf("local size has %d dimensions, global has %d", len(local), len(global))
	}
	for i, v := range global {
		if v <= 0 {
			return nil, fmt.Errorf("global size dimension %d must be positive, got %d", i, v)
		}
	}
	for i, v := range local {
		if v <= 0 {
			return nil, fmt.Errorf("local size dimension %d must be positive, got %d", i, v)
		}
	}
	return &Spec{
		Source: source,
		Entry:  entry,
		Global: global.Clone(),
		Local:  local.Clone(),
	}, nil
}

// AddParameter declares a tuning parameter with its candidate values.
func (s *Spec) AddParameter(name string, values []int) error {
	if name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if len(values) == 0 {
		return fmt.Errorf("parameter %s has no candidate values", name)
	}
	if s.FindParameter(name) >= 0 {
		return fmt.Errorf("parameter %s already declared", name)
	}
	s.Parameters = append(s.Parameters, Parameter{Name: name, Values: slices.Clone(values)})
	return nil
}

// AddConstraint declares a divisibility constraint relating the target
// parameter to a left-to-right fold of the operand chain. Every referenced
// parameter must already be declared.
func (s *Spec) AddConstraint(c Constraint) error {
	if len(c.Operands) == 0 {
		return fmt.Errorf("constraint on %s has no operands", c.Target)
	}
	if len(c.Ops) != len(c.Operands)-1 {
		return fmt.Errorf("constraint on %s: %d operators for %d operands", c.Target, len(c.Ops), len(c.Operands))
	}
	for _, name := range c.Refs() {
		if s.FindParameter(name) < 0 {
			return fmt.Errorf("constraint references undeclared parameter %s", name)
		}
	}
	s.Constraints = append(s.Constraints, c)
	return nil
}

// AddModifier registers a thread-size modifier. Each name scales the
// corresponding dimension, so the name list cannot be longer than the base
// size it modifies.
func (s *Spec) AddModifier(m ThreadSizeModifier) error {
	if len(m.Names) == 0 {
		return fmt.Errorf("thread-size modifier has no parameter names")
	}
	if len(m.Names) > len(s.Global) {
		return fmt.Errorf("thread-size modifier names %d dimensions, kernel has %d", len(m.Names), len(s.Global))
	}
	for _, name := range m.Names {
		if s.FindParameter(name) < 0 {
			return fmt.Errorf("thread-size modifier references undeclared parameter %s", name)
		}
	}
	s.Modifiers = append(s.Modifiers, m)
	return nil
}

// FindParameter returns the declaration index of the named parameter, or -1.
func (s *Spec) FindParameter(name string) int {
	for i := range s.Parameters {
		if s.Parameters[i].Name == name {
			return i
		}
	}
	return -1
}

// ResolveGeometry applies every thread-size modifier in declaration order to
// the base sizes and returns the launch geometry for the configuration.
// Every resolved dimension must be a positive integer; divisions that do not
// divide evenly reject the trial.
func (s *Spec) ResolveGeometry(cfg Configuration) (global, local Dims, err error) {
	global = s.Global.Clone()
	local = s.Local.Clone()
	for _, m := range s.Modifiers {
		dims := global
		if m.Target == LocalSize {
			dims = local
		}
		for i, name := range m.Names {
			v, ok := cfg[name]
			if !ok {
				return nil, nil, fmt.Errorf("modifier parameter %s is not bound", name)
			}
			if v <= 0 {
				return nil, nil, fmt.Errorf("modifier parameter %s resolved to %d", name, v)
			}
			switch m.Op {
			case SizeMul:
				dims[i] *= v
			case SizeDiv:
				if dims[i]%v != 0 {
					return nil, nil, fmt.Errorf("size dimension %d (%d) not divisible by %s=%d", i, dims[i], name, v)
				}
				dims[i] /= v
			}
		}
	}
	for i := range global {
		if global[i] <= 0 || local[i] <= 0 {
			return nil, nil, fmt.Errorf("resolved geometry dimension %d is not positive", i)
		}
		if global[i]%local[i] != 0 {
			return nil, nil, fmt.Errorf("global size %d not divisible by local size %d in dimension %d", global[i], local[i], i)
		}
	}
	return global, local, nil
}
