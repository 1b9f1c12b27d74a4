package kernel

import "strings"

// ChainOp combines two operands in a constraint chain.
type ChainOp int

const (
	OpMultiply ChainOp = iota
	OpDivide
)

// Constraint requires the target parameter to be an integer multiple of the
// operand chain. The chain is folded strictly left to right, applying
// multiply and divide as declared: `KWG multiple-of MDIMC*NDIMC/MDIMA` holds
// iff KWG mod ((MDIMC*NDIMC)/MDIMA) == 0.
type Constraint struct {
	Target   string
	Operands []string
	Ops      []ChainOp
}

// Refs returns every parameter name the constraint reads.
func (c Constraint) Refs() []string {
	refs := make([]string, 0, len(c.Operands)+1)
	refs = append(refs, c.Target)
	refs = append(refs, c.Operands...)
	return refs
}

// Holds evaluates the constraint under a configuration that binds every
// referenced parameter. A chain folding to zero never holds.
func (c Constraint) Holds(cfg Configuration) bool {
	folded := cfg[c.Operands[0]]
	for i, op := range c.Ops {
		v := cfg[c.Operands[i+1]]
		switch op {
		case OpMultiply:
			folded *= v
		case OpDivide:
			if v == 0 {
				return false
			}
			folded /= v
		}
	}
	if folded == 0 {
		return false
	}
	return cfg[c.Target]%folded == 0
}

// String renders the chain for diagnostics, e.g. "MWG % (MDIMC*VWM) == 0".
func (c Constraint) String() string {
	var b strings.Builder
	b.WriteString(c.Target)
	b.WriteString(" % (")
	b.WriteString(c.Operands[0])
	for i, op := range c.Ops {
		if op == OpMultiply {
			b.WriteByte('*')
		} else {
			b.WriteByte('/')
		}
		b.WriteString(c.Operands[i+1])
	}
	b.WriteString(") == 0")
	return b.String()
}
