package tuner

import "github.com/zuqini/CLTune/internal/kernel"

// Chain builds the operand product of a multiple-of constraint. The fold is
// evaluated left to right with integer arithmetic, so
//
//	Operand("MDIMC").Times("VWM").DividedBy("MDIMA")
//
// constrains the target to be a multiple of MDIMC*VWM/MDIMA.
type Chain struct {
	operands []string
	ops      []kernel.ChainOp
}

// Operand starts a chain with the first operand parameter.
func Operand(name string) *Chain {
	return &Chain{operands: []string{name}}
}

// Times multiplies the running fold by the named parameter.
func (c *Chain) Times(name string) *Chain {
	c.operands = append(c.operands, name)
	c.ops = append(c.ops, kernel.OpMultiply)
	return c
}

// DividedBy divides the running fold by the named parameter.
func (c *Chain) DividedBy(name string) *Chain {
	c.operands = append(c.operands, name)
	c.ops = append(c.ops, kernel.OpDivide)
	return c
}

func (c *Chain) constraint(target string) kernel.Constraint {
	return kernel.Constraint{
		Target:   target,
		Operands: append([]string(nil), c.operands...),
		Ops:      append([]kernel.ChainOp(nil), c.ops...),
	}
}
