// Package device provides the execution substrate for kernel variants. A
// Device compiles an entry point against a set of compile-time defines and
// enqueues launches asynchronously; Finish blocks until every enqueued launch
// has drained, which is the single synchronization point the harness times
// against. The package ships an in-process CPU device that executes Go kernel
// functions registered by entry-point name.
package device

import (
	"fmt"

	"github.com/zuqini/CLTune/internal/kernel"
)

// Info describes a device for reporting purposes.
type Info struct {
	Name            string
	Vendor          string
	Type            string
	MaxComputeUnits int
	Features        []string
}

// Device compiles kernel variants and executes launches.
type Device interface {
	Name() string
	Info() Info
	// Compile resolves the entry point against the source reference and binds
	// the compile-time defines for one kernel variant. Unknown entry points
	// and unsatisfied define requirements are compile failures.
	Compile(source, entry string, defines map[string]int) (Program, error)
	// Finish blocks until all enqueued launches complete and returns the
	// first execution error observed since the previous Finish.
	Finish() error
}

// Program is one compiled kernel variant. It is owned by the current trial
// and must be released before the next trial compiles.
type Program interface {
	// Enqueue schedules an asynchronous launch over the given geometry.
	// Validation errors are returned synchronously; execution errors surface
	// from Device.Finish.
	Enqueue(global, local kernel.Dims, args []kernel.Argument) error
	Release()
}

// Func is one work-item of a kernel function.
type Func func(wi *WorkItem)

// Registration binds an entry-point name to a kernel function and the
// compile-time defines it requires.
type Registration struct {
	Entry    string
	Requires []string
	Fn       Func
}

// WorkItem carries the execution context of a single work-item: its position
// in the launch geometry, the variant's compile-time defines, and the bound
// arguments.
type WorkItem struct {
	globalID   [3]int
	localID    [3]int
	groupID    [3]int
	globalSize [3]int
	localSize  [3]int
	defines    map[string]int
	args       []kernel.Argument
}

// GlobalID returns the work-item's global index in dimension d.
func (w *WorkItem) GlobalID(d int) int { return w.globalID[d] }

// LocalID returns the work-item's index within its work-group.
func (w *WorkItem) LocalID(d int) int { return w.localID[d] }

// GroupID returns the work-group index in dimension d.
func (w *WorkItem) GroupID(d int) int { return w.groupID[d] }

// GlobalSize returns the launch's global size in dimension d.
func (w *WorkItem) GlobalSize(d int) int { return w.globalSize[d] }

// LocalSize returns the work-group size in dimension d.
func (w *WorkItem) LocalSize(d int) int { return w.localSize[d] }

// Define returns the value of a compile-time define. Reading a define the
// variant was not compiled with is a programming error in the kernel and
// panics, which the device reports as a runtime failure.
func (w *WorkItem) Define(name string) int {
	v, ok := w.defines[name]
	if !ok {
		panic(fmt.Sprintf("kernel read undefined parameter %s", name))
	}
	return v
}

// Int returns scalar argument i as an int.
func (w *WorkItem) Int(i int) int {
	a := w.arg(i)
	if a.Scalar == nil {
		panic(fmt.Sprintf("argument %d is not a scalar", i))
	}
	return a.Scalar.AsInt()
}

// Float32 returns buffer argument i as a []float32.
func (w *WorkItem) Float32(i int) []float32 {
	buf, ok := w.arg(i).Buffer.(*kernel.Slice[float32])
	if !ok {
		panic(fmt.Sprintf("argument %d is not a float32 buffer", i))
	}
	return buf.Data
}

// Float64 returns buffer argument i as a []float64.
func (w *WorkItem) Float64(i int) []float64 {
	buf, ok := w.arg(i).Buffer.(*kernel.Slice[float64])
	if !ok {
		panic(fmt.Sprintf("argument %d is not a float64 buffer", i))
	}
	return buf.Data
}

// Int32 returns buffer argument i as a []int32.
func (w *WorkItem) Int32(i int) []int32 {
	buf, ok := w.arg(i).Buffer.(*kernel.Slice[int32])
	if !ok {
		panic(fmt.Sprintf("argument %d is not an int32 buffer", i))
	}
	return buf.Data
}

func (w *WorkItem) arg(i int) kernel.Argument {
	if i < 0 || i >= len(w.args) {
		panic(fmt.Sprintf("kernel argument %d out of range (have %d)", i, len(w.args)))
	}
	return w.args[i]
}
