package device

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/zuqini/CLTune/internal/kernel"
)

// CPU is an in-process device that runs registered Go kernel functions.
// Launches are executed asynchronously on worker goroutines, one work-group
// at a time; work-items within a group run sequentially, so kernels may not
// rely on cross-item synchronization inside a group.
type CPU struct {
	mu      sync.Mutex
	entries map[string]Registration
	wg      sync.WaitGroup
	errMu   sync.Mutex
	err     error
}

// NewCPU creates a CPU device with the builtin kernels registered.
func NewCPU() *CPU {
	c := &CPU{entries: make(map[string]Registration)}
	registerBuiltins(c)
	return c
}

// Register adds a kernel function under its entry-point name.
func (c *CPU) Register(reg Registration) error {
	if reg.Entry == "" {
		return fmt.Errorf("kernel registration has no entry point")
	}
	if reg.Fn == nil {
		return fmt.Errorf("kernel %s has no function", reg.Entry)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[reg.Entry]; ok {
		return fmt.Errorf("kernel %s already registered", reg.Entry)
	}
	c.entries[reg.Entry] = reg
	return nil
}

func (c *CPU) Name() string { return "cpu" }

// Info reports the host processor as seen by the tuner.
func (c *CPU) Info() Info {
	return Info{
		Name:            "cpu",
		Vendor:          runtime.GOARCH,
		Type:            "CPU",
		MaxComputeUnits: runtime.NumCPU(),
		Features:        cpuFeatures(),
	}
}

// Compile resolves the entry point and captures the variant's defines.
func (c *CPU) Compile(source, entry string, defines map[string]int) (Program, error) {
	c.mu.Lock()
	reg, ok := c.entries[entry]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("entry point %s not found in %s", entry, source)
	}
	for _, name := range reg.Requires {
		if _, ok := defines[name]; !ok {
			return nil, fmt.Errorf("kernel %s requires parameter %s", entry, name)
		}
	}
	captured := make(map[string]int, len(defines))
	for k, v := range defines {
		captured[k] = v
	}
	return &cpuProgram{dev: c, reg: reg, defines: captured}, nil
}

// Finish blocks until all enqueued launches drain and returns the first
// execution error observed since the previous call.
func (c *CPU) Finish() error {
	c.wg.Wait()
	c.errMu.Lock()
	defer c.errMu.Unlock()
	err := c.err
	c.err = nil
	return err
}

func (c *CPU) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

type cpuProgram struct {
	dev      *CPU
	reg      Registration
	defines  map[string]int
	released bool
}

func (p *cpuProgram) Enqueue(global, local kernel.Dims, args []kernel.Argument) error {
	if p.released {
		return fmt.Errorf("kernel %s enqueued after release", p.reg.Entry)
	}
	if len(global) == 0 || len(global) > 3 || len(local) != len(global) {
		return fmt.Errorf("invalid launch geometry global=%v local=%v", global, local)
	}
	var g3, l3 [3]int
	for i := range g3 {
		g3[i], l3[i] = 1, 1
	}
	for i := range global {
		if global[i] <= 0 || local[i] <= 0 || global[i]%local[i] != 0 {
			return fmt.Errorf("invalid launch geometry global=%v local=%v", global, local)
		}
		g3[i], l3[i] = global[i], local[i]
	}

	p.dev.wg.Add(1)
	go func() {
		defer p.dev.wg.Done()
		p.dev.execute(p.reg, g3, l3, p.defines, args)
	}()
	return nil
}

func (p *cpuProgram) Release() { p.released = true }

// execute runs every work-group of a launch, spreading groups over worker
// goroutines. Kernel panics are recovered and reported as execution errors.
func (c *CPU) execute(reg Registration, global, local [3]int, defines map[string]int, args []kernel.Argument) {
	var groups [3]int
	total := 1
	for d := range groups {
		groups[d] = global[d] / local[d]
		total *= groups[d]
	}

	workers := runtime.NumCPU()
	if workers > total {
		workers = total
	}
	next := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wi := WorkItem{
				globalSize: global,
				localSize:  local,
				defines:    defines,
				args:       args,
			}
			// Recover per group so a kernel panic never leaves the group
			// channel undrained.
			for flat := range next {
				wi.groupID[0] = flat % groups[0]
				wi.groupID[1] = (flat / groups[0]) % groups[1]
				wi.groupID[2] = flat / (groups[0] * groups[1])
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.setErr(fmt.Errorf("kernel %s: %v", reg.Entry, r))
						}
					}()
					runGroup(reg.Fn, &wi)
				}()
			}
		}()
	}
	for flat := 0; flat < total; flat++ {
		next <- flat
	}
	close(next)
	wg.Wait()
}

func runGroup(fn Func, wi *WorkItem) {
	for lz := 0; lz < wi.localSize[2]; lz++ {
		for ly := 0; ly < wi.localSize[1]; ly++ {
			for lx := 0; lx < wi.localSize[0]; lx++ {
				wi.localID = [3]int{lx, ly, lz}
				wi.globalID = [3]int{
					wi.groupID[0]*wi.localSize[0] + lx,
					wi.groupID[1]*wi.localSize[1] + ly,
					wi.groupID[2]*wi.localSize[2] + lz,
				}
				fn(wi)
			}
		}
	}
}

func cpuFeatures() []string {
	var fs []string
	if cpu.X86.HasSSE42 {
		fs = append(fs, "sse4.2")
	}
	if cpu.X86.HasAVX2 {
		fs = append(fs, "avx2")
	}
	if cpu.X86.HasFMA {
		fs = append(fs, "fma")
	}
	if cpu.X86.HasAVX512F {
		fs = append(fs, "avx512f")
	}
	if cpu.ARM64.HasASIMD {
		fs = append(fs, "asimd")
	}
	if cpu.ARM64.HasSVE {
		fs = append(fs, "sve")
	}
	return fs
}
