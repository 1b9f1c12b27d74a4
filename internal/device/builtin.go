package device

// Builtin kernels available on every CPU device. They back the YAML-driven
// tune command, the SGEMM demo and the package tests. Kernels accept (but do
// not necessarily use) every argument and define the caller binds, mirroring
// how tunable device kernels are written.

func registerBuiltins(c *CPU) {
	regs := []Registration{
		{
			Entry:    "vector_add",
			Requires: []string{"VW"},
			Fn:       vectorAdd,
		},
		{
			Entry: "vector_add_reference",
			Fn:    vectorAddReference,
		},
		{
			Entry:    "gemm_fast",
			Requires: []string{"MWG", "NWG", "KWG", "MDIMC", "NDIMC"},
			Fn:       gemmFast,
		},
		{
			Entry: "gemm_reference",
			Fn:    gemmReference,
		},
	}
	for _, reg := range regs {
		// Registry is empty at construction, so this cannot collide.
		_ = c.Register(reg)
	}
}

// vectorAdd computes c = a + b with VW elements per work-item.
// Arguments: n (scalar), a (input), b (input), c (output).
func vectorAdd(wi *WorkItem) {
	n := wi.Int(0)
	a := wi.Float32(1)
	b := wi.Float32(2)
	c := wi.Float32(3)
	vw := wi.Define("VW")

	base := wi.GlobalID(0) * vw
	for k := 0; k < vw; k++ {
		i := base + k
		if i < n {
			c[i] = a[i] + b[i]
		}
	}
}

// vectorAddReference computes one element per work-item.
func vectorAddReference(wi *WorkItem) {
	n := wi.Int(0)
	a := wi.Float32(1)
	b := wi.Float32(2)
	c := wi.Float32(3)

	if i := wi.GlobalID(0); i < n {
		c[i] = a[i] + b[i]
	}
}

// gemmFast is a tiled C = A * B^T kernel in the style of the CLTune SGEMM
// sample. Matrices are column-major: A is KxM stored a[k*M+m], B is KxN
// stored b[k*N+n] (pre-transposed), C is NxM stored c[n*M+m]. Each
// work-group computes an MWG x NWG tile of C with MDIMC x NDIMC work-items;
// every work-item accumulates an (MWG/MDIMC) x (NWG/NDIMC) sub-block with
// the k loop blocked by KWG.
// Arguments: M, N, K (scalars), a (input), b (input), c (output).
func gemmFast(wi *WorkItem) {
	sizeM := wi.Int(0)
	sizeN := wi.Int(1)
	sizeK := wi.Int(2)
	a := wi.Float32(3)
	b := wi.Float32(4)
	c := wi.Float32(5)

	mwg := wi.Define("MWG")
	nwg := wi.Define("NWG")
	kwg := wi.Define("KWG")
	mdimc := wi.Define("MDIMC")
	ndimc := wi.Define("NDIMC")

	mwi := mwg / mdimc
	nwi := nwg / ndimc

	for mi := 0; mi < mwi; mi++ {
		m := wi.GroupID(0)*mwg + mi*mdimc + wi.LocalID(0)
		if m >= sizeM {
			continue
		}
		for ni := 0; ni < nwi; ni++ {
			n := wi.GroupID(1)*nwg + ni*ndimc + wi.LocalID(1)
			if n >= sizeN {
				continue
			}
			var acc float32
			for k0 := 0; k0 < sizeK; k0 += kwg {
				kEnd := k0 + kwg
				if kEnd > sizeK {
					kEnd = sizeK
				}
				for k := k0; k < kEnd; k++ {
					acc += a[k*sizeM+m] * b[k*sizeN+n]
				}
			}
			c[n*sizeM+m] = acc
		}
	}
}

// gemmReference computes one element of C per work-item.
func gemmReference(wi *WorkItem) {
	sizeM := wi.Int(0)
	sizeN := wi.Int(1)
	sizeK := wi.Int(2)
	a := wi.Float32(3)
	b := wi.Float32(4)
	c := wi.Float32(5)

	m := wi.GlobalID(0)
	n := wi.GlobalID(1)
	if m >= sizeM || n >= sizeN {
		return
	}
	var acc float32
	for k := 0; k < sizeK; k++ {
		acc += a[k*sizeM+m] * b[k*sizeN+n]
	}
	c[n*sizeM+m] = acc
}
