package kernel

import (
	"fmt"
	"slices"
)

// ElemKind identifies the element type of a scalar or buffer argument.
type ElemKind int

const (
	ElemInt32 ElemKind = iota
	ElemInt64
	ElemFloat32
	ElemFloat64
)

func (k ElemKind) String() string {
	switch k {
	case ElemInt32:
		return "int32"
	case ElemInt64:
		return "int64"
	case ElemFloat32:
		return "float32"
	case ElemFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Direction describes how a kernel uses a buffer argument.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
	DirInputOutput
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	case DirInputOutput:
		return "input-output"
	default:
		return "unknown"
	}
}

// Element is the set of supported scalar and buffer element types.
type Element interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// Buffer is a typed device-visible array. Kernels access the concrete
// *Slice[T] form; the verifier and reporter only need the widened view.
type Buffer interface {
	Len() int
	Kind() ElemKind
	// Clone returns an independent copy of the buffer contents.
	Clone() Buffer
	// Float returns element i widened to float64.
	Float(i int) float64
}

// Slice is the concrete buffer backing store.
type Slice[T Element] struct {
	Data []T
}

// NewSlice wraps data in a buffer without copying it.
func NewSlice[T Element](data []T) *Slice[T] {
	return &Slice[T]{Data: data}
}

func (s *Slice[T]) Len() int { return len(s.Data) }

func (s *Slice[T]) Kind() ElemKind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return ElemInt32
	case int64:
		return ElemInt64
	case float32:
		return ElemFloat32
	default:
		return ElemFloat64
	}
}

func (s *Slice[T]) Clone() Buffer {
	return &Slice[T]{Data: slices.Clone(s.Data)}
}

func (s *Slice[T]) Float(i int) float64 {
	return float64(s.Data[i])
}

// NewBuffer wraps a supported slice type in a Buffer.
func NewBuffer(data any) (Buffer, error) {
	switch v := data.(type) {
	case []int32:
		return NewSlice(v), nil
	case []int64:
		return NewSlice(v), nil
	case []float32:
		return NewSlice(v), nil
	case []float64:
		return NewSlice(v), nil
	default:
		return nil, fmt.Errorf("unsupported buffer type %T", data)
	}
}

// Scalar is a typed immediate argument value.
type Scalar struct {
	Kind ElemKind
	Int  int64
	Real float64
}

// NewScalar converts a supported Go value into a scalar argument.
func NewScalar(v any) (Scalar, error) {
	switch x := v.(type) {
	case int:
		return Scalar{Kind: ElemInt64, Int: int64(x)}, nil
	case int32:
		return Scalar{Kind: ElemInt32, Int: int64(x)}, nil
	case int64:
		return Scalar{Kind: ElemInt64, Int: x}, nil
	case float32:
		return Scalar{Kind: ElemFloat32, Real: float64(x)}, nil
	case float64:
		return Scalar{Kind: ElemFloat64, Real: x}, nil
	default:
		return Scalar{}, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// AsInt returns the scalar as an int, truncating floats.
func (s Scalar) AsInt() int {
	if s.Kind == ElemFloat32 || s.Kind == ElemFloat64 {
		return int(s.Real)
	}
	return int(s.Int)
}

// AsFloat64 returns the scalar widened to float64.
func (s Scalar) AsFloat64() float64 {
	if s.Kind == ElemFloat32 || s.Kind == ElemFloat64 {
		return s.Real
	}
	return float64(s.Int)
}

// Argument is one kernel argument: either a scalar or a directed buffer.
// Argument order follows registration order.
type Argument struct {
	Index     int
	Direction Direction
	Scalar    *Scalar
	Buffer    Buffer
}

// IsBuffer reports whether the argument carries a buffer.
func (a Argument) IsBuffer() bool { return a.Buffer != nil }

// IsOutput reports whether a trial may write the argument.
func (a Argument) IsOutput() bool {
	return a.IsBuffer() && (a.Direction == DirOutput || a.Direction == DirInputOutput)
}

// CloneForTrial rebinds every output and input-output buffer to a fresh copy
// of its registered contents, so one trial's writes never leak into the next.
// Inputs and scalars are shared unmodified across trials.
func CloneForTrial(args []Argument) []Argument {
	out := slices.Clone(args)
	for i := range out {
		if out[i].IsOutput() {
			out[i].Buffer = out[i].Buffer.Clone()
		}
	}
	return out
}
