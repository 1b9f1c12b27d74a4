package kernel

import "testing"

func TestBufferCloneIsIndependent(t *testing.T) {
	orig := NewSlice([]float32{1, 2, 3})
	clone := orig.Clone().(*Slice[float32])
	clone.Data[0] = 99
	if orig.Data[0] != 1 {
		t.Errorf("clone write leaked into original: got %v", orig.Data[0])
	}
}

func TestNewBufferKinds(t *testing.T) {
	cases := []struct {
		data any
		want ElemKind
	}{
		{[]int32{1}, ElemInt32},
		{[]int64{1}, ElemInt64},
		{[]float32{1}, ElemFloat32},
		{[]float64{1}, ElemFloat64},
	}
	for _, tc := range cases {
		buf, err := NewBuffer(tc.data)
		if err != nil {
			t.Fatalf("NewBuffer(%T): %v", tc.data, err)
		}
		if buf.Kind() != tc.want {
			t.Errorf("kind for %T: got %s, want %s", tc.data, buf.Kind(), tc.want)
		}
	}
	if _, err := NewBuffer([]string{"no"}); err == nil {
		t.Error("expected error for unsupported element type")
	}
}

func TestNewScalar(t *testing.T) {
	s, err := NewScalar(int32(7))
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != ElemInt32 || s.AsInt() != 7 {
		t.Errorf("int32 scalar: got kind=%s value=%d", s.Kind, s.AsInt())
	}
	s, err = NewScalar(2.5)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != ElemFloat64 || s.AsFloat64() != 2.5 {
		t.Errorf("float64 scalar: got kind=%s value=%v", s.Kind, s.AsFloat64())
	}
	if _, err := NewScalar("no"); err == nil {
		t.Error("expected error for unsupported scalar type")
	}
}

func TestCloneForTrialRebindsOutputsOnly(t *testing.T) {
	in := NewSlice([]float32{1, 2})
	out := NewSlice([]float32{0, 0})
	args := []Argument{
		{Index: 0, Direction: DirInput, Buffer: in},
		{Index: 1, Direction: DirOutput, Buffer: out},
	}

	trial := CloneForTrial(args)
	if trial[0].Buffer != Buffer(in) {
		t.Error("input buffer should be shared across trials")
	}
	if trial[1].Buffer == Buffer(out) {
		t.Error("output buffer should be rebound per trial")
	}
	trial[1].Buffer.(*Slice[float32]).Data[0] = 42
	if out.Data[0] != 0 {
		t.Errorf("trial write clobbered registered output buffer: %v", out.Data)
	}
}
