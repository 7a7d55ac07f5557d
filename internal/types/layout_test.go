package types

import (
	"errors"
	"testing"

	"drift/internal/abi"
)

func TestSizeOf_Scalars(t *testing.T) {
	l := NewLayout(abi.ResolvePlatform("linux", "amd64"))
	for _, tc := range []struct {
		typ  Type
		want int
	}{
		{VoidType, 0},
		{BoolType, 1},
		{Int32Type, 4},
		{Int64Type, 8},
		{Float64Type, 8},
		{ObjectType, 8},
		{RawPtrType, 8},
	} {
		got, err := l.SizeOf(tc.typ)
		if err != nil {
			t.Errorf("SizeOf(%s): %v", tc.typ, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SizeOf(%s) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestSizeOf_ArrayDescriptor(t *testing.T) {
	l := NewLayout(abi.ResolvePlatform("linux", "amd64"))

	// Rank zero is the fixed head alone.
	got, err := l.SizeOf(ArrayOf(Int64, 0))
	if err != nil {
		t.Fatalf("SizeOf(rank 0): %v", err)
	}
	if want := abi.ArrayHeadWords * abi.WordSize; got != want {
		t.Errorf("rank 0 size = %d, want %d", got, want)
	}

	// Element type never changes the size; rank adds two words.
	prev := got
	for ndim := 1; ndim <= 8; ndim++ {
		forInt, err := l.SizeOf(ArrayOf(Int64, ndim))
		if err != nil {
			t.Fatalf("SizeOf(rank %d): %v", ndim, err)
		}
		forFloat, err := l.SizeOf(ArrayOf(Float64, ndim))
		if err != nil {
			t.Fatalf("SizeOf(float rank %d): %v", ndim, err)
		}
		if forInt != forFloat {
			t.Errorf("rank %d: element type changed size (%d vs %d)", ndim, forInt, forFloat)
		}
		if forInt != prev+abi.ArrayWordsPerDim*abi.WordSize {
			t.Errorf("rank %d size = %d, want %d", ndim, forInt, prev+abi.ArrayWordsPerDim*abi.WordSize)
		}
		prev = forInt
	}
}

func TestSizeOf_WordSizeIndependentOfTarget(t *testing.T) {
	l64 := NewLayout(abi.ResolvePlatform("linux", "amd64"))
	l32 := NewLayout(abi.ResolvePlatform("linux", "arm"))
	for _, typ := range []Type{ObjectType, RawPtrType, ArrayOf(Int64, 2)} {
		a, err := l64.SizeOf(typ)
		if err != nil {
			t.Fatalf("SizeOf(%s) on amd64: %v", typ, err)
		}
		b, err := l32.SizeOf(typ)
		if err != nil {
			t.Fatalf("SizeOf(%s) on arm: %v", typ, err)
		}
		if a != b {
			t.Errorf("%s: size differs across word widths (%d vs %d)", typ, a, b)
		}
	}
}

func TestSizeOf_Errors(t *testing.T) {
	l := NewLayout(abi.ResolvePlatform("linux", "amd64"))

	var lerr *LayoutError
	if _, err := l.SizeOf(ArrayOf(Int64, -1)); !errors.As(err, &lerr) || lerr.Kind != LayoutErrNegativeRank {
		t.Errorf("negative rank error = %v", err)
	}
	if _, err := l.SizeOf(Type{}); !errors.As(err, &lerr) || lerr.Kind != LayoutErrInvalidType {
		t.Errorf("invalid type error = %v", err)
	}
}

func TestAlignOf(t *testing.T) {
	l := NewLayout(abi.ResolvePlatform("linux", "amd64"))
	for _, tc := range []struct {
		typ  Type
		want int
	}{
		{BoolType, 1},
		{Int32Type, 4},
		{Int64Type, 8},
		{ArrayOf(Float64, 3), 8},
	} {
		got, err := l.AlignOf(tc.typ)
		if err != nil {
			t.Errorf("AlignOf(%s): %v", tc.typ, err)
			continue
		}
		if got != tc.want {
			t.Errorf("AlignOf(%s) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestTypeStringRoundTrip(t *testing.T) {
	for _, typ := range []Type{
		VoidType, BoolType, Int32Type, Int64Type, Float64Type,
		ObjectType, RawPtrType, ArrayOf(Int64, 1), ArrayOf(Float64, 4),
	} {
		back, ok := ParseType(typ.String())
		if !ok {
			t.Errorf("ParseType(%q) rejected", typ.String())
			continue
		}
		if back != typ {
			t.Errorf("round trip %s -> %s", typ, back)
		}
	}
	if _, ok := ParseType("tuple"); ok {
		t.Error("ParseType accepted unknown spelling")
	}
}
