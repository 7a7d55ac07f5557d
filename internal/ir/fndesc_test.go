package ir

import (
	"strings"
	"testing"

	"drift/internal/abi"
	"drift/internal/types"
)

func TestNewFuncDesc_Symbols(t *testing.T) {
	sig := types.Signature{
		Params: []types.Type{types.Int64Type, types.Int64Type},
		Result: types.Int64Type,
	}
	d := NewFuncDesc("pkg.mod.add", "pkg.mod", "adds two ints", sig, true)

	if !strings.HasPrefix(d.Sym, abi.FuncPrefix) {
		t.Errorf("Sym = %q, want prefix %q", d.Sym, abi.FuncPrefix)
	}
	if !strings.HasPrefix(d.WrapperSym, abi.WrapperPrefix) {
		t.Errorf("WrapperSym = %q, want prefix %q", d.WrapperSym, abi.WrapperPrefix)
	}
	if d.Sym == d.WrapperSym {
		t.Errorf("native and wrapper symbols collide: %q", d.Sym)
	}
	if got := d.ShortName(); got != "add" {
		t.Errorf("ShortName = %q, want %q", got, "add")
	}
}

func TestMangle_Deterministic(t *testing.T) {
	sig := types.Signature{Params: []types.Type{types.Float64Type}}
	a := Mangle("m.f", sig)
	b := Mangle("m.f", sig)
	if a != b {
		t.Errorf("Mangle not deterministic: %q vs %q", a, b)
	}
}

func TestMangle_SignatureDistinguishes(t *testing.T) {
	intSig := types.Signature{Params: []types.Type{types.Int64Type}}
	fltSig := types.Signature{Params: []types.Type{types.Float64Type}}
	if Mangle("m.f", intSig) == Mangle("m.f", fltSig) {
		t.Error("different signatures produced identical symbols")
	}
}

func TestMangle_UnicodeNormalization(t *testing.T) {
	sig := types.Signature{}
	// U+00E9 vs e + U+0301: same identifier, different code points.
	composed := Mangle("m.caf\u00e9", sig)
	decomposed := Mangle("m.cafe\u0301", sig)
	if composed != decomposed {
		t.Errorf("NFKC forms diverge: %q vs %q", composed, decomposed)
	}
}

func TestMangle_EscapesNonAlnum(t *testing.T) {
	sig := types.Signature{}
	sym := Mangle("m.a_b-c", sig)
	for _, r := range sym {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if !alnum {
			t.Fatalf("symbol %q contains non-linker-safe rune %q", sym, r)
		}
	}
}

func TestMangle_ArrayTypeCode(t *testing.T) {
	sig := types.Signature{Params: []types.Type{types.ArrayOf(types.Float64, 2)}}
	sym := Mangle("m.f", sig)
	if !strings.Contains(sym, "A2d") {
		t.Errorf("Mangle with rank-2 f64 array = %q, want to contain %q", sym, "A2d")
	}
}
