package target

import (
	"math"
	"testing"

	"drift/internal/abi"
	"drift/internal/hostrt"
	"drift/internal/ir"
	"drift/internal/types"
)

func powiFunc() *ir.Func {
	f := ir.NewFunc("powi", types.Signature{
		Params: []types.Type{types.Float64Type, types.Int64Type},
		Result: types.Float64Type,
	})
	b := ir.NewBuilder(f)
	b.Ret(b.Call(abi.IntrPowi, types.Float64Type, f.Params[0].ID, f.Params[1].ID))
	return f
}

func wideDivFunc() *ir.Func {
	f := ir.NewFunc("divrem", types.Signature{
		Params: []types.Type{types.Int64Type, types.Int64Type},
		Result: types.Int64Type,
	})
	b := ir.NewBuilder(f)
	q := b.Bin(ir.OpDiv, types.Int64Type, f.Params[0].ID, f.Params[1].ID)
	r := b.Bin(ir.OpRem, types.Int64Type, f.Params[0].ID, f.Params[1].ID)
	b.Ret(b.Bin(ir.OpAdd, types.Int64Type, q, r))
	return f
}

func callees(f *ir.Func) map[string]int {
	out := make(map[string]int)
	for _, blk := range f.Blocks {
		for _, in := range blk.Instrs {
			if in.Kind == ir.InstrCall {
				out[in.Call.Callee]++
			}
		}
	}
	return out
}

func TestPostLowering_PowiRewrittenOnLinux(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("linux", "amd64"), Options{})
	f := powiFunc()
	c.PostLowering(f)

	calls := callees(f)
	if calls[abi.IntrPowi] != 0 {
		t.Error("power intrinsic survived the fixup")
	}
	if calls[abi.SymSitofp] != 1 || calls[abi.SymPow] != 1 {
		t.Errorf("rewrite calls = %v, want one sitofp and one pow", calls)
	}
}

func TestPostLowering_PowiKeptOnDarwin(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("darwin", "arm64"), Options{})
	f := powiFunc()
	c.PostLowering(f)

	if calls := callees(f); calls[abi.IntrPowi] != 1 {
		t.Errorf("calls = %v, intrinsic should be untouched on darwin", calls)
	}
}

func TestPostLowering_PowiResultRegisterPreserved(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("windows", "amd64"), Options{})
	f := powiFunc()
	retVal := f.Blocks[0].Term.Ret.Value
	c.PostLowering(f)

	var powDst ir.ValueID = ir.InvalidValue
	for _, in := range f.Blocks[0].Instrs {
		if in.Kind == ir.InstrCall && in.Call.Callee == abi.SymPow {
			powDst = in.Call.Dst
		}
	}
	if powDst != retVal {
		t.Errorf("pow result lands in %%%d, return reads %%%d", powDst, retVal)
	}
}

func TestPostLowering_WideDivisionOn32Bit(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("linux", "arm"), Options{})
	f := wideDivFunc()
	c.PostLowering(f)

	calls := callees(f)
	if calls[abi.SymSDiv64] != 1 || calls[abi.SymSRem64] != 1 {
		t.Errorf("calls = %v, want sdiv64 and srem64 helpers", calls)
	}
	for _, blk := range f.Blocks {
		for _, in := range blk.Instrs {
			if in.Kind == ir.InstrBin && (in.Bin.Op == ir.OpDiv || in.Bin.Op == ir.OpRem) && in.Bin.Type.Kind == types.Int64 {
				t.Error("wide division instruction survived on a 32-bit target")
			}
		}
	}
}

func TestPostLowering_WideDivisionKeptOn64Bit(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("linux", "amd64"), Options{})
	f := wideDivFunc()
	c.PostLowering(f)

	if calls := callees(f); len(calls) != 0 {
		t.Errorf("calls = %v, want none on a 64-bit target", calls)
	}
}

func TestPostLowering_Int32DivisionUntouched(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("linux", "arm"), Options{})
	f := ir.NewFunc("div32", types.Signature{
		Params: []types.Type{types.Int32Type, types.Int32Type},
		Result: types.Int32Type,
	})
	b := ir.NewBuilder(f)
	b.Ret(b.Bin(ir.OpDiv, types.Int32Type, f.Params[0].ID, f.Params[1].ID))
	c.PostLowering(f)

	if calls := callees(f); len(calls) != 0 {
		t.Errorf("calls = %v, 32-bit division needs no helper", calls)
	}
}

// The rewritten powi sequence must execute and agree with pow.
func TestPostLowering_PowiExecutes(t *testing.T) {
	c := newTestContext(t, Options{})
	f := powiFunc()
	c.PostLowering(f)

	m, _ := c.CreateModule("powi")
	m.Funcs = append(m.Funcs, f)
	lib, _ := c.CreateLibrary("powi")
	if err := lib.AddModule(m); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := lib.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	engine, err := c.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	out, err := engine.CallSym("powi", []uint64{math.Float64bits(2.0), 10})
	if err != nil {
		t.Fatalf("CallSym: %v", err)
	}
	if got := math.Float64frombits(out); got != 1024.0 {
		t.Errorf("powi(2, 10) = %v, want 1024", got)
	}
}
