package target

import (
	"drift/internal/abi"
	"drift/internal/ir"
	"drift/internal/types"
)

// PostLowering applies the platform-conditioned IR rewrites that must
// run after a function body is generated and before it is handed to
// the code generator. Unsupported constructs are rewritten, never
// surfaced as errors.
func (c *Context) PostLowering(f *ir.Func) {
	if f == nil {
		return
	}
	if c.platform.NeedsPowiFixup {
		rewritePowi(f)
	}
	if c.platform.Is32Bit {
		rewriteWideDivision(f)
	}
}

// rewritePowi replaces calls to the power intrinsic with a convert
// through the runtime pow helper. The intrinsic takes (f64 base,
// i64 exponent); the replacement converts the exponent and calls pow.
// Rewrites splice into a fresh instruction slice so scan indexes stay
// valid.
func rewritePowi(f *ir.Func) {
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		changed := false
		for _, in := range blk.Instrs {
			if in.Kind == ir.InstrCall && in.Call.Callee == abi.IntrPowi {
				changed = true
				break
			}
		}
		if !changed {
			continue
		}

		out := make([]ir.Instr, 0, len(blk.Instrs)+2)
		for _, in := range blk.Instrs {
			if in.Kind != ir.InstrCall || in.Call.Callee != abi.IntrPowi || len(in.Call.Args) != 2 {
				out = append(out, in)
				continue
			}
			expF := ir.ValueID(f.NumValues)
			f.NumValues++
			out = append(out,
				ir.Instr{Kind: ir.InstrCall, Call: ir.CallInstr{
					Dst: expF, Type: types.Float64Type,
					Callee: abi.SymSitofp, Args: []ir.ValueID{in.Call.Args[1]},
				}},
				ir.Instr{Kind: ir.InstrCall, Call: ir.CallInstr{
					Dst: in.Call.Dst, Type: types.Float64Type,
					Callee: abi.SymPow, Args: []ir.ValueID{in.Call.Args[0], expF},
				}},
			)
		}
		blk.Instrs = out
	}
}

// rewriteWideDivision lowers 64-bit division and remainder to runtime
// helper calls on targets whose native support routine is unavailable.
func rewriteWideDivision(f *ir.Func) {
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			in := &blk.Instrs[ii]
			if in.Kind != ir.InstrBin || in.Bin.Type.Kind != types.Int64 {
				continue
			}
			var sym string
			switch in.Bin.Op {
			case ir.OpDiv:
				sym = abi.SymSDiv64
			case ir.OpRem:
				sym = abi.SymSRem64
			case ir.OpUDiv:
				sym = abi.SymUDiv64
			case ir.OpURem:
				sym = abi.SymURem64
			default:
				continue
			}
			*in = ir.Instr{Kind: ir.InstrCall, Call: ir.CallInstr{
				Dst: in.Bin.Dst, Type: types.Int64Type,
				Callee: sym, Args: []ir.ValueID{in.Bin.LHS, in.Bin.RHS},
			}}
		}
	}
}
