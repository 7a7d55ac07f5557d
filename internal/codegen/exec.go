package codegen

import (
	"fmt"
	"math"

	"drift/internal/ir"
	"drift/internal/types"
)

// maxSteps bounds total executed instructions per entry call so a
// miscompiled loop fails instead of hanging the compiler process.
const maxSteps = 1 << 26

type execState struct {
	engine *Engine
	steps  int
}

func (e *Engine) invoke(b *binding, args []uint64) (uint64, error) {
	st := &execState{engine: e}
	return st.call(b, args)
}

func (st *execState) call(b *binding, args []uint64) (uint64, error) {
	if b.ext != nil {
		return b.ext(args)
	}
	f := b.fn
	if f == nil {
		return 0, &SymbolError{Sym: b.sym}
	}
	if len(args) != len(f.Params) {
		return 0, fmt.Errorf("codegen: %s called with %d args, want %d", f.Name, len(args), len(f.Params))
	}
	vals := make([]uint64, f.NumValues)
	for i, p := range f.Params {
		vals[p.ID] = args[i]
	}

	cur := f.Entry
	for {
		if int(cur) >= len(f.Blocks) {
			return 0, fmt.Errorf("codegen: %s: jump to missing block b%d", f.Name, cur)
		}
		blk := &f.Blocks[cur]
		for i := range blk.Instrs {
			if st.steps++; st.steps > maxSteps {
				return 0, fmt.Errorf("codegen: %s: step budget exceeded", f.Name)
			}
			if err := st.step(f, &blk.Instrs[i], vals); err != nil {
				return 0, err
			}
		}
		switch blk.Term.Kind {
		case ir.TermRet:
			if blk.Term.Ret.HasValue {
				return vals[blk.Term.Ret.Value], nil
			}
			return 0, nil
		case ir.TermGoto:
			cur = blk.Term.Goto.Target
		case ir.TermIf:
			if vals[blk.Term.If.Cond] != 0 {
				cur = blk.Term.If.Then
			} else {
				cur = blk.Term.If.Else
			}
		case ir.TermUnreachable:
			return 0, fmt.Errorf("codegen: %s: reached unreachable in b%d", f.Name, cur)
		default:
			return 0, fmt.Errorf("codegen: %s: block b%d has no terminator", f.Name, cur)
		}
	}
}

func (st *execState) step(f *ir.Func, in *ir.Instr, vals []uint64) error {
	switch in.Kind {
	case ir.InstrConst:
		c := in.Const
		if c.Type.Kind == types.Float64 {
			vals[c.Dst] = math.Float64bits(c.Float)
		} else {
			vals[c.Dst] = uint64(c.Int)
		}
	case ir.InstrBin:
		b := in.Bin
		out, err := evalBin(f.Name, b, vals[b.LHS], vals[b.RHS])
		if err != nil {
			return err
		}
		vals[b.Dst] = out
	case ir.InstrConvert:
		c := in.Convert
		out, err := evalConvert(f.Name, c, vals[c.Src])
		if err != nil {
			return err
		}
		vals[c.Dst] = out
	case ir.InstrCall:
		c := in.Call
		callee, ok := st.engine.bySym[c.Callee]
		if !ok {
			return &SymbolError{Sym: c.Callee}
		}
		args := make([]uint64, len(c.Args))
		for i, a := range c.Args {
			args[i] = vals[a]
		}
		out, err := st.call(callee, args)
		if err != nil {
			return err
		}
		if c.Dst != ir.InvalidValue {
			vals[c.Dst] = out
		}
	case ir.InstrPtrAdd:
		p := in.PtrAdd
		vals[p.Dst] = uint64(int64(vals[p.Ptr]) + p.Offset)
	case ir.InstrLoad:
		l := in.Load
		addr := vals[l.Ptr] + uint64(l.Slot*8)
		w, err := st.engine.arena.ReadWord(addr)
		if err != nil {
			return fmt.Errorf("codegen: %s: %w", f.Name, err)
		}
		vals[l.Dst] = w
	case ir.InstrStore:
		s := in.Store
		addr := vals[s.Ptr] + uint64(s.Slot*8)
		if err := st.engine.arena.WriteWord(addr, vals[s.Val]); err != nil {
			return fmt.Errorf("codegen: %s: %w", f.Name, err)
		}
	default:
		return fmt.Errorf("codegen: %s: unknown instruction kind %d", f.Name, in.Kind)
	}
	return nil
}

func evalBin(fname string, b ir.BinInstr, lw, rw uint64) (uint64, error) {
	boolWord := func(v bool) uint64 {
		if v {
			return 1
		}
		return 0
	}
	if b.Type.Kind == types.Float64 {
		l, r := math.Float64frombits(lw), math.Float64frombits(rw)
		switch b.Op {
		case ir.OpAdd:
			return math.Float64bits(l + r), nil
		case ir.OpSub:
			return math.Float64bits(l - r), nil
		case ir.OpMul:
			return math.Float64bits(l * r), nil
		case ir.OpDiv:
			return math.Float64bits(l / r), nil
		case ir.OpRem:
			return math.Float64bits(math.Mod(l, r)), nil
		case ir.OpEq:
			return boolWord(l == r), nil
		case ir.OpNe:
			return boolWord(l != r), nil
		case ir.OpLt:
			return boolWord(l < r), nil
		default:
			return 0, fmt.Errorf("codegen: %s: op %s unsupported on f64", fname, b.Op)
		}
	}

	l, r := int64(lw), int64(rw)
	if b.Type.Kind == types.Int32 {
		l, r = int64(int32(lw)), int64(int32(rw))
	}
	switch b.Op {
	case ir.OpAdd:
		return uint64(l + r), nil
	case ir.OpSub:
		return uint64(l - r), nil
	case ir.OpMul:
		return uint64(l * r), nil
	case ir.OpDiv:
		if r == 0 {
			return 0, fmt.Errorf("codegen: %s: integer division by zero", fname)
		}
		return uint64(l / r), nil
	case ir.OpRem:
		if r == 0 {
			return 0, fmt.Errorf("codegen: %s: integer remainder by zero", fname)
		}
		return uint64(l % r), nil
	case ir.OpUDiv:
		if rw == 0 {
			return 0, fmt.Errorf("codegen: %s: integer division by zero", fname)
		}
		return lw / rw, nil
	case ir.OpURem:
		if rw == 0 {
			return 0, fmt.Errorf("codegen: %s: integer remainder by zero", fname)
		}
		return lw % rw, nil
	case ir.OpEq:
		return boolWord(l == r), nil
	case ir.OpNe:
		return boolWord(l != r), nil
	case ir.OpLt:
		return boolWord(l < r), nil
	default:
		return 0, fmt.Errorf("codegen: %s: unknown binary op %d", fname, b.Op)
	}
}

func evalConvert(fname string, c ir.ConvertInstr, w uint64) (uint64, error) {
	switch {
	case c.From.Kind == c.To.Kind:
		return w, nil
	case c.From.Kind == types.Int64 && c.To.Kind == types.Float64:
		return math.Float64bits(float64(int64(w))), nil
	case c.From.Kind == types.Int32 && c.To.Kind == types.Float64:
		return math.Float64bits(float64(int32(w))), nil
	case c.From.Kind == types.Float64 && c.To.Kind == types.Int64:
		return uint64(int64(math.Float64frombits(w))), nil
	case c.From.Kind == types.Int32 && c.To.Kind == types.Int64:
		return uint64(int64(int32(w))), nil
	case c.From.Kind == types.Int64 && c.To.Kind == types.Int32:
		return uint64(int64(int32(w))), nil
	case c.From.Kind == types.Bool && (c.To.Kind == types.Int32 || c.To.Kind == types.Int64):
		return w & 1, nil
	default:
		return 0, fmt.Errorf("codegen: %s: unsupported conversion %s -> %s", fname, c.From, c.To)
	}
}
