package codegen

import (
	"fmt"
	"sort"
	"strings"

	"drift/internal/ir"
	"drift/internal/types"
)

type funcSig struct {
	ret    string
	params []string
}

// EmitModuleText renders a module as an LLVM-flavored textual
// artifact. Banner lines (the embedded ABI header, typically) are
// prepended as comments so the artifact documents the layout contract
// it assumes.
func EmitModuleText(m *ir.Module, banner string) (string, error) {
	if m == nil {
		return "", nil
	}
	var buf strings.Builder
	for _, line := range strings.Split(strings.TrimRight(banner, "\n"), "\n") {
		if line == "" && banner == "" {
			continue
		}
		fmt.Fprintf(&buf, "; %s\n", line)
	}
	if banner != "" {
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "; ModuleID = '%s'\n\n", m.Name)

	emitDecls(&buf, m)

	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := emitFunc(&buf, f); err != nil {
			return "", err
		}
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// emitDecls declares every called symbol not defined in the module,
// with the signature reconstructed from its call sites.
func emitDecls(buf *strings.Builder, m *ir.Module) {
	defined := make(map[string]bool, len(m.Funcs))
	for _, f := range m.Funcs {
		if f != nil {
			defined[f.Name] = true
		}
	}
	sigs := make(map[string]funcSig)
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		for bi := range f.Blocks {
			for ii := range f.Blocks[bi].Instrs {
				in := &f.Blocks[bi].Instrs[ii]
				if in.Kind != ir.InstrCall || defined[in.Call.Callee] {
					continue
				}
				if _, ok := sigs[in.Call.Callee]; ok {
					continue
				}
				params := make([]string, len(in.Call.Args))
				for i := range params {
					params[i] = "i64"
				}
				sigs[in.Call.Callee] = funcSig{ret: llvmType(in.Call.Type), params: params}
			}
		}
	}
	names := make([]string, 0, len(sigs))
	for n := range sigs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := sigs[n]
		fmt.Fprintf(buf, "declare %s @%s(%s)\n", s.ret, n, strings.Join(s.params, ", "))
	}
	if len(names) > 0 {
		buf.WriteString("\n")
	}
}

func emitFunc(buf *strings.Builder, f *ir.Func) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%v%d", llvmType(p.Type), p.ID)
	}
	fmt.Fprintf(buf, "define %s @%s(%s) {\n", llvmType(f.Result), f.Name, strings.Join(params, ", "))
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		fmt.Fprintf(buf, "b%d:\n", b.ID)
		for ii := range b.Instrs {
			line, err := emitInstr(&b.Instrs[ii])
			if err != nil {
				return fmt.Errorf("codegen: emit %s: %w", f.Name, err)
			}
			fmt.Fprintf(buf, "  %s\n", line)
		}
		fmt.Fprintf(buf, "  %s\n", emitTerm(&b.Term, f))
	}
	buf.WriteString("}\n")
	return nil
}

func emitInstr(in *ir.Instr) (string, error) {
	switch in.Kind {
	case ir.InstrConst:
		c := in.Const
		if c.Type.Kind == types.Float64 {
			return fmt.Sprintf("%%v%d = fadd double %g, 0.0", c.Dst, c.Float), nil
		}
		return fmt.Sprintf("%%v%d = add %s %d, 0", c.Dst, llvmType(c.Type), c.Int), nil
	case ir.InstrBin:
		b := in.Bin
		ty := llvmType(b.Type)
		op, err := llvmBinOp(b.Op, b.Type)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%%v%d = %s %s %%v%d, %%v%d", b.Dst, op, ty, b.LHS, b.RHS), nil
	case ir.InstrConvert:
		c := in.Convert
		op := convertOp(c.From, c.To)
		return fmt.Sprintf("%%v%d = %s %s %%v%d to %s", c.Dst, op, llvmType(c.From), c.Src, llvmType(c.To)), nil
	case ir.InstrCall:
		c := in.Call
		args := make([]string, len(c.Args))
		for i, a := range c.Args {
			args[i] = fmt.Sprintf("i64 %%v%d", a)
		}
		if c.Dst == ir.InvalidValue {
			return fmt.Sprintf("call void @%s(%s)", c.Callee, strings.Join(args, ", ")), nil
		}
		return fmt.Sprintf("%%v%d = call %s @%s(%s)", c.Dst, llvmType(c.Type), c.Callee, strings.Join(args, ", ")), nil
	case ir.InstrPtrAdd:
		p := in.PtrAdd
		return fmt.Sprintf("%%v%d = getelementptr i8, ptr %%v%d, i64 %d", p.Dst, p.Ptr, p.Offset), nil
	case ir.InstrLoad:
		l := in.Load
		if l.Slot != 0 {
			return fmt.Sprintf("%%v%d = load %s, ptr getelementptr(i64, ptr %%v%d, i64 %d)", l.Dst, llvmType(l.Type), l.Ptr, l.Slot), nil
		}
		return fmt.Sprintf("%%v%d = load %s, ptr %%v%d", l.Dst, llvmType(l.Type), l.Ptr), nil
	case ir.InstrStore:
		s := in.Store
		if s.Slot != 0 {
			return fmt.Sprintf("store i64 %%v%d, ptr getelementptr(i64, ptr %%v%d, i64 %d)", s.Val, s.Ptr, s.Slot), nil
		}
		return fmt.Sprintf("store i64 %%v%d, ptr %%v%d", s.Val, s.Ptr), nil
	default:
		return "", fmt.Errorf("unknown instruction kind %d", in.Kind)
	}
}

func emitTerm(t *ir.Terminator, f *ir.Func) string {
	switch t.Kind {
	case ir.TermRet:
		if t.Ret.HasValue {
			return fmt.Sprintf("ret %s %%v%d", llvmType(f.Result), t.Ret.Value)
		}
		return "ret void"
	case ir.TermGoto:
		return fmt.Sprintf("br label %%b%d", t.Goto.Target)
	case ir.TermIf:
		return fmt.Sprintf("br i1 %%v%d, label %%b%d, label %%b%d", t.If.Cond, t.If.Then, t.If.Else)
	case ir.TermUnreachable:
		return "unreachable"
	default:
		return "unreachable ; missing terminator"
	}
}

func llvmType(t types.Type) string {
	switch t.Kind {
	case types.Void:
		return "void"
	case types.Bool:
		return "i1"
	case types.Int32:
		return "i32"
	case types.Int64:
		return "i64"
	case types.Float64:
		return "double"
	case types.Object, types.RawPtr, types.Array:
		return "ptr"
	default:
		return "i64"
	}
}

func llvmBinOp(op ir.BinOp, t types.Type) (string, error) {
	isFloat := t.Kind == types.Float64
	switch op {
	case ir.OpAdd:
		if isFloat {
			return "fadd", nil
		}
		return "add", nil
	case ir.OpSub:
		if isFloat {
			return "fsub", nil
		}
		return "sub", nil
	case ir.OpMul:
		if isFloat {
			return "fmul", nil
		}
		return "mul", nil
	case ir.OpDiv:
		if isFloat {
			return "fdiv", nil
		}
		return "sdiv", nil
	case ir.OpRem:
		if isFloat {
			return "frem", nil
		}
		return "srem", nil
	case ir.OpUDiv:
		return "udiv", nil
	case ir.OpURem:
		return "urem", nil
	case ir.OpEq:
		if isFloat {
			return "fcmp oeq", nil
		}
		return "icmp eq", nil
	case ir.OpNe:
		if isFloat {
			return "fcmp one", nil
		}
		return "icmp ne", nil
	case ir.OpLt:
		if isFloat {
			return "fcmp olt", nil
		}
		return "icmp slt", nil
	default:
		return "", fmt.Errorf("unknown binary op %d", op)
	}
}

func convertOp(from, to types.Type) string {
	switch {
	case from.Kind == types.Int64 && to.Kind == types.Float64,
		from.Kind == types.Int32 && to.Kind == types.Float64:
		return "sitofp"
	case from.Kind == types.Float64 && to.Kind == types.Int64:
		return "fptosi"
	case from.Kind == types.Int32 && to.Kind == types.Int64:
		return "sext"
	case from.Kind == types.Int64 && to.Kind == types.Int32:
		return "trunc"
	case from.Kind == types.Bool:
		return "zext"
	default:
		return "bitcast"
	}
}
