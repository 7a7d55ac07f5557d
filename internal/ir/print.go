package ir

import (
	"fmt"
	"io"
)

// Fprint writes the textual form of a module. The output parses back
// through ParseModule.
func Fprint(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "module %s\n", m.Name); err != nil {
		return err
	}
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := FprintFunc(w, f); err != nil {
			return err
		}
	}
	return nil
}

// FprintFunc writes one function.
func FprintFunc(w io.Writer, f *Func) error {
	fmt.Fprintf(w, "func @%s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		fmt.Fprintf(w, "%s", p.Type)
	}
	fmt.Fprintf(w, ") -> %s {\n", f.Result)
	for i := range f.Blocks {
		b := &f.Blocks[i]
		fmt.Fprintf(w, "b%d:\n", b.ID)
		for j := range b.Instrs {
			fmt.Fprintf(w, "  %s\n", instrString(&b.Instrs[j]))
		}
		if s := termString(&b.Term); s != "" {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

func instrString(in *Instr) string {
	switch in.Kind {
	case InstrConst:
		c := in.Const
		if c.Type.Kind == 0 {
			return fmt.Sprintf("%%%d = const invalid", c.Dst)
		}
		if c.Type.String() == "f64" {
			return fmt.Sprintf("%%%d = const f64 %g", c.Dst, c.Float)
		}
		return fmt.Sprintf("%%%d = const %s %d", c.Dst, c.Type, c.Int)
	case InstrBin:
		b := in.Bin
		return fmt.Sprintf("%%%d = bin %s %s %%%d, %%%d", b.Dst, b.Op, b.Type, b.LHS, b.RHS)
	case InstrConvert:
		c := in.Convert
		return fmt.Sprintf("%%%d = convert %s %s %%%d", c.Dst, c.From, c.To, c.Src)
	case InstrCall:
		c := in.Call
		args := ""
		for i, a := range c.Args {
			if i > 0 {
				args += ", "
			}
			args += fmt.Sprintf("%%%d", a)
		}
		if c.Dst == InvalidValue {
			return fmt.Sprintf("call void @%s(%s)", c.Callee, args)
		}
		return fmt.Sprintf("%%%d = call %s @%s(%s)", c.Dst, c.Type, c.Callee, args)
	case InstrPtrAdd:
		p := in.PtrAdd
		return fmt.Sprintf("%%%d = ptradd %%%d %d", p.Dst, p.Ptr, p.Offset)
	case InstrLoad:
		l := in.Load
		return fmt.Sprintf("%%%d = load %s %%%d %d", l.Dst, l.Type, l.Ptr, l.Slot)
	case InstrStore:
		s := in.Store
		return fmt.Sprintf("store %%%d %d %%%d", s.Ptr, s.Slot, s.Val)
	default:
		return "?"
	}
}

func termString(t *Terminator) string {
	switch t.Kind {
	case TermRet:
		if t.Ret.HasValue {
			return fmt.Sprintf("ret %%%d", t.Ret.Value)
		}
		return "ret"
	case TermGoto:
		return fmt.Sprintf("goto b%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %%%d b%d b%d", t.If.Cond, t.If.Then, t.If.Else)
	case TermUnreachable:
		return "unreachable"
	default:
		return ""
	}
}
