package ir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"drift/internal/types"
)

// ParseModule reads the textual IR form produced by Fprint. The reader
// exists for tooling and tests; production lowering hands the backend
// in-memory modules directly.
func ParseModule(r io.Reader) (*Module, error) {
	p := &parser{sc: bufio.NewScanner(r)}
	m := &Module{}

	for p.next() {
		line := strings.TrimSpace(p.line)
		switch {
		case line == "" || strings.HasPrefix(line, "//"):
		case strings.HasPrefix(line, "module "):
			if m.Name != "" {
				return nil, p.errf("duplicate module header")
			}
			m.Name = strings.TrimSpace(strings.TrimPrefix(line, "module "))
		case strings.HasPrefix(line, "func "):
			f, err := p.parseFunc(line)
			if err != nil {
				return nil, err
			}
			m.Funcs = append(m.Funcs, f)
		default:
			return nil, p.errf("unexpected top-level line %q", line)
		}
	}
	if err := p.sc.Err(); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("ir: missing module header")
	}
	return m, nil
}

type parser struct {
	sc   *bufio.Scanner
	line string
	n    int
}

func (p *parser) next() bool {
	if !p.sc.Scan() {
		return false
	}
	p.line = p.sc.Text()
	p.n++
	return true
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("ir: line %d: %s", p.n, fmt.Sprintf(format, args...))
}

// parseFunc consumes a function from its header line through the
// closing brace.
func (p *parser) parseFunc(header string) (*Func, error) {
	name, sig, err := p.parseHeader(header)
	if err != nil {
		return nil, err
	}
	f := NewFunc(name, sig)

	cur := BlockID(-1)
	maxVal := f.NumValues
	for p.next() {
		line := strings.TrimSpace(p.line)
		switch {
		case line == "" || strings.HasPrefix(line, "//"):
		case line == "}":
			f.NumValues = maxVal
			return f, nil
		case strings.HasPrefix(line, "b") && strings.HasSuffix(line, ":"):
			id, err := parseBlockRef(strings.TrimSuffix(line, ":"))
			if err != nil {
				return nil, p.errf("bad block label %q", line)
			}
			for BlockID(len(f.Blocks)) <= id {
				f.Blocks = append(f.Blocks, Block{ID: BlockID(len(f.Blocks))})
			}
			cur = id
		default:
			if cur < 0 {
				return nil, p.errf("instruction outside block: %q", line)
			}
			b := &f.Blocks[cur]
			v, err := p.parseLine(b, line)
			if err != nil {
				return nil, err
			}
			if v >= ValueID(maxVal) {
				maxVal = int32(v) + 1
			}
		}
	}
	return nil, p.errf("unterminated function %q", name)
}

func (p *parser) parseHeader(line string) (string, types.Signature, error) {
	var sig types.Signature
	rest := strings.TrimPrefix(line, "func @")
	open := strings.IndexByte(rest, '(')
	close_ := strings.IndexByte(rest, ')')
	arrow := strings.Index(rest, ") -> ")
	if open < 0 || close_ < open || arrow < 0 || !strings.HasSuffix(rest, "{") {
		return "", sig, p.errf("malformed func header %q", line)
	}
	name := rest[:open]
	params := strings.TrimSpace(rest[open+1 : close_])
	if params != "" {
		for _, ps := range strings.Split(params, ",") {
			t, ok := types.ParseType(strings.TrimSpace(ps))
			if !ok {
				return "", sig, p.errf("unknown parameter type %q", ps)
			}
			sig.Params = append(sig.Params, t)
		}
	}
	ret := strings.TrimSpace(strings.TrimSuffix(rest[arrow+len(") -> "):], "{"))
	rt, ok := types.ParseType(ret)
	if !ok {
		return "", sig, p.errf("unknown result type %q", ret)
	}
	sig.Result = rt
	return name, sig, nil
}

// parseLine parses one instruction or terminator into b. It returns
// the highest ValueID defined on the line, or InvalidValue.
func (p *parser) parseLine(b *Block, line string) (ValueID, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return InvalidValue, nil
	}

	switch fields[0] {
	case "ret":
		if len(fields) == 1 {
			b.Term = Terminator{Kind: TermRet}
			return InvalidValue, nil
		}
		v, err := parseValueRef(fields[1])
		if err != nil {
			return InvalidValue, p.errf("bad ret operand: %v", err)
		}
		b.Term = Terminator{Kind: TermRet, Ret: RetTerm{HasValue: true, Value: v}}
		return InvalidValue, nil
	case "goto":
		if len(fields) != 2 {
			return InvalidValue, p.errf("malformed goto")
		}
		t, err := parseBlockRef(fields[1])
		if err != nil {
			return InvalidValue, p.errf("bad goto target: %v", err)
		}
		b.Term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: t}}
		return InvalidValue, nil
	case "if":
		if len(fields) != 4 {
			return InvalidValue, p.errf("malformed if")
		}
		c, err := parseValueRef(fields[1])
		if err != nil {
			return InvalidValue, p.errf("bad if condition: %v", err)
		}
		then, err := parseBlockRef(fields[2])
		if err != nil {
			return InvalidValue, p.errf("bad then target: %v", err)
		}
		els, err := parseBlockRef(fields[3])
		if err != nil {
			return InvalidValue, p.errf("bad else target: %v", err)
		}
		b.Term = Terminator{Kind: TermIf, If: IfTerm{Cond: c, Then: then, Else: els}}
		return InvalidValue, nil
	case "unreachable":
		b.Term = Terminator{Kind: TermUnreachable}
		return InvalidValue, nil
	case "call":
		// void call
		in, err := p.parseCall(InvalidValue, types.VoidType, fields[2:])
		if err != nil {
			return InvalidValue, err
		}
		b.Instrs = append(b.Instrs, in)
		return InvalidValue, nil
	case "store":
		if len(fields) != 4 {
			return InvalidValue, p.errf("malformed store")
		}
		ptr, err := parseValueRef(fields[1])
		if err != nil {
			return InvalidValue, p.errf("bad store pointer: %v", err)
		}
		slot, err := strconv.Atoi(fields[2])
		if err != nil {
			return InvalidValue, p.errf("bad store slot: %v", err)
		}
		val, err := parseValueRef(fields[3])
		if err != nil {
			return InvalidValue, p.errf("bad store value: %v", err)
		}
		b.Instrs = append(b.Instrs, Instr{Kind: InstrStore, Store: StoreInstr{Ptr: ptr, Slot: slot, Val: val}})
		return InvalidValue, nil
	}

	// %N = <op> ...
	if len(fields) < 3 || fields[1] != "=" {
		return InvalidValue, p.errf("unrecognized instruction %q", line)
	}
	dst, err := parseValueRef(fields[0])
	if err != nil {
		return InvalidValue, p.errf("bad result register: %v", err)
	}
	in, err := p.parseValueInstr(dst, fields[2:])
	if err != nil {
		return InvalidValue, err
	}
	b.Instrs = append(b.Instrs, in)
	return dst, nil
}

func (p *parser) parseValueInstr(dst ValueID, fields []string) (Instr, error) {
	switch fields[0] {
	case "const":
		if len(fields) != 3 {
			return Instr{}, p.errf("malformed const")
		}
		t, ok := types.ParseType(fields[1])
		if !ok {
			return Instr{}, p.errf("unknown const type %q", fields[1])
		}
		c := ConstInstr{Dst: dst, Type: t}
		if t.Kind == types.Float64 {
			f, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return Instr{}, p.errf("bad float literal: %v", err)
			}
			c.Float = f
		} else {
			v, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return Instr{}, p.errf("bad integer literal: %v", err)
			}
			c.Int = v
		}
		return Instr{Kind: InstrConst, Const: c}, nil
	case "bin":
		if len(fields) != 5 {
			return Instr{}, p.errf("malformed bin")
		}
		op, ok := ParseBinOp(fields[1])
		if !ok {
			return Instr{}, p.errf("unknown binary op %q", fields[1])
		}
		t, ok := types.ParseType(fields[2])
		if !ok {
			return Instr{}, p.errf("unknown bin type %q", fields[2])
		}
		lhs, err := parseValueRef(fields[3])
		if err != nil {
			return Instr{}, p.errf("bad lhs: %v", err)
		}
		rhs, err := parseValueRef(fields[4])
		if err != nil {
			return Instr{}, p.errf("bad rhs: %v", err)
		}
		return Instr{Kind: InstrBin, Bin: BinInstr{Dst: dst, Op: op, Type: t, LHS: lhs, RHS: rhs}}, nil
	case "convert":
		if len(fields) != 4 {
			return Instr{}, p.errf("malformed convert")
		}
		from, ok := types.ParseType(fields[1])
		if !ok {
			return Instr{}, p.errf("unknown source type %q", fields[1])
		}
		to, ok := types.ParseType(fields[2])
		if !ok {
			return Instr{}, p.errf("unknown target type %q", fields[2])
		}
		src, err := parseValueRef(fields[3])
		if err != nil {
			return Instr{}, p.errf("bad convert operand: %v", err)
		}
		return Instr{Kind: InstrConvert, Convert: ConvertInstr{Dst: dst, From: from, To: to, Src: src}}, nil
	case "call":
		if len(fields) < 3 {
			return Instr{}, p.errf("malformed call")
		}
		t, ok := types.ParseType(fields[1])
		if !ok {
			return Instr{}, p.errf("unknown call type %q", fields[1])
		}
		return p.parseCall(dst, t, fields[2:])
	case "ptradd":
		if len(fields) != 3 {
			return Instr{}, p.errf("malformed ptradd")
		}
		ptr, err := parseValueRef(fields[1])
		if err != nil {
			return Instr{}, p.errf("bad ptradd pointer: %v", err)
		}
		off, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Instr{}, p.errf("bad ptradd offset: %v", err)
		}
		return Instr{Kind: InstrPtrAdd, PtrAdd: PtrAddInstr{Dst: dst, Ptr: ptr, Offset: off}}, nil
	case "load":
		if len(fields) != 4 {
			return Instr{}, p.errf("malformed load")
		}
		t, ok := types.ParseType(fields[1])
		if !ok {
			return Instr{}, p.errf("unknown load type %q", fields[1])
		}
		ptr, err := parseValueRef(fields[2])
		if err != nil {
			return Instr{}, p.errf("bad load pointer: %v", err)
		}
		slot, err := strconv.Atoi(fields[3])
		if err != nil {
			return Instr{}, p.errf("bad load slot: %v", err)
		}
		return Instr{Kind: InstrLoad, Load: LoadInstr{Dst: dst, Type: t, Ptr: ptr, Slot: slot}}, nil
	default:
		return Instr{}, p.errf("unknown value instruction %q", fields[0])
	}
}

// parseCall parses "@callee(%a, %b)" already split into fields, where
// fields[0] is "@callee(%a" or "@callee()".
func (p *parser) parseCall(dst ValueID, t types.Type, fields []string) (Instr, error) {
	joined := strings.Join(fields, " ")
	open := strings.IndexByte(joined, '(')
	if !strings.HasPrefix(joined, "@") || open < 0 || !strings.HasSuffix(joined, ")") {
		return Instr{}, p.errf("malformed call %q", joined)
	}
	callee := joined[1:open]
	argText := strings.TrimSpace(joined[open+1 : len(joined)-1])
	var args []ValueID
	if argText != "" {
		for _, a := range strings.Fields(argText) {
			v, err := parseValueRef(a)
			if err != nil {
				return Instr{}, p.errf("bad call argument: %v", err)
			}
			args = append(args, v)
		}
	}
	return Instr{Kind: InstrCall, Call: CallInstr{Dst: dst, Type: t, Callee: callee, Args: args}}, nil
}

func parseValueRef(s string) (ValueID, error) {
	if !strings.HasPrefix(s, "%") {
		return InvalidValue, fmt.Errorf("expected %%N, got %q", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 32)
	if err != nil {
		return InvalidValue, err
	}
	id, err := safecast.Conv[int32](n)
	if err != nil {
		return InvalidValue, err
	}
	return ValueID(id), nil
}

func parseBlockRef(s string) (BlockID, error) {
	if !strings.HasPrefix(s, "b") {
		return 0, fmt.Errorf("expected bN, got %q", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 32)
	if err != nil {
		return 0, err
	}
	id, err := safecast.Conv[int32](n)
	if err != nil {
		return 0, err
	}
	return BlockID(id), nil
}
