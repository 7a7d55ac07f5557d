// Package ir defines the intermediate representation consumed by the
// JIT backend: modules of functions, functions as ordered basic blocks
// of instructions, and virtual-register operands. Lowering from host
// bytecode happens upstream; this package only models, transforms and
// prints the result.
package ir

import "drift/internal/types"

// ValueID names a virtual register within one function. Parameters
// occupy the first IDs; instruction results follow.
type ValueID int32

// InvalidValue marks an absent operand or result.
const InvalidValue ValueID = -1

// BlockID indexes a basic block within its function.
type BlockID int32

// Module is an ordered collection of functions compiled together.
type Module struct {
	Name  string
	Funcs []*Func
}

// Func looks up a function by symbol name.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// Func is a function body under compilation.
type Func struct {
	Name   string
	Params []Param
	Result types.Type

	Blocks []Block
	Entry  BlockID

	// NumValues is the next unassigned ValueID; maintained by Builder.
	NumValues int32
}

// Param is a formal parameter and its virtual register.
type Param struct {
	ID   ValueID
	Type types.Type
	Name string
}

// Block is a straight-line instruction sequence ending in a terminator.
type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

// Terminated reports whether the block already has a terminator.
func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// InstrKind enumerates instruction kinds.
type InstrKind uint8

const (
	// InstrConst materializes a constant.
	InstrConst InstrKind = iota
	// InstrBin applies a binary operation.
	InstrBin
	// InstrConvert converts a value between numeric types.
	InstrConvert
	// InstrCall calls a symbol with value arguments.
	InstrCall
	// InstrPtrAdd offsets a pointer by a constant byte count.
	InstrPtrAdd
	// InstrLoad loads a word from a pointer at a word slot.
	InstrLoad
	// InstrStore stores a word through a pointer at a word slot.
	InstrStore
)

// Instr is an instruction; Kind selects the populated payload.
type Instr struct {
	Kind InstrKind

	Const   ConstInstr
	Bin     BinInstr
	Convert ConvertInstr
	Call    CallInstr
	PtrAdd  PtrAddInstr
	Load    LoadInstr
	Store   StoreInstr
}

// Dst returns the instruction's result register, or InvalidValue.
func (in *Instr) Dst() ValueID {
	switch in.Kind {
	case InstrConst:
		return in.Const.Dst
	case InstrBin:
		return in.Bin.Dst
	case InstrConvert:
		return in.Convert.Dst
	case InstrCall:
		return in.Call.Dst
	case InstrPtrAdd:
		return in.PtrAdd.Dst
	case InstrLoad:
		return in.Load.Dst
	default:
		return InvalidValue
	}
}

// ConstInstr materializes a typed constant. Float64 constants use
// Float; everything else uses Int (bool as 0/1, obj as a handle word,
// where 0 is the null reference).
type ConstInstr struct {
	Dst   ValueID
	Type  types.Type
	Int   int64
	Float float64
}

// BinOp enumerates binary operations.
type BinOp uint8

const (
	// OpAdd is addition.
	OpAdd BinOp = iota
	// OpSub is subtraction.
	OpSub
	// OpMul is multiplication.
	OpMul
	// OpDiv is division (signed for integer types).
	OpDiv
	// OpRem is remainder (signed for integer types).
	OpRem
	// OpUDiv is unsigned integer division.
	OpUDiv
	// OpURem is unsigned integer remainder.
	OpURem
	// OpEq compares for equality, producing bool.
	OpEq
	// OpNe compares for inequality, producing bool.
	OpNe
	// OpLt compares signed less-than, producing bool.
	OpLt
)

// BinInstr applies Op to two operands of type Type.
type BinInstr struct {
	Dst  ValueID
	Op   BinOp
	Type types.Type
	LHS  ValueID
	RHS  ValueID
}

// ConvertInstr converts Src from From to To.
type ConvertInstr struct {
	Dst  ValueID
	From types.Type
	To   types.Type
	Src  ValueID
}

// CallInstr calls Callee with Args. Dst is InvalidValue for void calls.
type CallInstr struct {
	Dst    ValueID
	Type   types.Type
	Callee string
	Args   []ValueID
}

// PtrAddInstr computes Ptr + Offset bytes.
type PtrAddInstr struct {
	Dst    ValueID
	Ptr    ValueID
	Offset int64
}

// LoadInstr loads the word at Ptr + Slot words as Type.
type LoadInstr struct {
	Dst  ValueID
	Type types.Type
	Ptr  ValueID
	Slot int
}

// StoreInstr stores Val into the word at Ptr + Slot words.
type StoreInstr struct {
	Ptr  ValueID
	Slot int
	Val  ValueID
}

// TermKind enumerates block terminators.
type TermKind uint8

const (
	// TermNone marks an unterminated block under construction.
	TermNone TermKind = iota
	// TermRet returns from the function.
	TermRet
	// TermGoto jumps unconditionally.
	TermGoto
	// TermIf branches on a bool value.
	TermIf
	// TermUnreachable marks a point control flow cannot reach.
	TermUnreachable
)

// Terminator ends a basic block.
type Terminator struct {
	Kind TermKind

	Ret  RetTerm
	Goto GotoTerm
	If   IfTerm
}

// RetTerm returns, optionally with a value.
type RetTerm struct {
	HasValue bool
	Value    ValueID
}

// GotoTerm jumps to Target.
type GotoTerm struct {
	Target BlockID
}

// IfTerm branches to Then or Else on Cond.
type IfTerm struct {
	Cond ValueID
	Then BlockID
	Else BlockID
}

// String names the operation in IR text.
func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpRem:
		return "rem"
	case OpUDiv:
		return "udiv"
	case OpURem:
		return "urem"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpLt:
		return "lt"
	default:
		return "?"
	}
}

// ParseBinOp is the inverse of BinOp.String.
func ParseBinOp(s string) (BinOp, bool) {
	switch s {
	case "add":
		return OpAdd, true
	case "sub":
		return OpSub, true
	case "mul":
		return OpMul, true
	case "div":
		return OpDiv, true
	case "rem":
		return OpRem, true
	case "udiv":
		return OpUDiv, true
	case "urem":
		return OpURem, true
	case "eq":
		return OpEq, true
	case "ne":
		return OpNe, true
	case "lt":
		return OpLt, true
	default:
		return 0, false
	}
}
