package ir

import (
	"fmt"

	"drift/internal/types"
)

// NewFunc creates an empty function with one parameter register per
// signature parameter and no blocks.
func NewFunc(name string, sig types.Signature) *Func {
	f := &Func{
		Name:   name,
		Result: sig.Result,
	}
	for i, p := range sig.Params {
		f.Params = append(f.Params, Param{
			ID:   ValueID(f.NumValues),
			Type: p,
			Name: fmt.Sprintf("arg%d", i),
		})
		f.NumValues++
	}
	return f
}

// Sig reconstructs the function's declared signature.
func (f *Func) Sig() types.Signature {
	sig := types.Signature{Result: f.Result}
	for _, p := range f.Params {
		sig.Params = append(sig.Params, p.Type)
	}
	return sig
}

// Builder appends instructions to one function. It tracks the current
// block; emit methods return the result register of the instruction
// they appended.
type Builder struct {
	fn  *Func
	cur BlockID
}

// NewBuilder positions a builder on f. If f has no blocks yet an entry
// block is created.
func NewBuilder(f *Func) *Builder {
	b := &Builder{fn: f, cur: -1}
	if len(f.Blocks) == 0 {
		entry := b.NewBlock()
		f.Entry = entry
		b.SetBlock(entry)
	} else {
		b.SetBlock(f.Entry)
	}
	return b
}

// Func returns the function under construction.
func (b *Builder) Func() *Func { return b.fn }

// NewBlock appends an empty block and returns its ID without changing
// the current block.
func (b *Builder) NewBlock() BlockID {
	id := BlockID(len(b.fn.Blocks))
	b.fn.Blocks = append(b.fn.Blocks, Block{ID: id})
	return id
}

// SetBlock makes id the block new instructions are appended to.
func (b *Builder) SetBlock(id BlockID) { b.cur = id }

// CurrentBlock returns the block under construction.
func (b *Builder) CurrentBlock() BlockID { return b.cur }

func (b *Builder) block() *Block {
	return &b.fn.Blocks[b.cur]
}

func (b *Builder) newValue() ValueID {
	id := ValueID(b.fn.NumValues)
	b.fn.NumValues++
	return id
}

func (b *Builder) emit(in Instr) {
	blk := b.block()
	blk.Instrs = append(blk.Instrs, in)
}

// ConstInt materializes an integer-class constant (i32, i64, bool as
// 0/1, obj or ptr word).
func (b *Builder) ConstInt(t types.Type, v int64) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrConst, Const: ConstInstr{Dst: dst, Type: t, Int: v}})
	return dst
}

// ConstFloat materializes a float constant.
func (b *Builder) ConstFloat(v float64) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrConst, Const: ConstInstr{Dst: dst, Type: types.Float64Type, Float: v}})
	return dst
}

// Bin applies op to lhs and rhs, both of type t.
func (b *Builder) Bin(op BinOp, t types.Type, lhs, rhs ValueID) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrBin, Bin: BinInstr{Dst: dst, Op: op, Type: t, LHS: lhs, RHS: rhs}})
	return dst
}

// Convert converts src between numeric types.
func (b *Builder) Convert(src ValueID, from, to types.Type) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrConvert, Convert: ConvertInstr{Dst: dst, From: from, To: to, Src: src}})
	return dst
}

// Call emits a call producing a value of type t.
func (b *Builder) Call(callee string, t types.Type, args ...ValueID) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrCall, Call: CallInstr{Dst: dst, Type: t, Callee: callee, Args: args}})
	return dst
}

// CallVoid emits a call discarding any result.
func (b *Builder) CallVoid(callee string, args ...ValueID) {
	b.emit(Instr{Kind: InstrCall, Call: CallInstr{Dst: InvalidValue, Type: types.VoidType, Callee: callee, Args: args}})
}

// PtrAdd offsets ptr by a constant byte count.
func (b *Builder) PtrAdd(ptr ValueID, offset int64) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrPtrAdd, PtrAdd: PtrAddInstr{Dst: dst, Ptr: ptr, Offset: offset}})
	return dst
}

// LoadWord loads the word at ptr + slot words as t.
func (b *Builder) LoadWord(ptr ValueID, slot int, t types.Type) ValueID {
	dst := b.newValue()
	b.emit(Instr{Kind: InstrLoad, Load: LoadInstr{Dst: dst, Type: t, Ptr: ptr, Slot: slot}})
	return dst
}

// StoreWord stores val into the word at ptr + slot words.
func (b *Builder) StoreWord(ptr ValueID, slot int, val ValueID) {
	b.emit(Instr{Kind: InstrStore, Store: StoreInstr{Ptr: ptr, Slot: slot, Val: val}})
}

// Ret terminates the current block returning v.
func (b *Builder) Ret(v ValueID) {
	b.block().Term = Terminator{Kind: TermRet, Ret: RetTerm{HasValue: true, Value: v}}
}

// RetVoid terminates the current block returning nothing.
func (b *Builder) RetVoid() {
	b.block().Term = Terminator{Kind: TermRet}
}

// Goto terminates the current block with a jump.
func (b *Builder) Goto(target BlockID) {
	b.block().Term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
}

// If terminates the current block with a conditional branch.
func (b *Builder) If(cond ValueID, then, els BlockID) {
	b.block().Term = Terminator{Kind: TermIf, If: IfTerm{Cond: cond, Then: then, Else: els}}
}

// Unreachable terminates the current block as unreachable.
func (b *Builder) Unreachable() {
	b.block().Term = Terminator{Kind: TermUnreachable}
}
