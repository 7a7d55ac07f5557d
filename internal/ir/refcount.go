package ir

// RemoveRefcountCalls removes redundant reference-count traffic from
// every basic block of f. Lowering emits an increment/decrement call
// around every ownership transfer; within a straight-line block an
// unconditional increment and an unconditional decrement of the same
// value cancel regardless of their order, so matched pairs can be
// erased without changing the net count any later instruction
// observes. Blocks are processed independently; there is no cross-block
// analysis. Returns the number of pairs removed.
//
// incref and decref name the runtime adjustment symbols, normally
// abi.SymIncref and abi.SymDecref.
func RemoveRefcountCalls(f *Func, incref, decref string) int {
	if f == nil {
		return 0
	}
	total := 0
	for i := range f.Blocks {
		removeNullRefcountCalls(&f.Blocks[i], incref, decref)
		total += removeRefcountPairs(&f.Blocks[i], incref, decref)
	}
	return total
}

// removeNullRefcountCalls would drop adjustment calls whose operand is
// statically the null reference. Inert: lowering does not currently
// emit adjustments against a known-null operand, and pair removal
// below is correct without it.
// TODO: elide calls whose operand is a const obj 0.
func removeNullRefcountCalls(b *Block, incref, decref string) {
	_ = b
	_, _ = incref, decref
}

// removeRefcountPairs erases matched increment/decrement pairs on the
// same operand within one block, repeating until a scan finds none.
// Each round records the most recent adjustment of each kind per
// operand (later calls supersede earlier ones), then erases the
// recorded pair for every operand seen in both maps. Erasure works on
// a fresh slice rather than the one being scanned, so the scan indexes
// stay valid while the block is rewritten.
func removeRefcountPairs(b *Block, incref, decref string) int {
	removed := 0
	for {
		increfs := make(map[ValueID]int)
		decrefs := make(map[ValueID]int)

		for idx := range b.Instrs {
			in := &b.Instrs[idx]
			if in.Kind != InstrCall || len(in.Call.Args) != 1 {
				continue
			}
			switch in.Call.Callee {
			case incref:
				increfs[in.Call.Args[0]] = idx
			case decref:
				decrefs[in.Call.Args[0]] = idx
			}
		}

		doomed := make(map[int]struct{})
		for val, inc := range increfs {
			dec, ok := decrefs[val]
			if !ok {
				continue
			}
			doomed[inc] = struct{}{}
			doomed[dec] = struct{}{}
			removed++
		}
		if len(doomed) == 0 {
			return removed
		}

		kept := make([]Instr, 0, len(b.Instrs)-len(doomed))
		for idx := range b.Instrs {
			if _, dead := doomed[idx]; !dead {
				kept = append(kept, b.Instrs[idx])
			}
		}
		b.Instrs = kept
	}
}
