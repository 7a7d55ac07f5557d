package target

import (
	"fmt"

	"drift/internal/abi"
	"drift/internal/ir"
	"drift/internal/types"
)

// CallConv describes the two conventions a compiled function lives
// between: the native convention (unboxed words, direct calls) and the
// host convention (a closure pointer plus boxed object handles, null
// return signaling a raised error). Obtained from the context's
// lazily-cached provider; construction happens at most once per
// context.
type CallConv struct {
	layout   *types.Layout
	platform abi.Platform
}

// WrapperSig is the host-convention signature of the entry wrapper for
// desc: the closure pointer first, then one boxed handle per declared
// parameter, returning a boxed handle.
func (cc *CallConv) WrapperSig(desc *ir.FuncDesc) types.Signature {
	sig := types.Signature{Result: types.ObjectType}
	sig.Params = append(sig.Params, types.RawPtrType)
	for range desc.Sig.Params {
		sig.Params = append(sig.Params, types.ObjectType)
	}
	return sig
}

// UnboxSym names the runtime helper that unboxes a host object into a
// native value of type t.
func (cc *CallConv) UnboxSym(t types.Type) (string, error) {
	switch t.Kind {
	case types.Int32, types.Int64, types.Bool:
		return abi.SymUnboxInt, nil
	case types.Float64:
		return abi.SymUnboxFloat, nil
	default:
		return "", fmt.Errorf("target: no unboxing for native type %s", t)
	}
}

// BoxSym names the runtime helper that boxes a native value of type t
// into a host object. Void results box to the unit object.
func (cc *CallConv) BoxSym(t types.Type) (string, error) {
	switch t.Kind {
	case types.Void:
		return abi.SymBoxNone, nil
	case types.Int32, types.Int64, types.Bool:
		return abi.SymBoxInt, nil
	case types.Float64:
		return abi.SymBoxFloat, nil
	default:
		return "", fmt.Errorf("target: no boxing for native type %s", t)
	}
}

// Layout returns the layout engine the convention sizes values with.
func (cc *CallConv) Layout() *types.Layout { return cc.layout }
