package target

import (
	"drift/internal/abi"
	"drift/internal/codegen"
	"drift/internal/ir"
	"drift/internal/types"
)

// CallHelper tells the wrapper generator how to observe and translate
// errors raised across the convention boundary.
type CallHelper struct {
	// ErrOccurredSym returns nonzero while an error is pending.
	ErrOccurredSym string
	// RaiseCallSym raises the generic call failure.
	RaiseCallSym string
}

// DefaultCallHelper uses the standard runtime error channel.
func DefaultCallHelper() CallHelper {
	return CallHelper{
		ErrOccurredSym: abi.SymErrOccurred,
		RaiseCallSym:   abi.SymRaiseCallError,
	}
}

// CreateWrapper builds the host-convention entry point for desc and
// adds it to lib as a fresh module. The wrapper takes the closure
// pointer and one boxed handle per declared parameter; its body
// unboxes each argument, calls the native function, and boxes the
// result, returning the null handle with an error pending when any
// step raises.
//
// With releaseLock set the execution lock is released strictly after
// the last unboxing and reacquired strictly before boxing, so no
// host-object traffic runs unlocked.
func (c *Context) CreateWrapper(lib *codegen.Library, desc *ir.FuncDesc, helper CallHelper, releaseLock bool) error {
	if !c.initialized {
		return contractErr(ErrNotInitialized, "CreateWrapper before Init")
	}
	if desc == nil || desc.Sym == "" || desc.WrapperSym == "" {
		return contractErr(ErrBadDescriptor, "missing symbol names")
	}
	cc, err := c.CallConv()
	if err != nil {
		return err
	}

	f := ir.NewFunc(desc.WrapperSym, cc.WrapperSig(desc))
	b := ir.NewBuilder(f)

	// Pin the environment's consts for the duration of the call; the
	// native body may hold borrowed references into them.
	closure := f.Params[0].ID
	envPtr := c.GetEnvFromClosure(b, closure)
	consts := c.GetEnvBody(b, envPtr).Consts(b)
	b.CallVoid(abi.SymIncref, consts)

	errBlock := b.NewBlock()

	// Unbox every argument under the lock; a type mismatch raises and
	// branches out before any native code runs.
	native := make([]ir.ValueID, 0, len(desc.Sig.Params))
	for i, t := range desc.Sig.Params {
		sym, err := cc.UnboxSym(t)
		if err != nil {
			return err
		}
		v := b.Call(sym, t, f.Params[i+1].ID)
		native = append(native, v)

		cont := b.NewBlock()
		raised := b.Call(helper.ErrOccurredSym, types.BoolType)
		b.If(raised, errBlock, cont)
		b.SetBlock(cont)
	}

	if releaseLock {
		b.CallVoid(abi.SymLockRelease)
	}
	var ret ir.ValueID = ir.InvalidValue
	if desc.Sig.Result.Kind == types.Void {
		b.CallVoid(desc.Sym, native...)
	} else {
		ret = b.Call(desc.Sym, desc.Sig.Result, native...)
	}
	if releaseLock {
		b.CallVoid(abi.SymLockAcquire)
	}

	// The native call signals failure through the pending-error
	// channel; translate it into the host convention's null return.
	cont := b.NewBlock()
	raised := b.Call(helper.ErrOccurredSym, types.BoolType)
	b.If(raised, errBlock, cont)
	b.SetBlock(cont)
	b.CallVoid(abi.SymDecref, consts)

	boxSym, err := cc.BoxSym(desc.Sig.Result)
	if err != nil {
		return err
	}
	var boxed ir.ValueID
	if ret == ir.InvalidValue {
		boxed = b.Call(boxSym, types.ObjectType)
	} else {
		boxed = b.Call(boxSym, types.ObjectType, ret)
	}
	b.Ret(boxed)

	b.SetBlock(errBlock)
	b.CallVoid(abi.SymDecref, consts)
	null := b.ConstInt(types.ObjectType, 0)
	b.Ret(null)

	m := c.gen.NewModule("wrapper." + desc.ShortName())
	m.Funcs = append(m.Funcs, f)
	return lib.AddModule(m)
}
