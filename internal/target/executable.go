package target

import (
	"fmt"

	"drift/internal/codegen"
	"drift/internal/hostrt"
	"drift/internal/ir"
)

// Executable is the caller-facing callable produced by GetExecutable:
// the wrapper's native address bound to one closure over the supplied
// environment. Invoking it follows the host convention end to end.
type Executable struct {
	QualName string
	Doc      string

	// NativeAddr is the raw address of the native function body, for
	// callers that link against it directly.
	NativeAddr codegen.Addr

	desc    *ir.FuncDesc
	engine  *codegen.Engine
	rt      *hostrt.Runtime
	entry   codegen.Addr
	env     *hostrt.Environment
	closure uint64
}

// Environment returns the environment the callable is bound to.
func (x *Executable) Environment() *hostrt.Environment { return x.env }

// Call invokes the wrapper with boxed arguments. The execution lock is
// held on entry and exit the way a host call site would hold it; a
// null wrapper return is translated back into the pending error.
func (x *Executable) Call(args ...hostrt.Handle) (hostrt.Handle, error) {
	if len(args) != len(x.desc.Sig.Params) {
		return hostrt.NullHandle, fmt.Errorf("drift: %s takes %d arguments, got %d",
			x.QualName, len(x.desc.Sig.Params), len(args))
	}

	lock := x.rt.Lock()
	lock.Acquire()
	defer func() {
		// Call sites balance their own acquire; an unbalanced depth
		// here is a wrapper bug surfaced by the tests.
		_ = lock.Release()
	}()

	words := make([]uint64, 0, len(args)+1)
	words = append(words, x.closure)
	for _, a := range args {
		words = append(words, uint64(a))
	}
	out, err := x.engine.Call(x.entry, words)
	if err != nil {
		return hostrt.NullHandle, err
	}
	h := hostrt.Handle(out)
	if h == hostrt.NullHandle {
		if raised := x.rt.TakeError(); raised != nil {
			return hostrt.NullHandle, raised
		}
		return hostrt.NullHandle, fmt.Errorf("drift: %s returned null without a pending error", x.QualName)
	}
	return h, nil
}
