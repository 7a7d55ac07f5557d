// Package target is the machine-specific backend of the Drift JIT:
// it owns the code generator, establishes the calling convention
// compiled functions use, generates host-convention entry wrappers,
// tracks compiled native functions for invalidation, and applies the
// platform-conditioned post-lowering fixups.
package target

import (
	"io"
	"os"

	"drift/internal/abi"
	"drift/internal/codegen"
	"drift/internal/hostrt"
	"drift/internal/ir"
	"drift/internal/types"
)

// Context is the target code-generation context. One context per
// compilation session; compilation against a context is
// single-threaded — callers that want concurrent compilation must
// serialize requests themselves, the context carries no lock.
type Context struct {
	rt       *hostrt.Runtime
	platform abi.Platform
	layout   *types.Layout
	opts     Options

	gen      *codegen.Engine
	callConv *CallConv
	registry *nativeRegistry

	out       io.Writer
	randState uint64

	initialized bool
}

// NewContext creates a context for the given runtime and platform.
// Init must run before any compilation request.
func NewContext(rt *hostrt.Runtime, platform abi.Platform, opts Options) *Context {
	return &Context{
		rt:        rt,
		platform:  platform,
		layout:    types.NewLayout(platform),
		opts:      opts,
		registry:  newNativeRegistry(),
		out:       os.Stdout,
		randState: 0x9E3779B97F4A7C15,
	}
}

// SetOutput redirects the print operation library.
func (c *Context) SetOutput(w io.Writer) {
	if w != nil {
		c.out = w
	}
}

// Runtime returns the host runtime this context compiles against.
func (c *Context) Runtime() *hostrt.Runtime { return c.rt }

// Platform returns the resolved target capability descriptor.
func (c *Context) Platform() abi.Platform { return c.platform }

// Options returns the resolved compilation flags.
func (c *Context) Options() Options { return c.opts }

// Init performs the one-time context setup: constructs the code
// generator, installs the external runtime bindings and installs every
// registered operation library into the shared dispatch table.
// Idempotent; a second call is a no-op.
func (c *Context) Init() error {
	if c.initialized {
		return nil
	}
	if err := c.opts.Validate(); err != nil {
		return err
	}
	c.gen = codegen.NewEngine(c.rt.Arena())
	c.installExternals(c.gen)
	for _, inst := range implInstallers {
		inst.Install(c, c.gen)
	}
	c.initialized = true
	return nil
}

// Engine exposes the code generator instance.
func (c *Context) Engine() (*codegen.Engine, error) {
	if !c.initialized {
		return nil, contractErr(ErrNotInitialized, "Engine before Init")
	}
	return c.gen, nil
}

// CreateModule asks the code generator for an empty compilation unit.
func (c *Context) CreateModule(name string) (*ir.Module, error) {
	if !c.initialized {
		return nil, contractErr(ErrNotInitialized, "CreateModule before Init")
	}
	return c.gen.NewModule(name), nil
}

// CreateLibrary asks the code generator for an empty library.
func (c *Context) CreateLibrary(name string) (*codegen.Library, error) {
	if !c.initialized {
		return nil, contractErr(ErrNotInitialized, "CreateLibrary before Init")
	}
	return c.gen.NewLibrary(name), nil
}

// CallConv returns the target's calling-convention object,
// constructing it on first use. Single-threaded per the context
// contract; no lock guards the memoization.
func (c *Context) CallConv() (*CallConv, error) {
	if !c.initialized {
		return nil, contractErr(ErrNotInitialized, "CallConv before Init")
	}
	if c.callConv == nil {
		c.callConv = &CallConv{layout: c.layout, platform: c.platform}
	}
	return c.callConv, nil
}

// GetEnvFromClosure emits the load of the Environment address embedded
// in a Closure record: the byte offset is the abi layout contract,
// shared with the runtime allocator.
func (c *Context) GetEnvFromClosure(b *ir.Builder, closurePtr ir.ValueID) ir.ValueID {
	body := b.PtrAdd(closurePtr, abi.ClosureBodyOffset)
	return b.LoadWord(body, abi.ClosureEnvSlot, types.RawPtrType)
}

// EnvBody is a typed accessor over an Environment record's body.
type EnvBody struct {
	ptr ir.ValueID
}

// GetEnvBody emits the offset computation from an Environment address
// to its body and returns the accessor.
func (c *Context) GetEnvBody(b *ir.Builder, envPtr ir.ValueID) EnvBody {
	return EnvBody{ptr: b.PtrAdd(envPtr, abi.EnvBodyOffset)}
}

// Globals emits the load of the environment's globals handle.
func (e EnvBody) Globals(b *ir.Builder) ir.ValueID {
	return b.LoadWord(e.ptr, abi.EnvGlobalsSlot, types.ObjectType)
}

// Consts emits the load of the environment's consts handle.
func (e EnvBody) Consts(b *ir.Builder) ir.ValueID {
	return b.LoadWord(e.ptr, abi.EnvConstsSlot, types.ObjectType)
}

// GetExecutable resolves a compiled function and its wrapper in lib,
// obtains their native addresses, allocates a closure over env and
// returns the caller-facing callable plus the raw native address. For
// native-mode descriptors the callable is registered for later
// invalidation; host-calling descriptors leave the registry untouched.
func (c *Context) GetExecutable(lib *codegen.Library, desc *ir.FuncDesc, env *hostrt.Environment) (*Executable, codegen.Addr, error) {
	if !c.initialized {
		return nil, 0, contractErr(ErrNotInitialized, "GetExecutable before Init")
	}
	if desc == nil || desc.Sym == "" || desc.WrapperSym == "" {
		return nil, 0, contractErr(ErrBadDescriptor, "missing symbol names")
	}
	if _, err := lib.Function(desc.Sym); err != nil {
		return nil, 0, err
	}
	if _, err := lib.Function(desc.WrapperSym); err != nil {
		return nil, 0, err
	}
	nativeAddr, err := lib.PointerToFunction(desc.Sym)
	if err != nil {
		return nil, 0, err
	}
	entryAddr, err := lib.PointerToFunction(desc.WrapperSym)
	if err != nil {
		return nil, 0, err
	}
	closure, err := c.rt.NewClosure(env)
	if err != nil {
		return nil, 0, err
	}
	exe := &Executable{
		QualName:   desc.QualName,
		Doc:        desc.Doc,
		NativeAddr: nativeAddr,
		desc:       desc,
		engine:     c.gen,
		rt:         c.rt,
		entry:      entryAddr,
		env:        env,
		closure:    closure,
	}
	if desc.Native {
		if err := c.registry.insert(exe, desc.Sym, nativeAddr); err != nil {
			return nil, 0, err
		}
	}
	return exe, nativeAddr, nil
}

// RemoveNativeFunction drops the registry entry for a callable.
// Removing a callable that was never registered, or was already
// removed, is a contract violation.
func (c *Context) RemoveNativeFunction(exe *Executable) error {
	if !c.initialized {
		return contractErr(ErrNotInitialized, "RemoveNativeFunction before Init")
	}
	return c.registry.remove(exe)
}

// NativeFunction looks up the registered (symbol, address) pair for a
// callable.
func (c *Context) NativeFunction(exe *Executable) (string, codegen.Addr, bool) {
	e, ok := c.registry.lookup(exe)
	return e.sym, e.addr, ok
}

// RegisteredNativeFunctions returns the registry size.
func (c *Context) RegisteredNativeFunctions() int { return c.registry.size() }

// CalcArraySizeOf returns the native storage size of an array
// descriptor of the given rank. The size is element-independent, so a
// canonical element type stands in.
func (c *Context) CalcArraySizeOf(ndim int) (int, error) {
	return c.layout.SizeOf(types.ArrayOf(types.Int64, ndim))
}
