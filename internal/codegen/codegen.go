// Package codegen is the native code-generation service behind the
// target context. The context treats it as opaque: create a library,
// add IR modules, compile, then resolve functions and their addresses.
// The in-process engine executes compiled IR directly and hands out
// stable fake addresses; EmitModuleText renders the same modules as a
// textual artifact for ahead-of-time output.
package codegen

import (
	"fmt"

	"drift/internal/hostrt"
	"drift/internal/ir"
)

// Addr is a native function address as seen by the host runtime. The
// engine mints one per compiled or bound symbol; addresses stay valid
// for the engine's lifetime.
type Addr uint64

// ExternFunc is a Go-implemented external binding. Arguments and
// result are raw native words (floats bit-cast). A returned error
// aborts execution; raising into the host runtime instead goes through
// the runtime's pending-error channel.
type ExternFunc func(args []uint64) (uint64, error)

// SymbolError reports a failed symbol resolution or a duplicate
// definition.
type SymbolError struct {
	Sym string
	Dup bool
}

func (e *SymbolError) Error() string {
	if e.Dup {
		return fmt.Sprintf("codegen: duplicate symbol %q", e.Sym)
	}
	return fmt.Sprintf("codegen: unresolved symbol %q", e.Sym)
}

type binding struct {
	sym  string
	addr Addr
	fn   *ir.Func
	ext  ExternFunc
}

// Engine owns the symbol space and executes compiled functions. One
// engine per target context; not safe for concurrent use.
type Engine struct {
	arena    *hostrt.Arena
	bySym    map[string]*binding
	byAddr   map[Addr]*binding
	nextAddr Addr
}

// engineBase offsets engine addresses away from the arena and null.
const engineBase = 0x40000000

// NewEngine creates an engine whose loads and stores go through arena.
func NewEngine(arena *hostrt.Arena) *Engine {
	return &Engine{
		arena:    arena,
		bySym:    make(map[string]*binding),
		byAddr:   make(map[Addr]*binding),
		nextAddr: engineBase,
	}
}

func (e *Engine) install(b *binding) {
	b.addr = e.nextAddr
	e.nextAddr += 16
	e.bySym[b.sym] = b
	e.byAddr[b.addr] = b
}

// Bind installs or replaces an external symbol binding.
func (e *Engine) Bind(sym string, fn ExternFunc) {
	if old, ok := e.bySym[sym]; ok {
		old.fn = nil
		old.ext = fn
		return
	}
	e.install(&binding{sym: sym, ext: fn})
}

// Bound reports whether sym resolves to anything.
func (e *Engine) Bound(sym string) bool {
	_, ok := e.bySym[sym]
	return ok
}

// AddrOf resolves a symbol to its address.
func (e *Engine) AddrOf(sym string) (Addr, error) {
	b, ok := e.bySym[sym]
	if !ok {
		return 0, &SymbolError{Sym: sym}
	}
	return b.addr, nil
}

// Call invokes the function at addr with raw word arguments.
func (e *Engine) Call(addr Addr, args []uint64) (uint64, error) {
	b, ok := e.byAddr[addr]
	if !ok {
		return 0, fmt.Errorf("codegen: call to unmapped address %#x", uint64(addr))
	}
	return e.invoke(b, args)
}

// CallSym invokes a function by symbol name.
func (e *Engine) CallSym(sym string, args []uint64) (uint64, error) {
	b, ok := e.bySym[sym]
	if !ok {
		return 0, &SymbolError{Sym: sym}
	}
	return e.invoke(b, args)
}

// NewModule creates an empty compilation unit.
func (e *Engine) NewModule(name string) *ir.Module {
	return &ir.Module{Name: name}
}

// NewLibrary creates an empty library bound to this engine.
func (e *Engine) NewLibrary(name string) *Library {
	return &Library{name: name, engine: e}
}

// Library collects IR modules and, once compiled, resolves their
// functions. Mirrors the code-generator service boundary: AddModule,
// Compile, Function, PointerToFunction.
type Library struct {
	name     string
	engine   *Engine
	modules  []*ir.Module
	compiled bool
}

// Name returns the library name.
func (l *Library) Name() string { return l.name }

// Modules returns the staged modules, for artifact emission.
func (l *Library) Modules() []*ir.Module { return l.modules }

// AddModule stages a module for compilation.
func (l *Library) AddModule(m *ir.Module) error {
	if l.compiled {
		return fmt.Errorf("codegen: library %q already compiled", l.name)
	}
	if m == nil {
		return fmt.Errorf("codegen: nil module added to library %q", l.name)
	}
	l.modules = append(l.modules, m)
	return nil
}

// Compile installs every staged function into the engine's symbol
// space. Compiling twice is an error, as is redefining a symbol.
func (l *Library) Compile() error {
	if l.compiled {
		return fmt.Errorf("codegen: library %q already compiled", l.name)
	}
	for _, m := range l.modules {
		for _, f := range m.Funcs {
			if f == nil {
				continue
			}
			if b, ok := l.engine.bySym[f.Name]; ok && (b.fn != nil || b.ext != nil) {
				return &SymbolError{Sym: f.Name, Dup: true}
			}
			l.engine.install(&binding{sym: f.Name, fn: f})
		}
	}
	l.compiled = true
	return nil
}

// Function resolves a compiled function body by symbol.
func (l *Library) Function(name string) (*ir.Func, error) {
	for _, m := range l.modules {
		if f := m.Func(name); f != nil {
			return f, nil
		}
	}
	return nil, &SymbolError{Sym: name}
}

// PointerToFunction returns the native address of a compiled symbol.
func (l *Library) PointerToFunction(name string) (Addr, error) {
	if !l.compiled {
		return 0, fmt.Errorf("codegen: library %q not compiled", l.name)
	}
	if _, err := l.Function(name); err != nil {
		return 0, err
	}
	return l.engine.AddrOf(name)
}
