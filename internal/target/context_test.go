package target

import (
	"errors"
	"testing"

	"drift/internal/abi"
	"drift/internal/codegen"
	"drift/internal/hostrt"
	"drift/internal/ir"
	"drift/internal/types"
)

func newTestContext(t *testing.T, opts Options) *Context {
	t.Helper()
	c := NewContext(hostrt.NewRuntime(), abi.ResolvePlatform("linux", "amd64"), opts)
	if err := c.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func addSig() types.Signature {
	return types.Signature{
		Params: []types.Type{types.Int64Type, types.Int64Type},
		Result: types.Int64Type,
	}
}

// buildAdd lowers a two-argument native addition into a fresh module.
func buildAdd(c *Context, t *testing.T, desc *ir.FuncDesc) *codegen.Library {
	t.Helper()
	m, err := c.CreateModule(desc.ModuleKey)
	if err != nil {
		t.Fatalf("CreateModule: %v", err)
	}
	f := ir.NewFunc(desc.Sym, desc.Sig)
	b := ir.NewBuilder(f)
	b.Ret(b.Bin(ir.OpAdd, types.Int64Type, f.Params[0].ID, f.Params[1].ID))
	m.Funcs = append(m.Funcs, f)

	lib, err := c.CreateLibrary(desc.ModuleKey)
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	if err := lib.AddModule(m); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := c.CreateWrapper(lib, desc, DefaultCallHelper(), c.Options().NoGIL); err != nil {
		t.Fatalf("CreateWrapper: %v", err)
	}
	if err := lib.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return lib
}

func newEnv(c *Context, t *testing.T) *hostrt.Environment {
	t.Helper()
	rt := c.Runtime()
	env, err := rt.NewEnvironment(rt.NewDict(), rt.NewList())
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	return env
}

func TestInitIdempotent(t *testing.T) {
	c := newTestContext(t, Options{})
	if err := c.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestCallConvBeforeInit(t *testing.T) {
	c := NewContext(hostrt.NewRuntime(), abi.HostPlatform(), Options{})
	_, err := c.CallConv()
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Kind != ErrNotInitialized {
		t.Errorf("CallConv before Init = %v, want ErrNotInitialized", err)
	}
	if _, err := c.CreateModule("m"); err == nil {
		t.Error("CreateModule before Init: expected error")
	}
}

func TestCallConvCachedOnce(t *testing.T) {
	c := newTestContext(t, Options{})
	first, err := c.CallConv()
	if err != nil {
		t.Fatalf("CallConv: %v", err)
	}
	second, err := c.CallConv()
	if err != nil {
		t.Fatalf("CallConv: %v", err)
	}
	if first != second {
		t.Error("CallConv constructed twice")
	}
}

func TestEndToEndAddition(t *testing.T) {
	c := newTestContext(t, Options{NoPython: true})
	desc := ir.NewFuncDesc("demo.add", "demo", "adds", addSig(), true)
	lib := buildAdd(c, t, desc)

	exe, nativeAddr, err := c.GetExecutable(lib, desc, newEnv(c, t))
	if err != nil {
		t.Fatalf("GetExecutable: %v", err)
	}
	if nativeAddr == 0 || nativeAddr != exe.NativeAddr {
		t.Errorf("native address = %#x / %#x", nativeAddr, exe.NativeAddr)
	}

	rt := c.Runtime()
	a, bh := rt.NewInt(19), rt.NewInt(23)
	out, err := exe.Call(a, bh)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got, err := rt.IntValue(out)
	if err != nil || got != 42 {
		t.Errorf("result = %d, %v, want 42", got, err)
	}
	if depth := rt.Lock().Depth(); depth != 0 {
		t.Errorf("lock depth after call = %d, want 0", depth)
	}
}

func TestWrapperReleasesLock(t *testing.T) {
	for _, nogil := range []bool{false, true} {
		c := newTestContext(t, Options{NoPython: true, NoGIL: nogil})
		rt := c.Runtime()

		// The native body reports the lock depth it observes.
		var observed []int
		engine, err := c.Engine()
		if err != nil {
			t.Fatalf("Engine: %v", err)
		}
		engine.Bind("probe_depth", func([]uint64) (uint64, error) {
			observed = append(observed, rt.Lock().Depth())
			return 0, nil
		})

		desc := ir.NewFuncDesc("demo.probe", "demo", "", types.Signature{Result: types.Int64Type}, true)
		m, _ := c.CreateModule("demo")
		f := ir.NewFunc(desc.Sym, desc.Sig)
		b := ir.NewBuilder(f)
		b.CallVoid("probe_depth")
		b.Ret(b.ConstInt(types.Int64Type, 1))
		m.Funcs = append(m.Funcs, f)

		lib, _ := c.CreateLibrary("demo")
		if err := lib.AddModule(m); err != nil {
			t.Fatalf("AddModule: %v", err)
		}
		if err := c.CreateWrapper(lib, desc, DefaultCallHelper(), nogil); err != nil {
			t.Fatalf("CreateWrapper: %v", err)
		}
		if err := lib.Compile(); err != nil {
			t.Fatalf("Compile: %v", err)
		}

		exe, _, err := c.GetExecutable(lib, desc, newEnv(c, t))
		if err != nil {
			t.Fatalf("GetExecutable: %v", err)
		}
		before := rt.Lock().Depth()
		if _, err := exe.Call(); err != nil {
			t.Fatalf("Call: %v", err)
		}
		after := rt.Lock().Depth()

		want := 1
		if nogil {
			want = 0
		}
		if len(observed) != 1 || observed[0] != want {
			t.Errorf("nogil=%v: native code saw lock depth %v, want [%d]", nogil, observed, want)
		}
		if before != after {
			t.Errorf("nogil=%v: lock depth imbalance %d -> %d", nogil, before, after)
		}
	}
}

func TestWrapperUnboxMismatch(t *testing.T) {
	c := newTestContext(t, Options{NoPython: true})
	desc := ir.NewFuncDesc("demo.add", "demo", "", addSig(), true)
	lib := buildAdd(c, t, desc)
	exe, _, err := c.GetExecutable(lib, desc, newEnv(c, t))
	if err != nil {
		t.Fatalf("GetExecutable: %v", err)
	}

	rt := c.Runtime()
	if _, err := exe.Call(rt.NewStr("nope"), rt.NewInt(1)); err == nil {
		t.Error("unbox mismatch: expected error")
	}
	if depth := rt.Lock().Depth(); depth != 0 {
		t.Errorf("lock depth after failed call = %d, want 0", depth)
	}
	if rt.ErrOccurred() {
		t.Error("pending error left behind after failed call")
	}
}

func TestWrapperArgumentCount(t *testing.T) {
	c := newTestContext(t, Options{NoPython: true})
	desc := ir.NewFuncDesc("demo.add", "demo", "", addSig(), true)
	lib := buildAdd(c, t, desc)
	exe, _, err := c.GetExecutable(lib, desc, newEnv(c, t))
	if err != nil {
		t.Fatalf("GetExecutable: %v", err)
	}
	if _, err := exe.Call(c.Runtime().NewInt(1)); err == nil {
		t.Error("wrong arity: expected error")
	}
}

func TestRegistryNativeOnly(t *testing.T) {
	c := newTestContext(t, Options{})

	native := ir.NewFuncDesc("demo.native", "demo", "", addSig(), true)
	lib := buildAdd(c, t, native)
	if _, _, err := c.GetExecutable(lib, native, newEnv(c, t)); err != nil {
		t.Fatalf("GetExecutable(native): %v", err)
	}
	if got := c.RegisteredNativeFunctions(); got != 1 {
		t.Errorf("registry size after native = %d, want 1", got)
	}

	hosty := ir.NewFuncDesc("demo.hosty", "demo", "", addSig(), false)
	lib2 := buildAdd(c, t, hosty)
	if _, _, err := c.GetExecutable(lib2, hosty, newEnv(c, t)); err != nil {
		t.Fatalf("GetExecutable(host): %v", err)
	}
	if got := c.RegisteredNativeFunctions(); got != 1 {
		t.Errorf("registry size after host-calling = %d, want 1 (unchanged)", got)
	}
}

func TestRemoveNativeFunction(t *testing.T) {
	c := newTestContext(t, Options{})
	desc := ir.NewFuncDesc("demo.add", "demo", "", addSig(), true)
	lib := buildAdd(c, t, desc)
	exe, _, err := c.GetExecutable(lib, desc, newEnv(c, t))
	if err != nil {
		t.Fatalf("GetExecutable: %v", err)
	}

	sym, addr, ok := c.NativeFunction(exe)
	if !ok || sym != desc.Sym || addr != exe.NativeAddr {
		t.Errorf("NativeFunction = (%q, %#x, %v)", sym, addr, ok)
	}

	if err := c.RemoveNativeFunction(exe); err != nil {
		t.Fatalf("RemoveNativeFunction: %v", err)
	}
	var ce *ContractError
	if err := c.RemoveNativeFunction(exe); !errors.As(err, &ce) || ce.Kind != ErrNotRegistered {
		t.Errorf("second removal = %v, want ErrNotRegistered", err)
	}
	if err := c.RemoveNativeFunction(&Executable{QualName: "ghost"}); !errors.As(err, &ce) || ce.Kind != ErrNotRegistered {
		t.Errorf("removing unregistered = %v, want ErrNotRegistered", err)
	}
}

func TestCalcArraySizeOf(t *testing.T) {
	c := newTestContext(t, Options{})
	zero, err := c.CalcArraySizeOf(0)
	if err != nil {
		t.Fatalf("CalcArraySizeOf(0): %v", err)
	}
	if want := abi.ArrayHeadWords * abi.WordSize; zero != want {
		t.Errorf("rank-0 descriptor size = %d, want %d", zero, want)
	}
	prev := zero
	for ndim := 1; ndim <= 8; ndim++ {
		size, err := c.CalcArraySizeOf(ndim)
		if err != nil {
			t.Fatalf("CalcArraySizeOf(%d): %v", ndim, err)
		}
		if size < prev {
			t.Errorf("descriptor size not monotone at ndim=%d: %d < %d", ndim, size, prev)
		}
		prev = size
	}
	if _, err := c.CalcArraySizeOf(-1); err == nil {
		t.Error("negative rank: expected error")
	}
}

func TestClosureEnvironmentRoundTrip(t *testing.T) {
	// End-to-end layout check: compiled code walks a runtime-allocated
	// closure purely through the abi byte offsets and must land on the
	// same consts handle the allocator stored.
	c := newTestContext(t, Options{})
	rt := c.Runtime()

	consts := rt.NewList(rt.NewInt(7))
	env, err := rt.NewEnvironment(rt.NewDict(), consts)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	closure, err := rt.NewClosure(env)
	if err != nil {
		t.Fatalf("NewClosure: %v", err)
	}

	m, _ := c.CreateModule("envprobe")
	f := ir.NewFunc("read_consts", types.Signature{
		Params: []types.Type{types.RawPtrType},
		Result: types.ObjectType,
	})
	b := ir.NewBuilder(f)
	envPtr := c.GetEnvFromClosure(b, f.Params[0].ID)
	b.Ret(c.GetEnvBody(b, envPtr).Consts(b))
	m.Funcs = append(m.Funcs, f)

	lib, _ := c.CreateLibrary("envprobe")
	if err := lib.AddModule(m); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := lib.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	engine, err := c.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	out, err := engine.CallSym("read_consts", []uint64{closure})
	if err != nil {
		t.Fatalf("CallSym: %v", err)
	}
	if hostrt.Handle(out) != consts {
		t.Errorf("compiled closure walk = handle %d, want %d", out, consts)
	}
	if n, err := rt.IntValue(func() hostrt.Handle {
		o, _ := rt.Get(hostrt.Handle(out))
		return o.Items[0]
	}()); err != nil || n != 7 {
		t.Errorf("consts[0] = %d, %v, want 7", n, err)
	}
}

func TestGetExecutableMissingSymbol(t *testing.T) {
	c := newTestContext(t, Options{})
	desc := ir.NewFuncDesc("demo.lost", "demo", "", addSig(), true)
	lib, _ := c.CreateLibrary("empty")
	if err := lib.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, _, err := c.GetExecutable(lib, desc, newEnv(c, t)); err == nil {
		t.Error("unresolved native symbol: expected error")
	}
}
