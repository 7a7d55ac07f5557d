package target

import (
	"fmt"
	"math"

	"drift/internal/abi"
	"drift/internal/codegen"
	"drift/internal/hostrt"
)

// ImplInstaller contributes one operation library's bindings to the
// shared dispatch table (the engine's symbol space). The per-operation
// libraries live outside this package; they plug in through
// RegisterImpls before any context is initialized. The five default
// libraries below cover the operations compiled code calls today.
type ImplInstaller struct {
	Name    string
	Install func(c *Context, e *codegen.Engine)
}

var implInstallers = []ImplInstaller{
	{Name: "math", Install: installMathImpls},
	{Name: "array", Install: installArrayImpls},
	{Name: "operator", Install: installOperatorImpls},
	{Name: "print", Install: installPrintImpls},
	{Name: "random", Install: installRandomImpls},
}

// RegisterImpls adds an operation library to the set installed by
// every later Context.Init. Duplicate names are rejected.
func RegisterImpls(inst ImplInstaller) error {
	if inst.Install == nil {
		return fmt.Errorf("target: impl registry %q has no installer", inst.Name)
	}
	for _, have := range implInstallers {
		if have.Name == inst.Name {
			return fmt.Errorf("target: impl registry %q already registered", inst.Name)
		}
	}
	implInstallers = append(implInstallers, inst)
	return nil
}

// installExternals binds the C-level runtime entry points: refcount
// adjustment, the execution lock, boxing and error state. These are
// the symbols the wrapper generator and the post-lowering fixups emit
// calls to.
func (c *Context) installExternals(e *codegen.Engine) {
	rt := c.rt

	e.Bind(abi.SymIncref, func(args []uint64) (uint64, error) {
		rt.Retain(hostrt.Handle(args[0]))
		return 0, nil
	})
	e.Bind(abi.SymDecref, func(args []uint64) (uint64, error) {
		rt.Release(hostrt.Handle(args[0]))
		return 0, nil
	})

	e.Bind(abi.SymLockAcquire, func([]uint64) (uint64, error) {
		rt.Lock().Acquire()
		return 0, nil
	})
	e.Bind(abi.SymLockRelease, func([]uint64) (uint64, error) {
		if err := rt.Lock().Release(); err != nil {
			return 0, err
		}
		return 0, nil
	})

	e.Bind(abi.SymUnboxInt, func(args []uint64) (uint64, error) {
		v, err := rt.IntValue(hostrt.Handle(args[0]))
		if err != nil {
			rt.SetError(err)
			return 0, nil
		}
		return uint64(v), nil
	})
	e.Bind(abi.SymUnboxFloat, func(args []uint64) (uint64, error) {
		v, err := rt.FloatValue(hostrt.Handle(args[0]))
		if err != nil {
			rt.SetError(err)
			return 0, nil
		}
		return math.Float64bits(v), nil
	})
	e.Bind(abi.SymBoxInt, func(args []uint64) (uint64, error) {
		return uint64(rt.NewInt(int64(args[0]))), nil
	})
	e.Bind(abi.SymBoxFloat, func(args []uint64) (uint64, error) {
		return uint64(rt.NewFloat(math.Float64frombits(args[0]))), nil
	})
	e.Bind(abi.SymBoxNone, func([]uint64) (uint64, error) {
		return uint64(rt.None()), nil
	})

	e.Bind(abi.SymErrOccurred, func([]uint64) (uint64, error) {
		if rt.ErrOccurred() {
			return 1, nil
		}
		return 0, nil
	})
	e.Bind(abi.SymRaiseArgError, func([]uint64) (uint64, error) {
		rt.SetError(fmt.Errorf("drift: bad argument"))
		return 0, nil
	})
	e.Bind(abi.SymRaiseCallError, func([]uint64) (uint64, error) {
		rt.SetError(fmt.Errorf("drift: call failed"))
		return 0, nil
	})

	// 64-bit division helpers, the post-lowering target on 32-bit
	// platforms.
	e.Bind(abi.SymSDiv64, func(args []uint64) (uint64, error) {
		d := int64(args[1])
		if d == 0 {
			rt.SetError(fmt.Errorf("drift: division by zero"))
			return 0, nil
		}
		return uint64(int64(args[0]) / d), nil
	})
	e.Bind(abi.SymSRem64, func(args []uint64) (uint64, error) {
		d := int64(args[1])
		if d == 0 {
			rt.SetError(fmt.Errorf("drift: remainder by zero"))
			return 0, nil
		}
		return uint64(int64(args[0]) % d), nil
	})
	e.Bind(abi.SymUDiv64, func(args []uint64) (uint64, error) {
		if args[1] == 0 {
			rt.SetError(fmt.Errorf("drift: division by zero"))
			return 0, nil
		}
		return args[0] / args[1], nil
	})
	e.Bind(abi.SymURem64, func(args []uint64) (uint64, error) {
		if args[1] == 0 {
			rt.SetError(fmt.Errorf("drift: remainder by zero"))
			return 0, nil
		}
		return args[0] % args[1], nil
	})
}

func installMathImpls(c *Context, e *codegen.Engine) {
	f1 := func(fn func(float64) float64) codegen.ExternFunc {
		return func(args []uint64) (uint64, error) {
			return math.Float64bits(fn(math.Float64frombits(args[0]))), nil
		}
	}
	e.Bind(abi.SymSqrt, f1(math.Sqrt))
	e.Bind(abi.SymPow, func(args []uint64) (uint64, error) {
		return math.Float64bits(math.Pow(math.Float64frombits(args[0]), math.Float64frombits(args[1]))), nil
	})
	e.Bind(abi.SymFmod, func(args []uint64) (uint64, error) {
		return math.Float64bits(math.Mod(math.Float64frombits(args[0]), math.Float64frombits(args[1]))), nil
	})
	e.Bind(abi.SymSitofp, func(args []uint64) (uint64, error) {
		return math.Float64bits(float64(int64(args[0]))), nil
	})
}

func installArrayImpls(c *Context, e *codegen.Engine) {
	rt := c.rt
	e.Bind(abi.SymArrayLen, func(args []uint64) (uint64, error) {
		o, ok := rt.Get(hostrt.Handle(args[0]))
		if !ok || o.Kind != hostrt.KindList {
			rt.SetError(fmt.Errorf("drift: len of non-sequence"))
			return 0, nil
		}
		return uint64(len(o.Items)), nil
	})
	e.Bind(abi.SymArraySizeof, func(args []uint64) (uint64, error) {
		size, err := c.CalcArraySizeOf(int(int64(args[0])))
		if err != nil {
			rt.SetError(err)
			return 0, nil
		}
		return uint64(size), nil
	})
}

func installOperatorImpls(c *Context, e *codegen.Engine) {
	rt := c.rt
	// Boxed addition, the object-mode path behind forceobj. Int+int
	// stays int; any float widens.
	e.Bind(abi.SymObjAdd, func(args []uint64) (uint64, error) {
		l, lok := rt.Get(hostrt.Handle(args[0]))
		r, rok := rt.Get(hostrt.Handle(args[1]))
		if !lok || !rok {
			rt.SetError(fmt.Errorf("drift: add of dead object"))
			return 0, nil
		}
		if l.Kind == hostrt.KindInt && r.Kind == hostrt.KindInt {
			return uint64(rt.NewInt(l.Int + r.Int)), nil
		}
		lf, lerr := rt.FloatValue(hostrt.Handle(args[0]))
		rf, rerr := rt.FloatValue(hostrt.Handle(args[1]))
		if lerr != nil || rerr != nil {
			rt.SetError(fmt.Errorf("drift: unsupported operands for +"))
			return 0, nil
		}
		return uint64(rt.NewFloat(lf + rf)), nil
	})
}

func installPrintImpls(c *Context, e *codegen.Engine) {
	rt := c.rt
	e.Bind(abi.SymPrint, func(args []uint64) (uint64, error) {
		o, ok := rt.Get(hostrt.Handle(args[0]))
		if !ok {
			rt.SetError(fmt.Errorf("drift: print of dead object"))
			return 0, nil
		}
		switch o.Kind {
		case hostrt.KindInt:
			fmt.Fprintln(c.out, o.Int)
		case hostrt.KindFloat:
			fmt.Fprintln(c.out, o.Float)
		case hostrt.KindStr:
			fmt.Fprintln(c.out, o.Str)
		case hostrt.KindNone:
			fmt.Fprintln(c.out, "none")
		default:
			fmt.Fprintf(c.out, "<%s>\n", o.Kind)
		}
		return 0, nil
	})
}

func installRandomImpls(c *Context, e *codegen.Engine) {
	// xorshift64*, deterministic per context.
	e.Bind(abi.SymRandomNext, func([]uint64) (uint64, error) {
		x := c.randState
		x ^= x >> 12
		x ^= x << 25
		x ^= x >> 27
		c.randState = x
		return x * 0x2545F4914F6CDD1D, nil
	})
}
