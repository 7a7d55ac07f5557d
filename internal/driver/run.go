package driver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"drift/internal/abi"
	"drift/internal/buildpipeline"
	"drift/internal/hostrt"
	"drift/internal/ir"
	"drift/internal/observ"
)

// RunResult is the outcome of compiling and executing an entry
// function.
type RunResult struct {
	Compile *Result

	// Entry is the descriptor of the executed function.
	Entry *ir.FuncDesc

	// Value is the boxed return value; consult the session runtime to
	// inspect it.
	Value hostrt.Handle

	// Rendered is the printable form of the return value.
	Rendered string

	Timings buildpipeline.Timings

	// Phases is the fine-grained phase timer for --timings output.
	Phases *observ.Timer
}

// RunFile compiles the module at path and executes its entry function
// with the given integer arguments boxed as host objects. The entry
// function is the one named "main" when present, otherwise the file's
// single function; a multi-function module without "main" is rejected.
func RunFile(path string, args []int64, out io.Writer, opts Options) (*RunResult, error) {
	if out == nil {
		out = os.Stdout
	}
	sink := opts.sink()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("driver: read %s: %w", path, err)
	}
	m, err := ir.ParseModule(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("driver: parse %s: %w", path, err)
	}

	sess, err := NewSession(opts.Target)
	if err != nil {
		return nil, err
	}
	sess.tctx.SetOutput(out)

	rr := &RunResult{Phases: observ.NewTimer()}

	start := time.Now()
	phase := rr.Phases.Begin("optimize")
	pairs := 0
	for _, f := range m.Funcs {
		pairs += ir.RemoveRefcountCalls(f, abi.SymIncref, abi.SymDecref)
		sess.tctx.PostLowering(f)
	}
	rr.Phases.End(phase, fmt.Sprintf("%d refcount pairs removed", pairs))
	rr.Timings.Add(buildpipeline.StageOptimize, time.Since(start))

	start = time.Now()
	phase = rr.Phases.Begin("compile")
	lib, descs, err := sess.CompileModule(m)
	if err != nil {
		return nil, fmt.Errorf("driver: compile %s: %w", path, err)
	}
	rr.Phases.End(phase, fmt.Sprintf("%d function(s)", len(descs)))
	rr.Timings.Add(buildpipeline.StageCompile, time.Since(start))

	entry, err := pickEntry(descs)
	if err != nil {
		return nil, fmt.Errorf("driver: %s: %w", path, err)
	}
	rr.Entry = entry

	rt := sess.rt
	env, err := rt.NewEnvironment(rt.NewDict(), rt.NewList())
	if err != nil {
		return nil, err
	}
	exe, _, err := sess.tctx.GetExecutable(lib, entry, env)
	if err != nil {
		return nil, err
	}

	if len(args) != len(entry.Sig.Params) {
		return nil, fmt.Errorf("driver: %s takes %d argument(s), got %d",
			entry.QualName, len(entry.Sig.Params), len(args))
	}
	boxed := make([]hostrt.Handle, len(args))
	for i, a := range args {
		boxed[i] = rt.NewInt(a)
	}

	start = time.Now()
	phase = rr.Phases.Begin("run")
	sink.OnEvent(buildpipeline.Event{File: path, Stage: buildpipeline.StageRun, Status: buildpipeline.StatusWorking})
	ret, err := exe.Call(boxed...)
	elapsed := time.Since(start)
	rr.Phases.End(phase, entry.QualName)
	rr.Timings.Add(buildpipeline.StageRun, elapsed)
	if err != nil {
		sink.OnEvent(buildpipeline.Event{File: path, Stage: buildpipeline.StageRun, Status: buildpipeline.StatusError, Err: err, Elapsed: elapsed})
		return nil, err
	}
	sink.OnEvent(buildpipeline.Event{File: path, Stage: buildpipeline.StageRun, Status: buildpipeline.StatusDone, Elapsed: elapsed})

	rr.Value = ret
	rr.Rendered = renderValue(rt, ret)
	return rr, nil
}

// pickEntry selects the function to execute.
func pickEntry(descs []*ir.FuncDesc) (*ir.FuncDesc, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("module has no functions")
	}
	if len(descs) == 1 {
		return descs[0], nil
	}
	for _, d := range descs {
		if d.ShortName() == "main" {
			return d, nil
		}
	}
	return nil, fmt.Errorf("module has %d functions and none named main", len(descs))
}

func renderValue(rt *hostrt.Runtime, h hostrt.Handle) string {
	obj, ok := rt.Get(h)
	if !ok {
		return "<dead>"
	}
	switch obj.Kind {
	case hostrt.KindNone:
		return "none"
	case hostrt.KindInt:
		return fmt.Sprintf("%d", obj.Int)
	case hostrt.KindFloat:
		return fmt.Sprintf("%g", obj.Float)
	case hostrt.KindStr:
		return obj.Str
	default:
		return fmt.Sprintf("<%s>", obj.Kind)
	}
}
