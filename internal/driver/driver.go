// Package driver runs the compile pipeline over textual Drift IR
// modules: read, refcount elimination and platform fixups, native code
// generation, and ahead-of-time artifact emission. It reports progress
// through buildpipeline sinks and caches emitted artifacts on disk.
package driver

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"drift/internal/abi"
	"drift/internal/buildpipeline"
	"drift/internal/codegen"
	"drift/internal/hostrt"
	"drift/internal/ir"
	"drift/internal/target"
)

// Options configures a compile session.
type Options struct {
	// Target carries the resolved [jit] flags.
	Target target.Options

	// Jobs caps parallel workers; <= 0 means GOMAXPROCS.
	Jobs int

	// Cache, when set, short-circuits recompilation of unchanged files.
	Cache *DiskCache

	// Sink receives progress events; nil means no reporting.
	Sink buildpipeline.ProgressSink

	// Banner is prepended to emitted artifacts as comment lines
	// (the embedded ABI header, typically).
	Banner string
}

func (o Options) sink() buildpipeline.ProgressSink {
	if o.Sink == nil {
		return buildpipeline.NopSink{}
	}
	return o.Sink
}

// Result is the outcome of compiling one IR file.
type Result struct {
	Path string

	// ModuleName is the compiled module's declared name.
	ModuleName string

	// Funcs are the descriptors of every compiled function, in file
	// order. Empty when the result was served from the disk cache.
	Funcs []*ir.FuncDesc

	// Artifact is the emitted AOT text for the module and its wrappers.
	Artifact string

	// PairsRemoved counts refcount pairs eliminated across all
	// functions.
	PairsRemoved int

	// Cached marks a result served from the disk cache without
	// recompilation.
	Cached bool

	Timings buildpipeline.Timings
}

// Session owns the backend state for one compilation. The target
// context is single-threaded, so parallel compilation runs one session
// per file.
type Session struct {
	rt   *hostrt.Runtime
	tctx *target.Context
}

// NewSession creates and initializes a fresh host runtime and target
// context for the host platform.
func NewSession(opts target.Options) (*Session, error) {
	rt := hostrt.NewRuntime()
	tctx := target.NewContext(rt, abi.HostPlatform(), opts)
	if err := tctx.Init(); err != nil {
		return nil, err
	}
	return &Session{rt: rt, tctx: tctx}, nil
}

// Runtime returns the session's host runtime.
func (s *Session) Runtime() *hostrt.Runtime { return s.rt }

// Context returns the session's target context.
func (s *Session) Context() *target.Context { return s.tctx }

// CompileFile runs the pipeline over one IR file in a fresh session.
func CompileFile(path string, opts Options) (*Result, error) {
	sink := opts.sink()
	res := &Result{Path: path}

	emit := func(stage buildpipeline.Stage, status buildpipeline.Status, err error, elapsed time.Duration) {
		sink.OnEvent(buildpipeline.Event{File: path, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}

	start := time.Now()
	emit(buildpipeline.StageRead, buildpipeline.StatusWorking, nil, 0)
	data, err := os.ReadFile(path)
	if err != nil {
		emit(buildpipeline.StageRead, buildpipeline.StatusError, err, time.Since(start))
		return nil, fmt.Errorf("driver: read %s: %w", path, err)
	}

	key := ArtifactKey(data, opts.Target)
	if opts.Cache != nil {
		var payload ArtifactPayload
		if hit, _ := opts.Cache.Get(key, &payload); hit {
			res.ModuleName = payload.ModuleName
			res.Artifact = payload.Artifact
			res.PairsRemoved = payload.PairsRemoved
			res.Cached = true
			res.Timings.Add(buildpipeline.StageRead, time.Since(start))
			emit(buildpipeline.StageRead, buildpipeline.StatusDone, nil, time.Since(start))
			return res, nil
		}
	}

	m, err := ir.ParseModule(bytes.NewReader(data))
	if err != nil {
		emit(buildpipeline.StageRead, buildpipeline.StatusError, err, time.Since(start))
		return nil, fmt.Errorf("driver: parse %s: %w", path, err)
	}
	res.ModuleName = m.Name
	res.Timings.Add(buildpipeline.StageRead, time.Since(start))
	emit(buildpipeline.StageRead, buildpipeline.StatusDone, nil, time.Since(start))

	sess, err := NewSession(opts.Target)
	if err != nil {
		return nil, err
	}

	// Refcount pair elimination, then the platform fixups.
	start = time.Now()
	emit(buildpipeline.StageOptimize, buildpipeline.StatusWorking, nil, 0)
	for _, f := range m.Funcs {
		res.PairsRemoved += ir.RemoveRefcountCalls(f, abi.SymIncref, abi.SymDecref)
		sess.tctx.PostLowering(f)
	}
	res.Timings.Add(buildpipeline.StageOptimize, time.Since(start))
	emit(buildpipeline.StageOptimize, buildpipeline.StatusDone, nil, time.Since(start))

	start = time.Now()
	emit(buildpipeline.StageCompile, buildpipeline.StatusWorking, nil, 0)
	lib, descs, err := sess.CompileModule(m)
	if err != nil {
		emit(buildpipeline.StageCompile, buildpipeline.StatusError, err, time.Since(start))
		return nil, fmt.Errorf("driver: compile %s: %w", path, err)
	}
	res.Funcs = descs
	res.Timings.Add(buildpipeline.StageCompile, time.Since(start))
	emit(buildpipeline.StageCompile, buildpipeline.StatusDone, nil, time.Since(start))

	start = time.Now()
	emit(buildpipeline.StageEmit, buildpipeline.StatusWorking, nil, 0)
	artifact, err := EmitArtifact(lib, opts.Banner)
	if err != nil {
		emit(buildpipeline.StageEmit, buildpipeline.StatusError, err, time.Since(start))
		return nil, fmt.Errorf("driver: emit %s: %w", path, err)
	}
	res.Artifact = artifact
	if opts.Cache != nil {
		payload := ArtifactPayload{
			Schema:       artifactSchemaVersion,
			ModuleName:   res.ModuleName,
			Artifact:     artifact,
			PairsRemoved: res.PairsRemoved,
		}
		// A failed cache write never fails the build.
		_ = opts.Cache.Put(key, &payload)
	}
	res.Timings.Add(buildpipeline.StageEmit, time.Since(start))
	emit(buildpipeline.StageEmit, buildpipeline.StatusDone, nil, time.Since(start))

	return res, nil
}

// CompileModule renames each parsed body to its mangled symbol,
// generates the host-convention wrapper per function and hands the
// assembled library to the code generator. Function names without a
// dotted qualifier are qualified by the module name.
func (s *Session) CompileModule(m *ir.Module) (*codegen.Library, []*ir.FuncDesc, error) {
	lib, err := s.tctx.CreateLibrary(m.Name)
	if err != nil {
		return nil, nil, err
	}

	descs := make([]*ir.FuncDesc, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		qual := f.Name
		if !strings.Contains(qual, ".") {
			qual = m.Name + "." + qual
		}
		desc := ir.NewFuncDesc(qual, m.Name, "", f.Sig(), !s.tctx.Options().ForceObj)
		f.Name = desc.Sym
		descs = append(descs, desc)
	}
	if err := lib.AddModule(m); err != nil {
		return nil, nil, err
	}

	helper := target.DefaultCallHelper()
	for _, desc := range descs {
		if err := s.tctx.CreateWrapper(lib, desc, helper, s.tctx.Options().NoGIL); err != nil {
			return nil, nil, err
		}
	}
	if err := lib.Compile(); err != nil {
		return nil, nil, err
	}
	return lib, descs, nil
}

// EmitArtifact renders every module in the library as one textual
// artifact; the banner appears once, ahead of the first module.
func EmitArtifact(lib *codegen.Library, banner string) (string, error) {
	var sb strings.Builder
	mods := lib.Modules()
	for i, mod := range mods {
		b := ""
		if i == 0 {
			b = banner
		}
		text, err := codegen.EmitModuleText(mod, b)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		if i < len(mods)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
