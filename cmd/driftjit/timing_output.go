package main

import (
	"fmt"
	"io"
	"time"

	"drift/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings, includeRun bool) {
	if out == nil {
		return
	}
	if timings.Has(buildpipeline.StageRead) {
		fmt.Fprintf(out, "read %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageRead)))
	}
	if timings.Has(buildpipeline.StageOptimize) {
		fmt.Fprintf(out, "optimized %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageOptimize)))
	}
	if timings.Has(buildpipeline.StageCompile) || timings.Has(buildpipeline.StageEmit) {
		built := timings.Sum(buildpipeline.StageCompile, buildpipeline.StageEmit)
		fmt.Fprintf(out, "built %.1f ms\n", toMillis(built))
	}
	if includeRun && timings.Has(buildpipeline.StageRun) {
		fmt.Fprintf(out, "ran %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageRun)))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
