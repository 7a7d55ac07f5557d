package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"drift/internal/driver"
	runtimeembed "drift/runtime"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [files|dir]",
	Short: "Compile Drift IR modules",
	Long:  "Compile every given .dir module (or every module under a directory) and write the AOT artifacts.",
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().String("out", "", "artifact output directory (default: beside sources)")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	buildCmd.Flags().Int("jobs", 0, "parallel compile jobs (0 = GOMAXPROCS)")
	buildCmd.Flags().Bool("watch", false, "rebuild on source changes")
	buildCmd.Flags().Bool("no-cache", false, "bypass the artifact disk cache")
	buildCmd.Flags().Bool("nogil", false, "release the execution lock around native calls")
	buildCmd.Flags().Bool("forceobj", false, "force host-object marshaling")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	files, err := collectBuildFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no .dir modules to build")
	}

	topts, err := resolveTargetOptions(cmd.Flags())
	if err != nil {
		return err
	}

	opts := driver.Options{
		Target: topts,
		Jobs:   jobs,
		Banner: runtimeembed.ABIHeader(),
	}
	if !noCache {
		cache, cacheErr := driver.OpenDiskCache("driftjit")
		if cacheErr == nil {
			opts.Cache = cache
		}
	}

	useTUI := shouldUseTUI(uiModeValue) && !watch
	var results []*driver.Result
	if useTUI {
		results, err = runCompileAllWithUI(cmd.Context(), "driftjit build", files, opts)
	} else {
		results, err = driver.CompileAll(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		if writeErr := writeArtifact(res, outDir); writeErr != nil {
			return writeErr
		}
		if !quiet {
			printBuildResult(res)
		}
		if timings {
			printStageTimings(os.Stdout, res.Timings, false)
		}
	}

	if watch {
		if !quiet {
			fmt.Println("watching for changes, ^C to stop")
		}
		return driver.Watch(cmd.Context(), files, opts, func(res *driver.Result, err error) {
			if err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "rebuild failed: %v\n", err)
				return
			}
			if writeErr := writeArtifact(res, outDir); writeErr != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "write failed: %v\n", writeErr)
				return
			}
			if !quiet {
				printBuildResult(res)
			}
		})
	}
	return nil
}

// collectBuildFiles expands the build arguments into a file list:
// no args means the current directory, directory args are walked.
func collectBuildFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return driver.ListSourceFiles(".")
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			sub, err := driver.ListSourceFiles(arg)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if !strings.HasSuffix(arg, driver.SourceExt) {
			return nil, fmt.Errorf("%s: not a %s module", arg, driver.SourceExt)
		}
		files = append(files, arg)
	}
	return files, nil
}

func artifactPath(res *driver.Result, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(res.Path), driver.SourceExt) + ".ll"
	if outDir == "" {
		return filepath.Join(filepath.Dir(res.Path), name)
	}
	return filepath.Join(outDir, name)
}

func writeArtifact(res *driver.Result, outDir string) error {
	p := artifactPath(res, outDir)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(res.Artifact), 0o644)
}

func printBuildResult(res *driver.Result) {
	status := color.New(color.FgGreen).Sprint("compiled")
	if res.Cached {
		status = color.New(color.FgCyan).Sprint("cached")
	}
	extra := ""
	if res.PairsRemoved > 0 {
		extra = fmt.Sprintf(" (%d refcount pairs removed)", res.PairsRemoved)
	}
	fmt.Printf("%s %s%s\n", status, res.Path, extra)
}
