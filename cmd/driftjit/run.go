package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"drift/internal/driver"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file> [ints...]",
	Short: "Compile and execute a Drift IR module",
	Long:  "Compile the module, wrap its entry function and call it with the given integer arguments boxed as host objects.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().Bool("nogil", false, "release the execution lock around native calls")
	runCmd.Flags().Bool("forceobj", false, "force host-object marshaling")
}

func runExecution(cmd *cobra.Command, args []string) error {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	path := args[0]
	intArgs := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("argument %q is not an integer", a)
		}
		intArgs = append(intArgs, v)
	}

	topts, err := resolveTargetOptions(cmd.Flags())
	if err != nil {
		return err
	}

	rr, err := driver.RunFile(path, intArgs, os.Stdout, driver.Options{Target: topts})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Println(rr.Rendered)
	}
	if timings {
		fmt.Print(rr.Phases.Summary())
	}
	return nil
}
