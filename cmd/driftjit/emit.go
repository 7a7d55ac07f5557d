package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drift/internal/driver"
	runtimeembed "drift/runtime"
)

var emitCmd = &cobra.Command{
	Use:   "emit <file>",
	Short: "Print the AOT text for a module",
	Args:  cobra.ExactArgs(1),
	RunE:  emitExecution,
}

func init() {
	emitCmd.Flags().Bool("no-banner", false, "omit the ABI header banner")
	emitCmd.Flags().Bool("nogil", false, "release the execution lock around native calls")
	emitCmd.Flags().Bool("forceobj", false, "force host-object marshaling")
}

func emitExecution(cmd *cobra.Command, args []string) error {
	noBanner, err := cmd.Flags().GetBool("no-banner")
	if err != nil {
		return err
	}
	topts, err := resolveTargetOptions(cmd.Flags())
	if err != nil {
		return err
	}

	opts := driver.Options{Target: topts}
	if !noBanner {
		opts.Banner = runtimeembed.ABIHeader()
	}
	res, err := driver.CompileFile(args[0], opts)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Artifact)
	return nil
}
