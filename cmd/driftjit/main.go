// Package main implements the driftjit CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"drift/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "driftjit",
	Short: "Drift JIT backend toolchain",
	Long:  `driftjit compiles Drift IR modules through the JIT backend: batch builds, direct execution and AOT artifact emission.`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentPreRunE = applyColorMode

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyColorMode(cmd *cobra.Command, args []string) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
