// Package cli defines iadsd's command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "iadsd",
	Short: "Integrated Adaptive Detection System daemon",
	Long: `iadsd runs the Integrated Adaptive Detection System: entity
state tracking, uncertainty-driven active probing, and event detection
over a software-defined network's links, exposed through an HTTP API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (uses built-in defaults if omitted)")
}

// Execute runs the command tree, exiting the process on error the way
// a cobra-based CLI conventionally does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
