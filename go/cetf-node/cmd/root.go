// Package cmd implements the commands for the cetf-node executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	cmdCommon "github.com/BadBoiLabs/cetf/go/cetf-node/cmd/common"
	"github.com/BadBoiLabs/cetf/go/cetf-node/cmd/tags"
)

// SoftwareVersion is the cetf-node version, set at build time with
// -ldflags "-X github.com/BadBoiLabs/cetf/go/cetf-node/cmd.SoftwareVersion=<version>".
var SoftwareVersion = "0.0.0-unset"

var rootCmd = &cobra.Command{
	Use:          "cetf-node",
	Short:        "CETF tag store node",
	Version:      SoftwareVersion,
	SilenceUsage: true,
}

// RootCommand returns the root (top level) cobra.Command.
func RootCommand() *cobra.Command {
	return rootCmd
}

// Execute spawns the main entry point after handling the config file
// and command line arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(cmdCommon.InitConfig)

	rootCmd.PersistentFlags().AddFlagSet(cmdCommon.RootFlags)

	// Register all of the sub-commands.
	for _, v := range []func(*cobra.Command){
		tags.Register,
	} {
		v(rootCmd)
	}
}
