// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version [-v]",
	Short: "Print the version number of snipctl",
	RunE:  runVersionCmd,
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "Display full version information")
	rootCmd.AddCommand(versionCmd)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if !versionVerbose {
		WriteStdout("snipctl v%s\n", snipbase.SnipVersion)
		return nil
	}
	err := preRunSetupEnv(cmd, args)
	if err != nil {
		return err
	}
	WriteStdout("v%s (%s)\n", snipbase.SnipVersion, snipbase.BuildTime)
	WriteStdout("go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	WriteStdout("configdir: %s\n", snipbase.GetSnipConfigDir())
	WriteStdout("datadir:   %s\n", snipbase.GetSnipDataDir())
	return nil
}
