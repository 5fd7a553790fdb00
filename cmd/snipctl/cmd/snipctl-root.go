// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

var (
	rootCmd = &cobra.Command{
		Use:          "snipctl",
		Short:        "Admin tool for the snippet gallery",
		Long:         `snipctl renders snippets headlessly and manages the gallery data directory`,
		SilenceUsage: true,
	}
)

var WrappedStdin io.Reader = os.Stdin
var WrappedStdout io.Writer = os.Stdout
var WrappedStderr io.Writer = os.Stderr
var ExitCode int

func WriteStderr(fmtStr string, args ...interface{}) {
	WrappedStderr.Write([]byte(fmt.Sprintf(fmtStr, args...)))
}

func WriteStdout(fmtStr string, args ...interface{}) {
	WrappedStdout.Write([]byte(fmt.Sprintf(fmtStr, args...)))
}

// preRunSetupEnv resolves the data and config dirs the same way snipsrv does.
func preRunSetupEnv(cmd *cobra.Command, args []string) error {
	err := snipbase.LoadDotEnv()
	if err != nil {
		return err
	}
	return snipbase.CacheAndRemoveEnvVars()
}

// preRunSetupStore opens the gallery db.  snipctl does not take the data dir
// lock so it can run next to a live snipsrv.
func preRunSetupStore(cmd *cobra.Command, args []string) error {
	err := preRunSetupEnv(cmd, args)
	if err != nil {
		return err
	}
	err = snipbase.EnsureSnipDataDir()
	if err != nil {
		return err
	}
	return gstore.InitGStore()
}

func Execute(version string, buildTime string) {
	snipbase.SnipVersion = version
	snipbase.BuildTime = buildTime
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[snipctl] ")
	log.SetOutput(WrappedStderr)
	defer func() {
		gstore.CloseGStore()
		os.Exit(ExitCode)
	}()
	err := rootCmd.Execute()
	if err != nil {
		ExitCode = 1
	}
}
