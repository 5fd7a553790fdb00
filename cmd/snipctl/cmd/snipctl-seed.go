// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Insert the built-in components into an empty gallery",
	Args:    cobra.NoArgs,
	PreRunE: preRunSetupStore,
	RunE:    runSeedCmd,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeedCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()
	svc := gallery.NewService(nil)
	count, err := svc.Seed(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		WriteStdout("gallery already has components, nothing seeded\n")
		return nil
	}
	WriteStdout("seeded %d built-in components\n", count)
	return nil
}
