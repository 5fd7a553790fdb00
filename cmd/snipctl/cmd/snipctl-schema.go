// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/sconfig"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for settings.json",
	Args:  cobra.NoArgs,
	RunE:  runSchemaCmd,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaCmd(cmd *cobra.Command, args []string) error {
	barr, err := sconfig.SettingsSchema()
	if err != nil {
		return err
	}
	WriteStdout("%s\n", barr)
	return nil
}
