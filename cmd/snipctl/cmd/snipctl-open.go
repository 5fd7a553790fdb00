// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/sconfig"
)

var openPrintOnly bool

var openCmd = &cobra.Command{
	Use:     "open [component-id]",
	Short:   "Open the gallery (or one component) in a browser",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: preRunSetupEnv,
	RunE:    runOpenCmd,
}

func init() {
	openCmd.Flags().BoolVarP(&openPrintOnly, "print", "p", false, "print the url instead of opening it")
	rootCmd.AddCommand(openCmd)
}

func galleryURL(listen string, componentId string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	rtn := "http://" + host + "/"
	if componentId != "" {
		rtn += "c/" + url.PathEscape(componentId)
	}
	return rtn
}

func runOpenCmd(cmd *cobra.Command, args []string) error {
	settings := sconfig.ReadFullConfig().Settings
	var componentId string
	if len(args) > 0 {
		componentId = args[0]
	}
	target := galleryURL(settings.WebListen, componentId)
	if openPrintOnly {
		WriteStdout("%s\n", target)
		return nil
	}
	err := open.Run(target)
	if err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	return nil
}
