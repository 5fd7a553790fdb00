// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/wavetermdev/snipgallery/cmd/snipctl/cmd"
)

// these are set at build time
var SnipVersion = "0.0.0"
var BuildTime = "0"

func main() {
	cmd.Execute(SnipVersion, BuildTime)
}
