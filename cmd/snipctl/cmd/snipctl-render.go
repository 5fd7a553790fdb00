// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/sconfig"
)

var renderFile string
var renderIsolation string
var renderHeadless bool
var renderHeight int

var renderCmd = &cobra.Command{
	Use:   "render [--file source.json] [--isolation strategy] [--headless]",
	Short: "Render a component source",
	Long: `Render a component source given as {"html":...,"css":...,"js":...} on stdin or in --file.
Prints the embeddable markup, or with --headless a JSON report of a sandboxed dry run.`,
	Args: cobra.NoArgs,
	RunE: runRenderCmd,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "read the source from a file instead of stdin")
	renderCmd.Flags().StringVarP(&renderIsolation, "isolation", "i", string(isolation.DefaultStrategy), "none, rewrite, shadow or frame")
	renderCmd.Flags().BoolVar(&renderHeadless, "headless", false, "dry-run the source and print a diagnostics report")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "preview height in px (0 fills the parent)")
	rootCmd.AddCommand(renderCmd)
}

type HeadlessReport struct {
	Strategy    isolation.Strategy   `json:"strategy"`
	Markup      string               `json:"markup"`
	Placeholder bool                 `json:"placeholder,omitempty"`
	Diagnostics *gallery.Diagnostics `json:"diagnostics"`
}

func readSource(r io.Reader) (render.ComponentSource, error) {
	var src render.ComponentSource
	barr, err := io.ReadAll(r)
	if err != nil {
		return src, fmt.Errorf("reading source: %w", err)
	}
	err = json.Unmarshal(barr, &src)
	if err != nil {
		return src, fmt.Errorf("parsing source json: %w", err)
	}
	return src, nil
}

// renderSource returns the command output.  clean is false when a headless
// dry run found problems.
func renderSource(src render.ComponentSource, strategy isolation.Strategy, headless bool, height int) (output string, clean bool, err error) {
	if !headless {
		embedded, err := isolation.Embed(strategy, isolation.NewScopeId(), src, isolation.EmbedOpts{Height: height})
		if err != nil {
			return "", false, err
		}
		return embedded.Markup + "\n", true, nil
	}
	container, report := isolation.Build(strategy, isolation.NewScopeId(), src)
	rtn := HeadlessReport{
		Strategy:    strategy,
		Markup:      container.OuterHTML(),
		Placeholder: report.Placeholder,
		Diagnostics: gallery.DryRun(src, sconfig.DefaultSettings().ScriptTimeout()),
	}
	barr, err := json.MarshalIndent(rtn, "", "  ")
	if err != nil {
		return "", false, err
	}
	return string(barr) + "\n", rtn.Diagnostics.Clean(), nil
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
	strategy, err := isolation.ParseStrategy(renderIsolation)
	if err != nil {
		return err
	}
	if renderHeadless && strategy == isolation.StrategyFrame {
		// a frame has no in-process tree, report on the scoped rendering instead
		strategy = isolation.StrategyRewrite
	}
	input := WrappedStdin
	if renderFile != "" {
		fd, err := os.Open(renderFile)
		if err != nil {
			return err
		}
		defer fd.Close()
		input = fd
	}
	src, err := readSource(input)
	if err != nil {
		return err
	}
	output, clean, err := renderSource(src, strategy, renderHeadless, renderHeight)
	if err != nil {
		return err
	}
	WriteStdout("%s", output)
	if !clean {
		ExitCode = 2
	}
	return nil
}
