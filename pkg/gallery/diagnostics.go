// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"errors"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/cssscope"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/render/jsvm"
)

// timers scheduled within this window of the first render are run by a dry run
const DryRunWindow = time.Second

// Diagnostics is what a headless dry-run render found wrong with a snippet.
// none of it blocks saving.
type Diagnostics struct {
	ScriptError string                   `json:"scripterror,omitempty"`
	StepErrors  []string                 `json:"steperrors,omitempty"`
	TimerErrors []string                 `json:"timererrors,omitempty"`
	Placeholder bool                     `json:"placeholder,omitempty"`
	CSSError    string                   `json:"csserror,omitempty"`
	Leaky       []cssscope.LeakySelector `json:"leaky,omitempty"`
	Console     []jsvm.ConsoleLine       `json:"console,omitempty"`
}

func (d *Diagnostics) Clean() bool {
	return d.ScriptError == "" && len(d.StepErrors) == 0 && len(d.TimerErrors) == 0 && d.CSSError == "" && len(d.Leaky) == 0
}

// ScriptMessage is the text of a script failure without the scope prefix.
func ScriptMessage(err error) string {
	var scriptErr *jsvm.ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr.Message
	}
	return err.Error()
}

// DryRun renders src into a throwaway rewrite-scoped container with its own
// script page and reports what went wrong.
func DryRun(src render.ComponentSource, scriptTimeout time.Duration) *Diagnostics {
	var timerErrors []string
	page := jsvm.NewPage()
	page.SetUnhandledErrorHandler(func(scopeId string, err error) {
		timerErrors = append(timerErrors, ScriptMessage(err))
	})
	var runnerOpts []jsvm.RunnerOption
	if scriptTimeout > 0 {
		runnerOpts = append(runnerOpts, jsvm.WithTimeLimit(scriptTimeout))
	}
	runner := jsvm.NewRunner(page, runnerOpts...)
	container, report := isolation.Build(isolation.StrategyRewrite, isolation.NewScopeId(), src, dom.WithScriptRunner(runner))
	page.Advance(DryRunWindow)
	console := runner.Console(container)
	runner.Dispose(container)
	return Diagnose(src, report, console, timerErrors)
}

// Diagnose summarizes a finished render of src.
func Diagnose(src render.ComponentSource, report *render.RenderReport, console []jsvm.ConsoleLine, timerErrors []string) *Diagnostics {
	diag := &Diagnostics{Console: console, TimerErrors: timerErrors}
	if report != nil {
		diag.Placeholder = report.Placeholder
		for _, step := range report.Steps {
			if step.Err == nil {
				continue
			}
			if step.Step == render.StepScript {
				diag.ScriptError = ScriptMessage(step.Err)
				continue
			}
			diag.StepErrors = append(diag.StepErrors, step.Step+": "+step.Err.Error())
		}
	}
	if src.HasCSS() {
		analysis := cssscope.Analyze(src.HTML, src.CSS)
		diag.CSSError = analysis.Error
		diag.Leaky = analysis.Leaky
	}
	return diag
}
