// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/wavetermdev/snipgallery/pkg/panichandler"
)

const (
	StepClear       = "clear"
	StepStyle       = "style"
	StepMarkup      = "markup"
	StepScript      = "script"
	StepPlaceholder = "placeholder"
)

type StepResult struct {
	Step string
	Err  error
}

// RenderReport describes what one rebuild did.  it is informational only, the
// Instance has already degraded to a safe visual state when a step failed.
type RenderReport struct {
	Steps       []StepResult
	Placeholder bool
	Skipped     bool // Update found nothing to change
}

func (r *RenderReport) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, step := range r.Steps {
		if step.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Step, step.Err))
		}
	}
	return errors.Join(errs...)
}

func (r *RenderReport) StepErr(step string) error {
	if r == nil {
		return nil
	}
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Err
		}
	}
	return nil
}

func (r *RenderReport) ScriptErr() error {
	return r.StepErr(StepScript)
}

// Instance is the live representation of one ComponentSource inside one MountTarget.
type Instance struct {
	lock    sync.Mutex
	target  MountTarget
	name    string
	src     ComponentSource
	mounted bool
	gen     uint64
}

func NewInstance(name string, target MountTarget) *Instance {
	return &Instance{target: target, name: name}
}

func (inst *Instance) Name() string {
	return inst.name
}

func (inst *Instance) Source() (ComponentSource, bool) {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.src, inst.mounted
}

// Render always tears the subtree down and rebuilds it from src.
func (inst *Instance) Render(src ComponentSource) *RenderReport {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.rebuild_nolock(src)
}

// Update rebuilds only when src differs from what is mounted.  there is no
// partial update path, any changed field means a full rebuild.
func (inst *Instance) Update(src ComponentSource) *RenderReport {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	if inst.mounted && inst.src.Equal(src) {
		return &RenderReport{Skipped: true}
	}
	return inst.rebuild_nolock(src)
}

// Unmount clears the target.  outstanding tickets become invalid.
func (inst *Instance) Unmount() {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	inst.gen++
	inst.runStep_nolock(StepClear, func() error {
		inst.target.Clear()
		return nil
	})
	inst.mounted = false
	inst.src = ComponentSource{}
}

func (inst *Instance) runStep_nolock(step string, fn func() error) error {
	err := panichandler.Guard(fmt.Sprintf("render %s [%s]", step, inst.name), fn)
	if err != nil {
		log.Printf("[render] %s: %s step failed: %v\n", inst.name, step, err)
	}
	return err
}

func (inst *Instance) rebuild_nolock(src ComponentSource) *RenderReport {
	inst.gen++
	report := &RenderReport{}
	record := func(step string, fn func() error) error {
		err := inst.runStep_nolock(step, fn)
		report.Steps = append(report.Steps, StepResult{Step: step, Err: err})
		return err
	}
	clearFn := func() error {
		inst.target.Clear()
		return nil
	}
	record(StepClear, clearFn)
	inst.src = src
	inst.mounted = true
	if src.IsEmpty() {
		record(StepPlaceholder, inst.target.AttachPlaceholder)
		report.Placeholder = true
		return report
	}
	// a style node alone renders nothing visible.  a script that ran may have
	// built content of its own, so it counts along with the markup.
	visible := false
	if src.HasCSS() {
		record(StepStyle, func() error { return inst.target.AttachStyle(src.CSS) })
	}
	if src.HasHTML() {
		if record(StepMarkup, func() error { return inst.target.AttachMarkup(src.HTML) }) == nil {
			visible = true
		}
	}
	if src.HasJS() {
		if record(StepScript, func() error { return inst.target.AttachScript(src.JS) }) == nil {
			visible = true
		}
	}
	if !visible {
		// nothing visible was constructed, fall back to the neutral state
		record(StepClear, clearFn)
		record(StepPlaceholder, inst.target.AttachPlaceholder)
		report.Placeholder = true
	}
	return report
}

// Ticket captures the Instance generation at the time an async request starts.
type Ticket struct {
	inst *Instance
	gen  uint64
}

func (inst *Instance) Ticket() Ticket {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return Ticket{inst: inst, gen: inst.gen}
}

// Valid is false once the Instance was rebuilt or unmounted after the ticket was taken.
func (t Ticket) Valid() bool {
	if t.inst == nil {
		return false
	}
	t.inst.lock.Lock()
	defer t.inst.lock.Unlock()
	return t.inst.gen == t.gen
}

// ApplyIfCurrent runs fn only if the ticket is still current.  fn runs while
// the Instance is locked so no rebuild can interleave.
func (inst *Instance) ApplyIfCurrent(t Ticket, fn func()) bool {
	inst.lock.Lock()
	defer inst.lock.Unlock()
	if t.inst != inst || t.gen != inst.gen {
		return false
	}
	fn()
	return true
}
