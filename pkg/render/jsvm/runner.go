// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package jsvm runs snippet scripts headlessly.  every container gets its own
// goja runtime whose only view of the world is a document rooted at that
// container, a console, and timers queued on the shared Page loop.
package jsvm

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"golang.org/x/net/html"
)

const DefaultTimeLimit = 250 * time.Millisecond
const MaxConsoleLines = 200

var ErrTimeLimit = errors.New("script exceeded its time limit")

// ScriptError is a value thrown (and not caught) by snippet code.
type ScriptError struct {
	ScopeId string
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script error in %s: %s", e.ScopeId, e.Message)
}

type ConsoleLine struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type Runner struct {
	lock      *sync.Mutex
	page      *Page
	timeLimit time.Duration
	scopes    map[*dom.Container]*scope
}

var _ dom.ScriptRunner = (*Runner)(nil)

type RunnerOption func(r *Runner)

func WithTimeLimit(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeLimit = d
	}
}

func NewRunner(page *Page, opts ...RunnerOption) *Runner {
	r := &Runner{
		lock:      &sync.Mutex{},
		page:      page,
		timeLimit: DefaultTimeLimit,
		scopes:    make(map[*dom.Container]*scope),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Page() *Page {
	return r.page
}

type listener struct {
	fn  goja.Callable
	val goja.Value
}

type scope struct {
	id        string
	runner    *Runner
	container *dom.Container
	rt        *goja.Runtime
	wrappers  map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	listeners map[*html.Node]map[string][]listener
	console   []ConsoleLine
	depth     int
	disposed  bool
}

func (r *Runner) getScope(c *dom.Container) *scope {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.scopes[c]
}

func (r *Runner) getOrCreateScope(c *dom.Container) *scope {
	r.lock.Lock()
	defer r.lock.Unlock()
	if s := r.scopes[c]; s != nil {
		return s
	}
	s := &scope{
		id:        c.ID(),
		runner:    r,
		container: c,
		rt:        goja.New(),
		wrappers:  make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		listeners: make(map[*html.Node]map[string][]listener),
	}
	s.installGlobals()
	r.scopes[c] = s
	return s
}

// Run evaluates js in the container's scope.  scripts attached to the same
// container share one scope until it is disposed.
func (r *Runner) Run(c *dom.Container, js string) error {
	s := r.getOrCreateScope(c)
	return s.exec(func() error {
		_, err := s.rt.RunString(js)
		return err
	})
}

// Dispose drops the container's scope, its listeners and its pending timers.
func (r *Runner) Dispose(c *dom.Container) {
	r.lock.Lock()
	s := r.scopes[c]
	delete(r.scopes, c)
	if s != nil {
		s.disposed = true
	}
	r.lock.Unlock()
	if s == nil {
		return
	}
	dropped := r.page.DropScope(s.id)
	if dropped > 0 {
		log.Printf("[jsvm] %s disposed, dropped %d pending timers\n", s.id, dropped)
	}
}

// Dispatch fires eventType on every element in c matching selector, bubbling
// up to the container root.  returns the number of listeners invoked.
func (r *Runner) Dispatch(c *dom.Container, selector string, eventType string) (int, error) {
	s := r.getScope(c)
	if s == nil {
		return 0, nil
	}
	var errs []error
	total := 0
	for _, node := range c.Find(selector).Nodes {
		count, err := s.dispatch(node, eventType)
		total += count
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Console returns what the container's scripts printed.
func (r *Runner) Console(c *dom.Container) []ConsoleLine {
	s := r.getScope(c)
	if s == nil {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	rtn := make([]ConsoleLine, len(s.console))
	copy(rtn, s.console)
	return rtn
}

func (s *scope) isDisposed() bool {
	s.runner.lock.Lock()
	defer s.runner.lock.Unlock()
	return s.disposed
}

// exec runs fn under the scope's time limit and converts goja failures into
// ScriptError / ErrTimeLimit.  nested calls (a listener fired from script)
// share the outermost limit.
func (s *scope) exec(fn func() error) error {
	if s.depth == 0 && s.runner.timeLimit > 0 {
		timer := time.AfterFunc(s.runner.timeLimit, func() {
			s.rt.Interrupt(ErrTimeLimit)
		})
		defer func() {
			timer.Stop()
			s.rt.ClearInterrupt()
		}()
	}
	s.depth++
	defer func() {
		s.depth--
	}()
	err := panichandler.Guard("jsvm "+s.id, fn)
	return s.convertErr(err)
}

func (s *scope) convertErr(err error) error {
	if err == nil {
		return nil
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &ScriptError{ScopeId: s.id, Message: exc.Value().String()}
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%s: %w", s.id, ErrTimeLimit)
	}
	return err
}

func (s *scope) addConsole(level string, text string) {
	s.runner.lock.Lock()
	s.console = append(s.console, ConsoleLine{Level: level, Text: text})
	if len(s.console) > MaxConsoleLines {
		s.console = s.console[len(s.console)-MaxConsoleLines:]
	}
	s.runner.lock.Unlock()
	log.Printf("[jsvm] %s console.%s: %s\n", s.id, level, text)
}
