// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package jsvm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dop251/goja"
)

func (s *scope) installGlobals() {
	rt := s.rt
	global := rt.GlobalObject()
	rt.Set("window", global)
	rt.Set("self", global)
	rt.Set("document", s.makeDocument())
	rt.Set("console", s.makeConsole())
	rt.Set("setTimeout", s.jsSetTimeout)
	rt.Set("clearTimeout", s.jsClearTimeout)
}

func (s *scope) makeConsole() *goja.Object {
	console := s.rt.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, s.formatValue(arg))
			}
			s.addConsole(level, strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	return console
}

func (s *scope) formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		if v == nil {
			return "undefined"
		}
		return v.String()
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return v.String()
	}
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return v.String()
	}
	if node := s.nodes[obj]; node != nil {
		return "<" + strings.ToLower(node.Data) + ">"
	}
	if obj.ClassName() == "Error" {
		return v.String()
	}
	barr, err := json.Marshal(obj.Export())
	if err != nil {
		return v.String()
	}
	return string(barr)
}

func (s *scope) jsSetTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(s.rt.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	var extra []goja.Value
	if len(call.Arguments) > 2 {
		extra = call.Arguments[2:]
	}
	id := s.runner.page.schedule(s.id, delay, func() error {
		if s.isDisposed() {
			return nil
		}
		return s.exec(func() error {
			_, err := fn(goja.Undefined(), extra...)
			return err
		})
	})
	return s.rt.ToValue(id)
}

func (s *scope) jsClearTimeout(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return goja.Undefined()
	}
	s.runner.page.cancel(s.id, int(arg.ToInteger()))
	return goja.Undefined()
}
