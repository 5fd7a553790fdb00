// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package jsvm

import (
	"errors"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

func (s *scope) addListener(node *html.Node, eventType string, fnVal goja.Value) {
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return
	}
	byType := s.listeners[node]
	if byType == nil {
		byType = make(map[string][]listener)
		s.listeners[node] = byType
	}
	for _, l := range byType[eventType] {
		if l.val.SameAs(fnVal) {
			return
		}
	}
	byType[eventType] = append(byType[eventType], listener{fn: fn, val: fnVal})
}

func (s *scope) removeListener(node *html.Node, eventType string, fnVal goja.Value) {
	byType := s.listeners[node]
	if byType == nil {
		return
	}
	list := byType[eventType]
	for i, l := range list {
		if l.val.SameAs(fnVal) {
			byType[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// dispatch fires eventType at target and bubbles it up to the container root.
func (s *scope) dispatch(target *html.Node, eventType string) (int, error) {
	if !s.inside(target) {
		return 0, nil
	}
	rt := s.rt
	stopped := false
	event := rt.NewObject()
	event.Set("type", eventType)
	event.Set("target", s.wrap(target))
	event.Set("bubbles", true)
	event.Set("defaultPrevented", false)
	event.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		event.Set("defaultPrevented", true)
		return goja.Undefined()
	})
	event.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		stopped = true
		return goja.Undefined()
	})
	var errs []error
	count := 0
	for node := target; node != nil && !stopped; node = node.Parent {
		list := s.listeners[node][eventType]
		if len(list) > 0 {
			event.Set("currentTarget", s.wrap(node))
		}
		// listeners added while dispatching do not run for this event
		snapshot := append([]listener(nil), list...)
		for _, l := range snapshot {
			count++
			err := s.exec(func() error {
				_, err := l.fn(s.wrap(node), event)
				return err
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
		if s.isRoot(node) {
			break
		}
	}
	return count, errors.Join(errs...)
}
