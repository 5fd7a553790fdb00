// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package jsvm

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/wavetermdev/snipgallery/pkg/render/cssscope"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"golang.org/x/net/html"
)

// wrap returns the (cached) script object for node, so identity comparisons work in script
func (s *scope) wrap(node *html.Node) *goja.Object {
	if obj := s.wrappers[node]; obj != nil {
		return obj
	}
	rt := s.rt
	obj := rt.NewObject()
	s.wrappers[node] = obj
	s.nodes[obj] = node

	accessor := func(name string, get func() goja.Value, set func(v goja.Value)) {
		var setter goja.Value
		if set != nil {
			setter = rt.ToValue(func(call goja.FunctionCall) goja.Value {
				set(call.Argument(0))
				return goja.Undefined()
			})
		}
		obj.DefineAccessorProperty(name, rt.ToValue(func(goja.FunctionCall) goja.Value {
			return get()
		}), setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	attrAccessor := func(name string, attr string) {
		accessor(name, func() goja.Value {
			v, _ := dom.GetAttr(node, attr)
			return rt.ToValue(v)
		}, func(v goja.Value) {
			dom.SetAttr(node, attr, v.String())
		})
	}

	accessor("tagName", func() goja.Value {
		return rt.ToValue(strings.ToUpper(node.Data))
	}, nil)
	attrAccessor("id", "id")
	attrAccessor("className", "class")
	accessor("textContent", func() goja.Value {
		return rt.ToValue(dom.TextContent(node))
	}, func(v goja.Value) {
		dom.SetTextContent(node, v.String())
	})
	accessor("innerText", func() goja.Value {
		return rt.ToValue(dom.TextContent(node))
	}, func(v goja.Value) {
		dom.SetTextContent(node, v.String())
	})
	accessor("innerHTML", func() goja.Value {
		return rt.ToValue(renderChildren(node))
	}, func(v goja.Value) {
		nodes, err := dom.ParseFragment(v.String())
		if err != nil {
			panic(rt.NewGoError(err))
		}
		for node.FirstChild != nil {
			node.RemoveChild(node.FirstChild)
		}
		for _, n := range nodes {
			node.AppendChild(n)
		}
	})
	accessor("parentElement", func() goja.Value {
		if s.isRoot(node) || node.Parent == nil || node.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return s.wrap(node.Parent)
	}, nil)
	accessor("children", func() goja.Value {
		var rtn []any
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode {
				rtn = append(rtn, s.wrap(child))
			}
		}
		return rt.NewArray(rtn...)
	}, nil)
	accessor("style", func() goja.Value {
		return rt.NewDynamicObject(&styleObject{s: s, node: node})
	}, nil)
	classList := s.makeClassList(node)
	accessor("classList", func() goja.Value {
		return classList
	}, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := dom.GetAttr(node, strings.ToLower(call.Argument(0).String()))
		if !ok {
			return goja.Null()
		}
		return rt.ToValue(v)
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := dom.GetAttr(node, strings.ToLower(call.Argument(0).String()))
		return rt.ToValue(ok)
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		if s.isRoot(node) && name == dom.ScopeAttr {
			panic(rt.NewTypeError("setAttribute: %s is read-only", name))
		}
		dom.SetAttr(node, name, call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		if s.isRoot(node) && name == dom.ScopeAttr {
			return goja.Undefined()
		}
		dom.RemoveAttr(node, name)
		return goja.Undefined()
	})
	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return s.querySelector(node, call.Argument(0).String())
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return s.querySelectorAll(node, call.Argument(0).String())
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := s.nodeOf(call.Argument(0))
		if child == nil {
			panic(rt.NewTypeError("appendChild: argument is not an element"))
		}
		if s.isRoot(child) || isAncestor(child, node) {
			panic(rt.NewTypeError("appendChild: the new child is an ancestor of the parent"))
		}
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		node.AppendChild(child)
		return call.Argument(0)
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := s.nodeOf(call.Argument(0))
		if child == nil || child.Parent != node {
			panic(rt.NewTypeError("removeChild: the node is not a child of this element"))
		}
		node.RemoveChild(child)
		return call.Argument(0)
	})
	obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		if !s.isRoot(node) && node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		return goja.Undefined()
	})
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		s.addListener(node, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		s.removeListener(node, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	obj.Set("click", func(call goja.FunctionCall) goja.Value {
		// listener failures surface on the page, not in the caller
		if _, err := s.dispatch(node, "click"); err != nil {
			s.runner.page.reportError(s.id, err)
		}
		return goja.Undefined()
	})
	return obj
}

func isAncestor(candidate *html.Node, node *html.Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

func (s *scope) makeClassList(node *html.Node) *goja.Object {
	rt := s.rt
	list := rt.NewObject()
	write := func(classes []string) {
		dom.SetAttr(node, "class", strings.Join(classes, " "))
	}
	indexOf := func(classes []string, name string) int {
		for i, c := range classes {
			if c == name {
				return i
			}
		}
		return -1
	}
	list.Set("add", func(call goja.FunctionCall) goja.Value {
		classes := classesOf(node)
		for _, arg := range call.Arguments {
			if indexOf(classes, arg.String()) < 0 {
				classes = append(classes, arg.String())
			}
		}
		write(classes)
		return goja.Undefined()
	})
	list.Set("remove", func(call goja.FunctionCall) goja.Value {
		classes := classesOf(node)
		for _, arg := range call.Arguments {
			if idx := indexOf(classes, arg.String()); idx >= 0 {
				classes = append(classes[:idx], classes[idx+1:]...)
			}
		}
		write(classes)
		return goja.Undefined()
	})
	list.Set("contains", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(indexOf(classesOf(node), call.Argument(0).String()) >= 0)
	})
	list.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		classes := classesOf(node)
		idx := indexOf(classes, name)
		want := idx < 0
		if len(call.Arguments) > 1 {
			want = call.Argument(1).ToBoolean()
		}
		if want && idx < 0 {
			classes = append(classes, name)
		} else if !want && idx >= 0 {
			classes = append(classes[:idx], classes[idx+1:]...)
		}
		write(classes)
		return rt.ToValue(want)
	})
	return list
}

// styleObject backs element.style, reading and writing the style attribute
type styleObject struct {
	s    *scope
	node *html.Node
}

var _ goja.DynamicObject = (*styleObject)(nil)

// backgroundColor -> background-color, custom properties pass through
func cssPropName(key string) string {
	if strings.HasPrefix(key, "--") {
		return key
	}
	if key == "cssFloat" {
		return "float"
	}
	var sb strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (so *styleObject) decls() map[string]string {
	raw, _ := dom.GetAttr(so.node, "style")
	decls, err := cssscope.ParseDecls(raw)
	if err != nil {
		return make(map[string]string)
	}
	return decls
}

func (so *styleObject) write(decls map[string]string) {
	if len(decls) == 0 {
		dom.RemoveAttr(so.node, "style")
		return
	}
	dom.SetAttr(so.node, "style", cssscope.FormatDecls(decls))
}

func (so *styleObject) setProp(prop string, val string) {
	decls := so.decls()
	if strings.TrimSpace(val) == "" {
		delete(decls, prop)
	} else {
		decls[prop] = strings.TrimSpace(val)
	}
	so.write(decls)
}

func (so *styleObject) Get(key string) goja.Value {
	rt := so.s.rt
	switch key {
	case "cssText":
		raw, _ := dom.GetAttr(so.node, "style")
		return rt.ToValue(raw)
	case "setProperty":
		return rt.ToValue(func(call goja.FunctionCall) goja.Value {
			so.setProp(strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		})
	case "getPropertyValue":
		return rt.ToValue(func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(so.decls()[strings.ToLower(call.Argument(0).String())])
		})
	case "removeProperty":
		return rt.ToValue(func(call goja.FunctionCall) goja.Value {
			prop := strings.ToLower(call.Argument(0).String())
			old := so.decls()[prop]
			so.setProp(prop, "")
			return rt.ToValue(old)
		})
	}
	return rt.ToValue(so.decls()[cssPropName(key)])
}

func (so *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		dom.SetAttr(so.node, "style", val.String())
		return true
	}
	so.setProp(cssPropName(key), val.String())
	return true
}

func (so *styleObject) Has(key string) bool {
	_, ok := so.decls()[cssPropName(key)]
	return ok
}

func (so *styleObject) Delete(key string) bool {
	so.setProp(cssPropName(key), "")
	return true
}

func (so *styleObject) Keys() []string {
	decls := so.decls()
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	return keys
}
