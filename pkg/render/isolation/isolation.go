// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package isolation decides how far one snippet's style and script can reach
// into the page hosting it, and produces the markup that embeds a rendered
// snippet into that page.
package isolation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/cssscope"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
)

type Strategy string

const (
	StrategyNone    Strategy = "none"    // style node is a plain child of the container, selectors leak
	StrategyRewrite Strategy = "rewrite" // every selector is prefixed with the scope attribute
	StrategyShadow  Strategy = "shadow"  // declarative shadow root around the container
	StrategyFrame   Strategy = "frame"   // sandboxed inline frame with its own document
)

const DefaultStrategy = StrategyFrame

var AllStrategies = []Strategy{StrategyNone, StrategyRewrite, StrategyShadow, StrategyFrame}

func ParseStrategy(s string) (Strategy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultStrategy, nil
	}
	for _, strategy := range AllStrategies {
		if string(strategy) == s {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("invalid isolation strategy %q (want one of none, rewrite, shadow, frame)", s)
}

// Headless reports whether the strategy can be exercised by the in-memory
// container.  shadow and frame boundaries only exist in a browser.
func (s Strategy) Headless() bool {
	return s == StrategyNone || s == StrategyRewrite
}

// Hardened is true when snippet css cannot affect anything outside its container.
func (s Strategy) Hardened() bool {
	return s != StrategyNone
}

func NewScopeId() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// ContainerOptions returns the container options implementing the strategy's
// style boundary.  shadow and frame need no rewriting, their boundary is the
// embedding itself.
func ContainerOptions(strategy Strategy, scopeId string) []dom.Option {
	if strategy != StrategyRewrite {
		return nil
	}
	scope := cssscope.ScopeSelectorFor(scopeId)
	return []dom.Option{dom.WithStyleScoper(func(css string) (string, error) {
		return cssscope.Rewrite(css, scope)
	})}
}

// Build renders src into a fresh container configured for strategy.
func Build(strategy Strategy, scopeId string, src render.ComponentSource, opts ...dom.Option) (*dom.Container, *render.RenderReport) {
	allOpts := append(ContainerOptions(strategy, scopeId), opts...)
	container := dom.NewContainer(scopeId, allOpts...)
	inst := render.NewInstance(scopeId, container)
	report := inst.Render(src)
	return container, report
}
