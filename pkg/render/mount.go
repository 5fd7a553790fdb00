// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package render

// fixed sizing contract for the markup wrapper
const MarkupLayoutStyle = "width:100%;height:100%;display:flex;align-items:center;justify-content:center"

const PlaceholderDotCount = 3
const PlaceholderDotClass = "snip-dot"
const MarkupClass = "snip-markup"

// MountTarget is a scoped place to attach visual and behavioral content.
// A target is owned by exactly one Instance.  Implementations decide how the
// content is isolated (child scope, rewritten selectors, shadow root, frame,
// a private script context...) without changing the Instance contract.
type MountTarget interface {
	// Clear removes every child node and disposes anything attached by earlier calls.
	Clear()
	AttachStyle(css string) error
	// AttachMarkup must apply MarkupLayoutStyle to the node that carries the markup.
	AttachMarkup(html string) error
	// AttachScript attaches and runs the script.  only synchronous failures are returned.
	AttachScript(js string) error
	// AttachPlaceholder renders PlaceholderDotCount dots and nothing else.
	AttachPlaceholder() error
}
