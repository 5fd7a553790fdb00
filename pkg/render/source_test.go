// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package render

import "testing"

func TestComponentSourceEmptyAndEqual(t *testing.T) {
	if !(ComponentSource{HTML: " ", CSS: "\n\t"}).IsEmpty() {
		t.Fatalf("whitespace-only source should be empty")
	}
	if (ComponentSource{JS: "1"}).IsEmpty() {
		t.Fatalf("source with js is not empty")
	}
	a := ComponentSource{HTML: "<b>x</b>", CSS: "b{}"}
	if !a.Equal(ComponentSource{HTML: "<b>x</b>", CSS: "b{}"}) {
		t.Fatalf("identical sources should be equal")
	}
	// whitespace differences still count as a change for Update
	if a.Equal(ComponentSource{HTML: "<b>x</b> ", CSS: "b{}"}) {
		t.Fatalf("sources differing in whitespace should not be equal")
	}
}
