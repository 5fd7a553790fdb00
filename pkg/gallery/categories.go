// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gallery

const (
	CategoryAll         = "all"
	CategoryStyle       = "style"
	CategoryAnimation   = "animation"
	CategoryInteraction = "interaction"
	CategoryCopywriting = "copywriting"
	CategoryOther       = "other"
)

type Category struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Background string `json:"background"`
	Color      string `json:"color"`
}

// Categories is in navigation order.  "all" is a filter, never a record's category.
var Categories = []Category{
	{Key: CategoryAll, Label: "All", Background: "#f0fdf4", Color: "#16a34a"},
	{Key: CategoryStyle, Label: "Style", Background: "#f0f9ff", Color: "#3b82f6"},
	{Key: CategoryAnimation, Label: "Animation", Background: "#fffbeb", Color: "#f59e0b"},
	{Key: CategoryInteraction, Label: "Interaction", Background: "#f0fdf4", Color: "#16a34a"},
	{Key: CategoryCopywriting, Label: "Copywriting", Background: "#fdf2f8", Color: "#ec4899"},
	{Key: CategoryOther, Label: "Other", Background: "#f0fdf4", Color: "#16a34a"},
}

var defaultBadge = Category{Background: "#f0fdf4", Color: "#16a34a"}

func LookupCategory(key string) (Category, bool) {
	for _, cat := range Categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryBadge never fails, unknown keys get the neutral badge labelled with the key itself.
func CategoryBadge(key string) Category {
	if cat, ok := LookupCategory(key); ok {
		return cat
	}
	badge := defaultBadge
	badge.Key = key
	badge.Label = key
	return badge
}

func IsAssignableCategory(key string) bool {
	_, ok := LookupCategory(key)
	return ok && key != CategoryAll
}
