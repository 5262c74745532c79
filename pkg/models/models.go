// Package models describes what the known chat models can do.
package models

import (
	"slices"
	"strings"
)

// DefaultID is the model used when none is configured, and the entry unknown
// models are assumed to behave like.
const DefaultID = "google/gemini-2.0-flash-exp:free"

// Speed is a coarse latency class.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

// Features lists supported input kinds.
type Features struct {
	Text        bool `json:"text"`
	Images      bool `json:"images"`
	Files       bool `json:"files"`
	Code        bool `json:"code"`
	Translation bool `json:"translation"`
}

// Capabilities describes one model.
type Capabilities struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Features      Features `json:"features"`
	ContextWindow int      `json:"context_window"`
	Speed         Speed    `json:"speed"`
}

var textOnly = Features{Text: true, Files: true, Code: true, Translation: true}

var catalog = map[string]Capabilities{
	DefaultID: {
		ID:            DefaultID,
		Name:          "Gemini 2.0 Flash",
		Description:   "Fast general-purpose model with image input",
		Features:      Features{Text: true, Images: true, Files: true, Code: true, Translation: true},
		ContextWindow: 1_000_000,
		Speed:         SpeedFast,
	},
	"sberbank/gigachat:latest": {
		ID:            "sberbank/gigachat:latest",
		Name:          "GigaChat",
		Description:   "Russian-language model with deep understanding of Russian",
		Features:      textOnly,
		ContextWindow: 8_000,
		Speed:         SpeedMedium,
	},
	"meta-llama/llama-3.3-70b-instruct:free": {
		ID:            "meta-llama/llama-3.3-70b-instruct:free",
		Name:          "Llama 3.3 70B",
		Description:   "Strong model for complex text tasks",
		Features:      textOnly,
		ContextWindow: 128_000,
		Speed:         SpeedMedium,
	},
	"meta-llama/llama-3.1-8b-instruct:free": {
		ID:            "meta-llama/llama-3.1-8b-instruct:free",
		Name:          "Llama 3.1 8B",
		Description:   "Small fast model for simple tasks",
		Features:      textOnly,
		ContextWindow: 128_000,
		Speed:         SpeedFast,
	},
	"meta-llama/llama-3.1-70b-instruct:free": {
		ID:            "meta-llama/llama-3.1-70b-instruct:free",
		Name:          "Llama 3.1 70B",
		Description:   "Previous Llama 70B release",
		Features:      textOnly,
		ContextWindow: 128_000,
		Speed:         SpeedMedium,
	},
	"microsoft/phi-3-medium-128k-instruct:free": {
		ID:            "microsoft/phi-3-medium-128k-instruct:free",
		Name:          "Phi-3 Medium",
		Description:   "Compact model with a large context window",
		Features:      textOnly,
		ContextWindow: 128_000,
		Speed:         SpeedFast,
	},
}

// Lookup returns the capabilities of id, or of DefaultID when id is unknown.
// ok reports whether id was known.
func Lookup(id string) (c Capabilities, ok bool) {
	if c, ok := catalog[id]; ok {
		return c, true
	}
	return catalog[DefaultID], false
}

// SupportsImages reports whether id accepts image input.
func SupportsImages(id string) bool {
	c, _ := Lookup(id)
	return c.Features.Images
}

// SupportsFiles reports whether id accepts text file attachments.
func SupportsFiles(id string) bool {
	c, _ := Lookup(id)
	return c.Features.Files
}

// All returns the catalog sorted by ID.
func All() []Capabilities {
	out := make([]Capabilities, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Capabilities) int { return strings.Compare(a.ID, b.ID) })
	return out
}
