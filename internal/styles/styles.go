// Package styles holds the catalogue of electronic music styles the
// generator understands. The set of styles is closed: every Style constant
// has exactly one Entry, and the catalogue refuses to load otherwise.
package styles

import (
	"fmt"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/liujianjie/BeatForgeAI/pkg/embedded"
)

// Style identifies a catalogue entry.
type Style string

const (
	House       Style = "house"
	Techno      Style = "techno"
	Dubstep     Style = "dubstep"
	Trance      Style = "trance"
	Ambient     Style = "ambient"
	DrumAndBass Style = "drum_and_bass"
	EDM         Style = "edm"
	LoFi        Style = "lo_fi"
)

// DefaultStyle is used for requests without a style and for unknown ids
// arriving from outside the service.
const DefaultStyle = House

// All lists every style in catalogue order.
func All() []Style {
	return []Style{House, Techno, Dubstep, Trance, Ambient, DrumAndBass, EDM, LoFi}
}

// Parse converts an external identifier into a Style.
func Parse(id string) (Style, bool) {
	for _, s := range All() {
		if string(s) == id {
			return s, true
		}
	}
	return "", false
}

// TempoRange is an inclusive BPM range.
type TempoRange struct {
	Min int
	Max int
}

// Contains reports whether bpm lies inside the range.
func (r TempoRange) Contains(bpm int) bool {
	return bpm >= r.Min && bpm <= r.Max
}

// Entry describes one style.
type Entry struct {
	ID           Style
	Name         string
	Description  string
	PromptPrefix string
	Tempo        TempoRange
}

type fileEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	PromptPrefix string `yaml:"prompt_prefix"`
	BPMRange     []int  `yaml:"bpm_range"`
}

type catalogueFile struct {
	Styles []fileEntry `yaml:"styles"`
}

// Catalogue maps styles to entries. It is immutable after construction.
type Catalogue struct {
	entries map[Style]Entry
}

// ParseCatalogue builds a catalogue from YAML. Every Style must appear exactly once
// and no unknown ids are allowed.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("styles: decode catalogue: %w", err)
	}

	entries := make(map[Style]Entry, len(f.Styles))
	for _, fe := range f.Styles {
		s, ok := Parse(fe.ID)
		if !ok {
			return nil, fmt.Errorf("styles: unknown style %q", fe.ID)
		}
		if _, dup := entries[s]; dup {
			return nil, fmt.Errorf("styles: duplicate style %q", fe.ID)
		}
		if fe.PromptPrefix == "" {
			return nil, fmt.Errorf("styles: style %q has no prompt_prefix", fe.ID)
		}
		if len(fe.BPMRange) != 2 || fe.BPMRange[0] > fe.BPMRange[1] {
			return nil, fmt.Errorf("styles: style %q has invalid bpm_range %v", fe.ID, fe.BPMRange)
		}
		entries[s] = Entry{
			ID:           s,
			Name:         fe.Name,
			Description:  fe.Description,
			PromptPrefix: fe.PromptPrefix,
			Tempo:        TempoRange{Min: fe.BPMRange[0], Max: fe.BPMRange[1]},
		}
	}

	for _, s := range All() {
		if _, ok := entries[s]; !ok {
			return nil, fmt.Errorf("styles: catalogue is missing style %q", s)
		}
	}
	return &Catalogue{entries: entries}, nil
}

// Lookup returns the entry for s. Every Style constant resolves; a Style
// value built outside this package that is not in the catalogue gets the
// default entry.
func (c *Catalogue) Lookup(s Style) Entry {
	if e, ok := c.entries[s]; ok {
		return e
	}
	return c.entries[DefaultStyle]
}

// Resolve maps an external identifier to an entry, falling back to the
// default style when the id is not known.
func (c *Catalogue) Resolve(id string) Entry {
	if s, ok := Parse(id); ok {
		return c.entries[s]
	}
	return c.entries[DefaultStyle]
}

// Entries returns all entries in catalogue order.
func (c *Catalogue) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, s := range All() {
		out = append(out, c.entries[s])
	}
	return out
}

var defaultCatalogue = sync.OnceValue(func() *Catalogue {
	c, err := ParseCatalogue(embedded.StylesYAML)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the built-in catalogue, parsed once per process.
func Default() *Catalogue {
	return defaultCatalogue()
}
