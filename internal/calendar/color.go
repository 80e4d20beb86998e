package calendar

import (
	"strings"

	"batchcal/internal/model"
)

const (
	ColorDefault   = "default"
	ColorHighlight = "red"
)

// Palette assigns a color tag to each event.
//
// Resolution order: course level (case-insensitive), then any highlight
// keyword contained in the batch title, then Default.
type Palette struct {
	Levels    map[string]string
	Highlight []string
	Default   string
}

// DefaultPalette colors the three course levels the platform uses.
func DefaultPalette() *Palette {
	return &Palette{
		Levels: map[string]string{
			"beginner":     "green",
			"intermediate": "blue",
			"advanced":     "purple",
		},
		Default: ColorDefault,
	}
}

// NewPalette builds a palette from config values; nil levels fall back to the defaults.
func NewPalette(levels map[string]string, highlight []string) *Palette {
	p := DefaultPalette()
	if levels != nil {
		p.Levels = make(map[string]string, len(levels))
		for k, v := range levels {
			p.Levels[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	p.Highlight = highlight
	return p
}

func (p *Palette) ColorFor(b model.Batch) string {
	if p == nil {
		p = DefaultPalette()
	}
	if b.Course != nil && b.Course.Level != "" {
		if c, ok := p.Levels[strings.ToLower(strings.TrimSpace(b.Course.Level))]; ok && c != "" {
			return c
		}
	}
	title := strings.ToLower(b.Title())
	for _, kw := range p.Highlight {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(title, kw) {
			return ColorHighlight
		}
	}
	if p.Default == "" {
		return ColorDefault
	}
	return p.Default
}
