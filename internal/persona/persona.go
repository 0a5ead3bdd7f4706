// Package persona loads the characters a face can speak as. Each persona
// carries the gender and language hints that drive voice selection.
package persona

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgnsrekt/mouthpiece/tts"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownPersona is returned when a persona code is not in the catalog.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrEmptyCatalog is returned for a catalog without personas. A file
	// caught mid-write reads as one.
	ErrEmptyCatalog = errors.New("persona catalog is empty")
)

// Persona is one speaking character.
type Persona struct {
	Code     string `yaml:"code" json:"code"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Gender   string `yaml:"gender,omitempty" json:"gender,omitempty"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
	Voice    string `yaml:"voice,omitempty" json:"voice,omitempty"`
	Greeting string `yaml:"greeting,omitempty" json:"greeting,omitempty"`
}

// Hint returns the voice hint for p. An empty language means the
// configured default.
func (p Persona) Hint() tts.VoiceHint {
	return tts.VoiceHint{
		Gender:    tts.ParseGender(p.Gender),
		Language:  p.Language,
		Preferred: p.Voice,
	}
}

// DisplayName returns the name, or the code when the name is empty.
func (p Persona) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Code
}

type document struct {
	Default  string    `yaml:"default"`
	Personas []Persona `yaml:"personas"`
}

// Catalog is an immutable set of personas in file order.
type Catalog struct {
	def      string
	personas []Persona
	byCode   map[string]int
}

// Builtin returns the catalog used when no persona file is configured.
func Builtin() *Catalog {
	c, _ := newCatalog(document{
		Default: "lekha",
		Personas: []Persona{
			{Code: "lekha", Name: "Lekha", Category: "guides", Gender: "female", Language: "hi", Greeting: "नमस्ते! मैं लेखा हूँ।"},
			{Code: "rishi", Name: "Rishi", Category: "guides", Gender: "male", Language: "hi", Greeting: "नमस्ते! मैं ऋषि हूँ।"},
			{Code: "narrator", Name: "Narrator", Category: "system", Greeting: "Hello!"},
		},
	})
	return c
}

// Parse reads a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse persona catalog: %w", err)
	}
	return newCatalog(doc)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona catalog: %w", err)
	}
	return Parse(data)
}

func newCatalog(doc document) (*Catalog, error) {
	if len(doc.Personas) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		def:    strings.ToLower(strings.TrimSpace(doc.Default)),
		byCode: make(map[string]int, len(doc.Personas)),
	}
	for i, p := range doc.Personas {
		p.Code = strings.ToLower(strings.TrimSpace(p.Code))
		if p.Code == "" {
			return nil, fmt.Errorf("persona %d has no code", i+1)
		}
		if _, dup := c.byCode[p.Code]; dup {
			return nil, fmt.Errorf("duplicate persona code %q", p.Code)
		}
		c.byCode[p.Code] = len(c.personas)
		c.personas = append(c.personas, p)
	}
	if c.def != "" {
		if _, ok := c.byCode[c.def]; !ok {
			return nil, fmt.Errorf("default persona %q: %w", c.def, ErrUnknownPersona)
		}
	}
	return c, nil
}

// Len returns the number of personas.
func (c *Catalog) Len() int {
	return len(c.personas)
}

// List returns the personas in file order.
func (c *Catalog) List() []Persona {
	return append([]Persona(nil), c.personas...)
}

// Get looks a persona up by code, ignoring case.
func (c *Catalog) Get(code string) (Persona, error) {
	i, ok := c.byCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, code)
	}
	return c.personas[i], nil
}

// Default returns the default persona: the override if set, the file's
// default otherwise, and the first persona as a last resort.
func (c *Catalog) Default(override string) (Persona, bool) {
	for _, code := range []string{override, c.def} {
		if code == "" {
			continue
		}
		if p, err := c.Get(code); err == nil {
			return p, true
		}
	}
	if len(c.personas) == 0 {
		return Persona{}, false
	}
	return c.personas[0], true
}

// Grouped returns personas by category. Uncategorized personas are
// grouped under "other".
func (c *Catalog) Grouped() map[string][]Persona {
	groups := make(map[string][]Persona)
	for _, p := range c.personas {
		cat := p.Category
		if cat == "" {
			cat = "other"
		}
		groups[cat] = append(groups[cat], p)
	}
	return groups
}

// Categories returns the sorted category names.
func (c *Catalog) Categories() []string {
	groups := c.Grouped()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
