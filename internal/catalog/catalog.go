// ABOUTME: Pattern catalog of source recordings loaded from YAML
// ABOUTME: Holds recordings per pattern, key groups, and beats per cycle
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrCatalogLookupEmpty means a pattern has no recordings to select from
var ErrCatalogLookupEmpty = errors.New("catalog lookup empty")

// Entry is one source recording
type Entry struct {
	Pattern string `yaml:"-"`
	Tempo   int    `yaml:"tempo"`
	Key     Key    `yaml:"key"`
	Path    string `yaml:"path"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s@%d/%s", e.Pattern, e.Tempo, e.Key)
}

type patternDoc struct {
	Name       string  `yaml:"name"`
	Recordings []Entry `yaml:"recordings"`
}

type catalogDoc struct {
	KeyGroups     map[string][]Key `yaml:"key_groups"`
	BeatsPerCycle map[string]int   `yaml:"beats_per_cycle"`
	Patterns      []patternDoc     `yaml:"patterns"`
}

// Catalog is immutable after loading
type Catalog struct {
	order   []string
	entries map[string][]Entry // sorted by tempo, stable for equal tempos
	beats   map[string]int
	group   [NumKeys]string
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML. Without key_groups, natural keys and
// sharp keys form two groups.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		entries: make(map[string][]Entry),
		beats:   make(map[string]int),
	}

	if len(doc.KeyGroups) == 0 {
		for _, k := range Keys() {
			if k.Sharp() {
				c.group[k] = "sharp"
			} else {
				c.group[k] = "natural"
			}
		}
	} else {
		for name, keys := range doc.KeyGroups {
			for _, k := range keys {
				if c.group[k] != "" {
					return nil, fmt.Errorf("key %s is in groups %q and %q", k, c.group[k], name)
				}
				c.group[k] = name
			}
		}
		for _, k := range Keys() {
			if c.group[k] == "" {
				return nil, fmt.Errorf("key %s is not in any key group", k)
			}
		}
	}

	for name, beats := range doc.BeatsPerCycle {
		if beats < 0 {
			return nil, fmt.Errorf("pattern %s: negative beats per cycle %d", name, beats)
		}
		c.beats[name] = beats
	}

	for _, p := range doc.Patterns {
		if p.Name == "" {
			return nil, errors.New("pattern without a name")
		}
		if _, dup := c.entries[p.Name]; dup {
			return nil, fmt.Errorf("pattern %s listed twice", p.Name)
		}
		if len(p.Recordings) == 0 {
			return nil, fmt.Errorf("pattern %s: no recordings", p.Name)
		}

		entries := make([]Entry, 0, len(p.Recordings))
		for _, r := range p.Recordings {
			if r.Tempo <= 0 {
				return nil, fmt.Errorf("pattern %s: invalid tempo %d", p.Name, r.Tempo)
			}
			if r.Path == "" {
				return nil, fmt.Errorf("pattern %s: recording at %d has no path", p.Name, r.Tempo)
			}
			r.Pattern = p.Name
			entries = append(entries, r)
		}
		slices.SortStableFunc(entries, func(a, b Entry) int {
			return a.Tempo - b.Tempo
		})

		c.order = append(c.order, p.Name)
		c.entries[p.Name] = entries
	}

	if len(c.order) == 0 {
		return nil, errors.New("catalog has no patterns")
	}

	return c, nil
}

// Patterns returns selectable pattern names in catalog order
func (c *Catalog) Patterns() []string {
	return slices.Clone(c.order)
}

// Has reports whether the pattern has recordings
func (c *Catalog) Has(pattern string) bool {
	_, ok := c.entries[pattern]
	return ok
}

// Entries returns the recordings of a pattern sorted by tempo
func (c *Catalog) Entries(pattern string) []Entry {
	return slices.Clone(c.entries[pattern])
}

// BeatsPerCycle returns the cycle length, 0 when the pattern has no beat display
func (c *Catalog) BeatsPerCycle(pattern string) int {
	return c.beats[pattern]
}

// KeyGroup returns the recording group a key belongs to
func (c *Catalog) KeyGroup(k Key) string {
	if k < 0 || int(k) >= NumKeys {
		return ""
	}
	return c.group[k]
}
