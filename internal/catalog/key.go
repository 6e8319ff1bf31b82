// ABOUTME: Pitch classes in chromatic order with parsing and formatting
// ABOUTME: Keys are indices 0-11 starting at C
package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key is a pitch class, 0 = C through 11 = B
type Key int

// NumKeys is the size of the chromatic circle
const NumKeys = 12

var keyNames = [NumKeys]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = map[string]Key{
	"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10,
}

// Keys returns all pitch classes in chromatic order
func Keys() []Key {
	keys := make([]Key, NumKeys)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}

// ParseKey accepts sharp ("G#") or flat ("Ab") spellings, case-insensitive
func ParseKey(s string) (Key, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range keyNames {
		if n == name {
			return Key(i), nil
		}
	}
	if k, ok := flatNames[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// String returns the sharp spelling
func (k Key) String() string {
	if k < 0 || int(k) >= NumKeys {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// Index returns the chromatic index 0-11
func (k Key) Index() int {
	return int(k)
}

// Sharp reports whether the key is spelled with an accidental
func (k Key) Sharp() bool {
	return strings.HasSuffix(k.String(), "#")
}

// Next returns the key delta semitones away, wrapping around the circle
func (k Key) Next(delta int) Key {
	return Key(((int(k)+delta)%NumKeys + NumKeys) % NumKeys)
}

// MarshalYAML writes the sharp spelling
func (k Key) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML parses a key name
func (k *Key) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseKey(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*k = parsed
	return nil
}
