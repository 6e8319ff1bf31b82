// ABOUTME: Source selection for a pattern, target tempo, and key
// ABOUTME: Falls back from key group to whole pattern so it never fails
package catalog

import "fmt"

// Select picks the recording for a request. Within the target key's group
// it takes the fastest recording not above the target tempo, else the
// slowest in the group. With no recording in the group it takes the
// slowest recording of the pattern.
func (c *Catalog) Select(pattern string, tempo float64, key Key) (Entry, error) {
	entries := c.entries[pattern]
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("pattern %q: %w", pattern, ErrCatalogLookupEmpty)
	}

	group := c.KeyGroup(key)
	var best, slowest *Entry
	for i := range entries {
		e := &entries[i]
		if c.group[e.Key] != group {
			continue
		}
		// entries are sorted, so the first match is the slowest
		if slowest == nil {
			slowest = e
		}
		if float64(e.Tempo) <= tempo {
			best = e
		}
	}

	switch {
	case best != nil:
		return *best, nil
	case slowest != nil:
		return *slowest, nil
	default:
		return entries[0], nil
	}
}
