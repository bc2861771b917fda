package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"meeting-graph/backend/internal/entity"
)

// indexSet holds every secondary index: name -> key -> ids in insertion order.
// It is treated as immutable once published on the store; changes build a new set.
type indexSet map[string]map[string][]string

type indexKey struct {
	index string
	key   string
}

// indexDelta accumulates index edits staged by one commit
type indexDelta struct {
	base    indexSet
	changed map[indexKey][]string
}

func newIndexDelta(base indexSet) *indexDelta {
	return &indexDelta{base: base, changed: make(map[indexKey][]string)}
}

func (d *indexDelta) get(index, key string) []string {
	if ids, ok := d.changed[indexKey{index, key}]; ok {
		return ids
	}
	return d.base[index][key]
}

func (d *indexDelta) add(index, key, id string) {
	cur := d.get(index, key)
	for _, existing := range cur {
		if existing == id {
			return
		}
	}
	next := make([]string, len(cur), len(cur)+1)
	copy(next, cur)
	d.changed[indexKey{index, key}] = append(next, id)
}

func (d *indexDelta) remove(index, key, id string) {
	cur := d.get(index, key)
	next := make([]string, 0, len(cur))
	for _, existing := range cur {
		if existing != id {
			next = append(next, existing)
		}
	}
	if len(next) != len(cur) {
		d.changed[indexKey{index, key}] = next
	}
}

// move files id under the keys of next, dropping it from the keys of prev
func (d *indexDelta) move(id string, prev, next map[string]string) {
	for index, key := range prev {
		if next[index] != key {
			d.remove(index, key, id)
		}
	}
	for index, key := range next {
		if prev[index] != key {
			d.add(index, key, id)
		}
	}
}

// touched returns the names of indexes with staged edits, sorted
func (d *indexDelta) touched() []string {
	seen := make(map[string]bool)
	for k := range d.changed {
		seen[k.index] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply returns a new indexSet with the staged edits; untouched indexes are shared
func (d *indexDelta) apply() indexSet {
	if len(d.changed) == 0 {
		return d.base
	}
	out := make(indexSet, len(d.base))
	for name, keys := range d.base {
		out[name] = keys
	}
	for _, name := range d.touched() {
		keys := make(map[string][]string, len(d.base[name]))
		for k, ids := range d.base[name] {
			keys[k] = ids
		}
		out[name] = keys
	}
	for k, ids := range d.changed {
		if len(ids) == 0 {
			delete(out[k.index], k.key)
			continue
		}
		out[k.index][k.key] = ids
	}
	return out
}

func encodeIndex(keys map[string][]string) ([]byte, error) {
	if keys == nil {
		keys = map[string][]string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *FileStore) loadIndexes() (indexSet, error) {
	out := make(indexSet, len(entity.IndexTargets))
	for name := range entity.IndexTargets {
		data, ok, err := readOptional(s.fs, s.indexPath(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read index %s: %w", name, err)
		}
		keys := make(map[string][]string)
		if ok {
			if err := json.Unmarshal(data, &keys); err != nil {
				return nil, fmt.Errorf("failed to parse index %s: %w", name, err)
			}
		}
		out[name] = keys
	}
	return out, nil
}
