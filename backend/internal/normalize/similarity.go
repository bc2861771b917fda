package normalize

import (
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// nameMetric compares folded keys; the 4-rune prefix boost favors shared first names
var nameMetric = metrics.NewJaroWinkler()

// jaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1]
func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, nameMetric)
}

// trigramIndex maps padded character trigrams to the keys containing them
type trigramIndex struct {
	grams map[string]map[string]struct{}
}

func newTrigramIndex() *trigramIndex {
	return &trigramIndex{grams: make(map[string]map[string]struct{})}
}

func trigrams(key string) []string {
	r := []rune("  " + key + " ")
	seen := make(map[string]bool, len(r))
	out := make([]string, 0, len(r))
	for i := 0; i+3 <= len(r); i++ {
		g := string(r[i : i+3])
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

func (ix *trigramIndex) add(key string) {
	for _, g := range trigrams(key) {
		set, ok := ix.grams[g]
		if !ok {
			set = make(map[string]struct{})
			ix.grams[g] = set
		}
		set[key] = struct{}{}
	}
}

func (ix *trigramIndex) remove(key string) {
	for _, g := range trigrams(key) {
		delete(ix.grams[g], key)
		if len(ix.grams[g]) == 0 {
			delete(ix.grams, g)
		}
	}
}

// candidates returns the indexed keys sharing at least minShared trigrams with key, sorted
func (ix *trigramIndex) candidates(key string, minShared int) []string {
	counts := make(map[string]int)
	for _, g := range trigrams(key) {
		for k := range ix.grams[g] {
			counts[k]++
		}
	}
	out := make([]string, 0, len(counts))
	for k, n := range counts {
		if n >= minShared {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
