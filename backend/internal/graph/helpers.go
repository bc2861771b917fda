package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"meeting-graph/backend/internal/triples"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// tripleRows flattens triples into UNWIND parameters, dropping exact duplicates
func tripleRows(ts []triples.Triple) []map[string]interface{} {
	seen := make(map[string]bool, len(ts))
	rows := make([]map[string]interface{}, 0, len(ts))
	for _, t := range ts {
		key := t.Subject.ID + "\x1f" + string(t.Relation) + "\x1f" + t.Object.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, map[string]interface{}{
			"subject_id":    t.Subject.ID,
			"subject_type":  t.Subject.Type,
			"subject_label": t.Subject.Label,
			"relation":      string(t.Relation),
			"object_id":     t.Object.ID,
			"object_type":   t.Object.Type,
			"object_label":  t.Object.Label,
		})
	}
	return rows
}

// batches splits rows into slices of at most size rows
func batches(rows []map[string]interface{}, size int) [][]map[string]interface{} {
	if size <= 0 {
		size = len(rows)
	}
	var out [][]map[string]interface{}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
