package ingest

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/chunker"
	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/internal/triples"
)

// EntityEntry is one record of the structured entity list
type EntityEntry struct {
	Type   entity.Type   `json:"type"`
	ID     string        `json:"id"`
	Record entity.Record `json:"record"`
}

// Bundle is what the archive hands to the embedding and retrieval stages
type Bundle struct {
	StructuredEntityList    []EntityEntry       `json:"structured_entity_list"`
	NormalizedClusterLabels map[string]string   `json:"normalized_cluster_labels"`
	RelationshipTriples     []triples.Triple    `json:"relationship_triples"`
	ChunksForEmbedding      []chunker.ChunkUnit `json:"chunks_for_embedding"`
}

// BuildView resolves the entity graph around one stored meeting
func (i *Ingester) BuildView(ctx context.Context, meetingID string) (*entity.MeetingView, error) {
	return store.LoadMeetingView(ctx, i.store, meetingID)
}

// Chunks returns the retrieval units of one stored meeting
func (i *Ingester) Chunks(ctx context.Context, meetingID string) ([]chunker.ChunkUnit, error) {
	v, err := i.BuildView(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return i.chunker.Chunk(v, triples.ForView(v)), nil
}

// Bundle assembles the hand-off for the given meetings. Records shared between
// meetings, such as workgroups and people, appear once. Cluster labels map every
// stored name and alias of the bundled people to their canonical id.
func (i *Ingester) Bundle(ctx context.Context, meetingIDs []string) (*Bundle, error) {
	b := &Bundle{
		StructuredEntityList:    []EntityEntry{},
		NormalizedClusterLabels: make(map[string]string),
		RelationshipTriples:     []triples.Triple{},
		ChunksForEmbedding:      []chunker.ChunkUnit{},
	}
	seen := make(map[entity.Ref]bool)
	add := func(rec entity.Record) {
		ref := entity.RefOf(rec)
		if seen[ref] {
			return
		}
		seen[ref] = true
		b.StructuredEntityList = append(b.StructuredEntityList, EntityEntry{Type: ref.Type, ID: ref.ID, Record: rec})
	}

	for _, id := range meetingIDs {
		v, err := i.BuildView(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bundle meeting %s: %w", id, err)
		}
		for _, rec := range v.Records() {
			add(rec)
		}
		rows, err := i.store.MeetingPeople(ctx, id)
		if err != nil {
			return nil, err
		}
		for idx := range rows {
			add(&rows[idx])
		}
		for _, p := range v.People {
			for _, name := range p.Names() {
				b.NormalizedClusterLabels[name] = p.ID
			}
		}

		ts := triples.ForView(v)
		b.RelationshipTriples = append(b.RelationshipTriples, ts...)
		b.ChunksForEmbedding = append(b.ChunksForEmbedding, i.chunker.Chunk(v, ts)...)
	}

	sort.SliceStable(b.StructuredEntityList, func(x, y int) bool {
		return b.StructuredEntityList[x].Type < b.StructuredEntityList[y].Type
	})
	i.logger.Debug("Bundle assembled",
		zap.Int("meetings", len(meetingIDs)),
		zap.Int("entities", len(b.StructuredEntityList)),
		zap.Int("triples", len(b.RelationshipTriples)),
		zap.Int("chunks", len(b.ChunksForEmbedding)),
	)
	return b, nil
}
