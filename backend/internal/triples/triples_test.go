package triples

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
)

func seed(t *testing.T, recs ...entity.Record) *store.FileStore {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, s.Commit(context.Background(), store.Changeset{Puts: recs}))
	return s
}

func scenario() []entity.Record {
	return []entity.Record{
		&entity.Workgroup{ID: "WG1", Name: "Archives WG"},
		&entity.Person{ID: "p1", DisplayName: "Stephen"},
		&entity.Person{ID: "p2", DisplayName: "Alice"},
		&entity.Meeting{ID: "m1", WorkgroupID: "WG1", Date: "2025-01-08"},
		&entity.MeetingPerson{ID: "mp1", MeetingID: "m1", PersonID: "p1", Role: entity.RoleAttendee},
		&entity.MeetingPerson{ID: "mp2", MeetingID: "m1", PersonID: "p2", Role: entity.RoleAttendee},
		&entity.AgendaItem{ID: "a1", MeetingID: "m1"},
		&entity.DecisionItem{ID: "d1", AgendaItemID: "a1", Decision: "Approve budget", Effect: "mayAffectOtherPeople"},
	}
}

func labels(ts []Triple) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return out
}

func TestGenerate_MeetingYieldsExactlyFive(t *testing.T) {
	ctx := context.Background()
	s := seed(t, scenario()...)
	g := NewGenerator(s, zaptest.NewLogger(t))

	m, err := s.Get(ctx, entity.TypeMeeting, "m1")
	require.NoError(t, err)
	got, err := g.Generate(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(Archives WG, held, Archives WG meeting 2025-01-08)",
		"(Stephen, attended, Archives WG meeting 2025-01-08)",
		"(Alice, attended, Archives WG meeting 2025-01-08)",
		"(Archives WG meeting 2025-01-08, produced, Approve budget)",
		"(Approve budget, has_effect, mayAffectOtherPeople)",
	}, labels(got))

	effect := got[4].Object
	assert.Equal(t, Node{Type: NodeEffectTag, ID: "mayAffectOtherPeople", Label: "mayAffectOtherPeople"}, effect)
}

func TestGenerate_Perspectives(t *testing.T) {
	ctx := context.Background()
	recs := append(scenario(),
		&entity.ActionItem{ID: "ai1", AgendaItemID: "a1", Text: "Draft budget", AssigneeID: "p2"},
		&entity.ActionItem{ID: "ai2", AgendaItemID: "a1", Text: "Unassigned task"},
		&entity.Document{ID: "doc1", MeetingID: "m1", Title: "Minutes", Link: "https://example.org"},
		&entity.Tag{ID: "t1", MeetingID: "m1", Topics: []string{"budget"}},
	)
	s := seed(t, recs...)
	g := NewGenerator(s, zaptest.NewLogger(t))

	tests := []struct {
		ref  entity.Ref
		want []Relation
	}{
		{entity.Ref{Type: entity.TypeWorkgroup, ID: "WG1"}, []Relation{Held}},
		{entity.Ref{Type: entity.TypeMeeting, ID: "m1"}, []Relation{Held, Attended, Attended, Produced, HasEffect, HasDocument, AssignedTo}},
		{entity.Ref{Type: entity.TypePerson, ID: "p2"}, []Relation{Attended, AssignedTo}},
		{entity.Ref{Type: entity.TypeMeetingPerson, ID: "mp1"}, []Relation{Attended}},
		{entity.Ref{Type: entity.TypeAgendaItem, ID: "a1"}, []Relation{HasAgendaItem, Produced, HasEffect, AssignedTo}},
		{entity.Ref{Type: entity.TypeActionItem, ID: "ai1"}, []Relation{AssignedTo}},
		{entity.Ref{Type: entity.TypeActionItem, ID: "ai2"}, nil},
		{entity.Ref{Type: entity.TypeDecisionItem, ID: "d1"}, []Relation{Produced, HasEffect}},
		{entity.Ref{Type: entity.TypeDocument, ID: "doc1"}, []Relation{HasDocument}},
		{entity.Ref{Type: entity.TypeTag, ID: "t1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			rec, err := s.Get(ctx, tt.ref.Type, tt.ref.ID)
			require.NoError(t, err)
			got, err := g.Generate(ctx, rec)
			require.NoError(t, err)

			var rels []Relation
			for _, tr := range got {
				rels = append(rels, tr.Relation)
			}
			assert.Equal(t, tt.want, rels)
		})
	}
}

func TestForView_AddsAgendaEdges(t *testing.T) {
	ctx := context.Background()
	s := seed(t, scenario()...)
	v, err := store.LoadMeetingView(ctx, s, "m1")
	require.NoError(t, err)

	all := ForView(v)
	require.Len(t, all, 6)
	assert.Equal(t, HasAgendaItem, all[5].Relation)
	assert.Equal(t, "agenda item 1", all[5].Object.Label)
	assert.True(t, all[5].Touches("a1"))
	assert.False(t, all[0].Touches("a1"))
}
