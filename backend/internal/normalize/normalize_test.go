package normalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/store"
)

func newTestNormalizer(t *testing.T, log *zap.Logger) (*Normalizer, *integrity.Guard) {
	t.Helper()
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	s, err := store.Open(t.TempDir(), store.WithLogger(log))
	require.NoError(t, err)
	g := integrity.NewGuard(s, log)
	n, err := New(context.Background(), g, Options{Logger: log})
	require.NoError(t, err)
	return n, g
}

func TestRuleSet_Clean(t *testing.T) {
	rs := DefaultRules()
	tests := []struct {
		raw  string
		want string
	}{
		{"Stephen", "Stephen"},
		{"Stephen [QADAO]", "Stephen"},
		{"  Alice   (facilitator) ", "Alice"},
		{"@vani", "vani"},
		{"Ｖａｎｉ", "Vani"},
		{"Bob,", "Bob"},
		{"Mary  Jane", "Mary Jane"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rs.Clean(tt.raw), tt.raw)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: strip_role_suffix
    pattern: '\s+-\s+\w+$'
  - name: collapse_whitespace
    pattern: '\s+'
    replace: ' '
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"strip_role_suffix", "collapse_whitespace"}, rs.Names())
	assert.Equal(t, "Alice", rs.Clean("Alice - host"))

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: bad\n    pattern: '('\n"), 0o600))
	_, err = LoadRules(path)
	assert.Error(t, err)
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("stephen", "stephen"))
	assert.Equal(t, 0.0, jaroWinkler("", "stephen"))
	assert.InDelta(t, 0.961, jaroWinkler("martha", "marhta"), 0.001)
	assert.InDelta(t, 0.840, jaroWinkler("dwayne", "duane"), 0.001)
	assert.Less(t, jaroWinkler("stephen", "alice"), 0.95)
}

func TestTrigramIndex(t *testing.T) {
	ix := newTrigramIndex()
	ix.add("stephen")
	ix.add("stefan")
	ix.add("alice")

	assert.Equal(t, []string{"stefan", "stephen"}, ix.candidates("steven", 2))
	ix.remove("stefan")
	assert.Equal(t, []string{"stephen"}, ix.candidates("steven", 2))
}

func TestNormalize_QualifiedVariantsEitherOrder(t *testing.T) {
	ctx := context.Background()
	for _, order := range [][]string{
		{"Stephen", "Stephen [QADAO]"},
		{"Stephen [QADAO]", "Stephen"},
	} {
		n, _ := newTestNormalizer(t, nil)

		first, err := n.Normalize(ctx, order[0])
		require.NoError(t, err)
		assert.True(t, first.Created)
		second, err := n.Normalize(ctx, order[1])
		require.NoError(t, err)
		assert.False(t, second.Created)

		assert.Equal(t, first.CanonicalID, second.CanonicalID, "order %v", order)
		assert.Equal(t, "Stephen", second.CanonicalName)

		p, ok := n.Person(first.CanonicalID)
		require.True(t, ok)
		assert.Equal(t, []string{"Stephen [QADAO]"}, p.Aliases)
	}
}

func TestNormalize_CanonicalNameIsNoOp(t *testing.T) {
	ctx := context.Background()
	n, g := newTestNormalizer(t, nil)

	first, err := n.Normalize(ctx, "Alice")
	require.NoError(t, err)
	stored, err := g.Store().Get(ctx, entity.TypePerson, first.CanonicalID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := n.Normalize(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, first.CanonicalID, again.CanonicalID)
		assert.False(t, again.Created)
		assert.Equal(t, 1.0, again.Confidence)
	}
	after, err := g.Store().Get(ctx, entity.TypePerson, first.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, stored, after)

	people, err := g.Store().List(ctx, entity.TypePerson)
	require.NoError(t, err)
	assert.Len(t, people, 1)
}

func TestNormalize_DistinctNamesStayDistinct(t *testing.T) {
	ctx := context.Background()
	n, _ := newTestNormalizer(t, nil)

	a, err := n.Normalize(ctx, "Stephen")
	require.NoError(t, err)
	b, err := n.Normalize(ctx, "Stefan")
	require.NoError(t, err)
	assert.NotEqual(t, a.CanonicalID, b.CanonicalID)
}

func TestNormalize_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	s, err := store.Open(t.TempDir(), store.WithLogger(log))
	require.NoError(t, err)
	g := integrity.NewGuard(s, log)

	n1, err := New(ctx, g, Options{Logger: log})
	require.NoError(t, err)
	first, err := n1.Normalize(ctx, "Stephen [QADAO]")
	require.NoError(t, err)

	n2, err := New(ctx, g, Options{Logger: log})
	require.NoError(t, err)
	again, err := n2.Normalize(ctx, "stephen")
	require.NoError(t, err)
	assert.Equal(t, first.CanonicalID, again.CanonicalID)
}

func TestMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	n, _ := newTestNormalizer(t, nil)

	res, err := n.Normalize(ctx, "Alice")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, n.Merge(ctx, res.CanonicalID, "Ally"))
	}
	p, _ := n.Person(res.CanonicalID)
	assert.Equal(t, []string{"Ally"}, p.Aliases)

	// the alias now resolves to the same person
	ally, err := n.Normalize(ctx, "ally")
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalID, ally.CanonicalID)

	assert.Error(t, n.Merge(ctx, "missing", "x"))
}

func TestNormalize_DeletedPersonIsRecreated(t *testing.T) {
	ctx := context.Background()
	n, g := newTestNormalizer(t, nil)

	first, err := n.Normalize(ctx, "Alice [QADAO]")
	require.NoError(t, err)
	_, err = g.Delete(ctx, entity.TypePerson, first.CanonicalID)
	require.NoError(t, err)

	_, ok := n.Person(first.CanonicalID)
	assert.False(t, ok)
	assert.NotContains(t, n.ClusterLabels(), "Alice [QADAO]")

	again, err := n.Normalize(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, again.Created)
	ok, err = g.Store().Exists(ctx, entity.TypePerson, again.CanonicalID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNormalize_DropsPersonDeletedBehindItsBack(t *testing.T) {
	ctx := context.Background()
	n, g := newTestNormalizer(t, nil)

	first, err := n.Normalize(ctx, "Bob")
	require.NoError(t, err)
	victim := entity.Ref{Type: entity.TypePerson, ID: first.CanonicalID}
	require.NoError(t, g.Store().Delete(ctx, []entity.Ref{victim}, nil))

	again, err := n.Normalize(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, again.Created)
	ok, err := g.Store().Exists(ctx, entity.TypePerson, again.CanonicalID)
	require.NoError(t, err)
	assert.True(t, ok)
}

// seedNamesakes stores two people with the same display name, each attending a
// meeting of its own workgroup together with a colleague
func seedNamesakes(t *testing.T, g *integrity.Guard) {
	t.Helper()
	ctx := context.Background()
	s := g.Store()
	recs := []entity.Record{
		&entity.Person{ID: "alex-1", DisplayName: "Alex Chen"},
		&entity.Person{ID: "alex-2", DisplayName: "Alex Chen"},
		&entity.Person{ID: "bea", DisplayName: "Bea"},
		&entity.Person{ID: "carl", DisplayName: "Carl"},
		&entity.Workgroup{ID: "wg1", Name: "Archives WG"},
		&entity.Workgroup{ID: "wg2", Name: "Treasury WG"},
		&entity.Meeting{ID: "m1", WorkgroupID: "wg1", Date: "2025-01-01"},
		&entity.Meeting{ID: "m2", WorkgroupID: "wg2", Date: "2025-01-02"},
		&entity.MeetingPerson{ID: "m1-alex-1", MeetingID: "m1", PersonID: "alex-1", Role: entity.RoleAttendee},
		&entity.MeetingPerson{ID: "m1-bea", MeetingID: "m1", PersonID: "bea", Role: entity.RoleAttendee},
		&entity.MeetingPerson{ID: "m2-alex-2", MeetingID: "m2", PersonID: "alex-2", Role: entity.RoleAttendee},
		&entity.MeetingPerson{ID: "m2-carl", MeetingID: "m2", PersonID: "carl", Role: entity.RoleAttendee},
	}
	require.NoError(t, s.Commit(ctx, store.Changeset{Puts: recs}))
}

func TestNormalize_AmbiguityDefers(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	n, g := newTestNormalizer(t, zap.New(core))
	seedNamesakes(t, g)
	n, err := New(ctx, g, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	res, err := n.Normalize(ctx, "Alex Chen")
	require.NoError(t, err)
	assert.True(t, res.Tentative)
	assert.True(t, res.Created)

	p, ok := n.Person(res.CanonicalID)
	require.True(t, ok)
	assert.True(t, p.Tentative())
	assert.Equal(t, []string{"alex-1", "alex-2"}, p.CandidateIDs)
	assert.Equal(t, 1, logs.FilterMessage("Ambiguous person name deferred").Len())

	// the same ambiguous name reuses the tentative record
	again, err := n.Normalize(ctx, "Alex Chen")
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalID, again.CanonicalID)
	assert.False(t, again.Created)
}

func TestReconcile_MergesOnCoOccurrence(t *testing.T) {
	ctx := context.Background()
	n, g := newTestNormalizer(t, nil)
	seedNamesakes(t, g)
	n, err := New(ctx, g, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	s := g.Store()

	res, err := n.Normalize(ctx, "Alex Chen [treasury]")
	require.NoError(t, err)
	require.True(t, res.Tentative)

	// the tentative Alex attends a treasury meeting with Carl and is assigned an action
	require.NoError(t, s.Commit(ctx, store.Changeset{Puts: []entity.Record{
		&entity.Meeting{ID: "m3", WorkgroupID: "wg2", Date: "2025-02-01", HostID: res.CanonicalID},
		&entity.MeetingPerson{ID: "m3-tent", MeetingID: "m3", PersonID: res.CanonicalID, Role: entity.RoleHost},
		&entity.MeetingPerson{ID: "m3-carl", MeetingID: "m3", PersonID: "carl", Role: entity.RoleAttendee},
		&entity.AgendaItem{ID: "m3-a1", MeetingID: "m3"},
		&entity.ActionItem{ID: "m3-ai1", AgendaItemID: "m3-a1", Text: "Pay invoices", AssigneeID: res.CanonicalID},
	}}))

	recs, err := n.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Merged)
	assert.Equal(t, "alex-2", recs[0].CanonicalID)
	assert.Equal(t, map[string]int{"alex-1": 0, "alex-2": 3}, recs[0].Scores)

	ok, err := s.Exists(ctx, entity.TypePerson, res.CanonicalID)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := store.GetAs[*entity.Meeting](ctx, s, entity.TypeMeeting, "m3")
	require.NoError(t, err)
	assert.Equal(t, "alex-2", m.HostID)

	ai, err := store.GetAs[*entity.ActionItem](ctx, s, entity.TypeActionItem, "m3-ai1")
	require.NoError(t, err)
	assert.Equal(t, "alex-2", ai.AssigneeID)

	rows, err := s.PersonMeetings(ctx, "alex-2")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, entity.RoleHost, rows[1].Role)

	alex, _ := n.Person("alex-2")
	assert.Contains(t, alex.Aliases, "Alex Chen [treasury]")
	assert.Equal(t, "alex-2", n.ClusterLabels()["Alex Chen [treasury]"])
}

func TestReconcile_NoSignalLeavesTentative(t *testing.T) {
	ctx := context.Background()
	n, g := newTestNormalizer(t, nil)
	seedNamesakes(t, g)
	n, err := New(ctx, g, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	res, err := n.Normalize(ctx, "Alex Chen")
	require.NoError(t, err)

	recs, err := n.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Merged)

	p, ok := n.Person(res.CanonicalID)
	require.True(t, ok)
	assert.True(t, p.Tentative())
}

func TestMergeCandidates(t *testing.T) {
	ctx := context.Background()
	n, _ := newTestNormalizer(t, nil)

	report, err := n.MergeCandidates(ctx, []entity.Candidate{
		{Text: "Stephen", Type: "PERSON", Confidence: 0.9},
		{Text: "Stephen [QADAO]", SourceField: "meetingInfo.host"},
		{Text: "Archives WG", SourceField: "workgroup"},
		{Text: "budget", SourceField: "tags.topicsCovered"},
	})
	require.NoError(t, err)
	require.Len(t, report.Resolved, 2)
	assert.Equal(t, report.Resolved[0].CanonicalID, report.Resolved[1].CanonicalID)
	assert.Equal(t, 1, report.Skipped[entity.KindWorkgroup.String()])
	assert.Equal(t, 1, report.Skipped[entity.KindTopic.String()])

	labels := n.ClusterLabels()
	assert.Len(t, labels, 2)
}
