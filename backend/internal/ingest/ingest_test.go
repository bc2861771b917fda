package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/normalize"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/internal/triples"
	apperrors "meeting-graph/backend/pkg/errors"
)

const firstMeeting = `{
  "workgroup": "Archives WG",
  "workgroup_id": "WG1",
  "meetingInfo": {
    "date": "2025-01-08",
    "host": "Stephen",
    "peoplePresent": "Stephen, Alice"
  },
  "agendaItems": [
    {
      "narrative": "Budget",
      "decisionItems": [{"decision": "Approve budget", "effect": "mayAffectOtherPeople"}]
    }
  ]
}`

const secondMeeting = `{
  "workgroup": "Archives WG",
  "workgroup_id": "WG1",
  "meetingInfo": {
    "date": "2025-01-15",
    "peoplePresent": ["Stephen [QADAO]", "Bob"]
  },
  "agendaItems": [
    {"actionItems": [{"text": "Scan the ledgers", "assignee": "Bob"}]}
  ],
  "tags": {"topicsCovered": "archives, budget"}
}`

func openStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func newIngester(t *testing.T, s store.EntityStore) *Ingester {
	t.Helper()
	return newIngesterWithLogger(t, s, zaptest.NewLogger(t))
}

func newIngesterWithLogger(t *testing.T, s store.EntityStore, log *zap.Logger) *Ingester {
	t.Helper()
	g := integrity.NewGuard(s, log)
	n, err := normalize.New(context.Background(), g, normalize.Options{Logger: log})
	require.NoError(t, err)
	return New(g, n, Options{Workers: 2, Logger: log})
}

func ingest(t *testing.T, i *Ingester, raw string) Outcome {
	t.Helper()
	rec, err := ParseRecord(0, []byte(raw))
	require.NoError(t, err)
	out, err := i.IngestRecord(context.Background(), 0, rec)
	require.NoError(t, err)
	require.Equal(t, StatusIngested, out.Status)
	return out
}

func personID(name string) string {
	return entity.NewID(entity.TypePerson, normalize.Key(name))
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"invalid json", `{"workgroup":`, "invalid JSON"},
		{"missing workgroup id", `{"workgroup":"A","meetingInfo":{"date":"2025-01-08"}}`, "missing workgroup_id"},
		{"missing workgroup", `{"workgroup_id":"A","meetingInfo":{"date":"2025-01-08"}}`, "missing workgroup"},
		{"missing date", `{"workgroup":"A","workgroup_id":"A"}`, "missing meetingInfo.date"},
		{"bad date", `{"workgroup":"A","workgroup_id":"A","meetingInfo":{"date":"08/01/2025"}}`, "meetingInfo.date is not YYYY-MM-DD"},
		{"bad people list", `{"workgroup":"A","workgroup_id":"A","meetingInfo":{"date":"2025-01-08","peoplePresent":3}}`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(7, []byte(tt.raw))
			var malformed *apperrors.ErrMalformedSourceRecord
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, 7, malformed.Index)
			assert.Equal(t, tt.reason, malformed.Reason)
		})
	}
}

func TestParseRecord_PeopleListShapes(t *testing.T) {
	first, err := ParseRecord(0, []byte(firstMeeting))
	require.NoError(t, err)
	assert.Equal(t, StringList{"Stephen", "Alice"}, first.MeetingInfo.PeoplePresent)

	second, err := ParseRecord(1, []byte(secondMeeting))
	require.NoError(t, err)
	assert.Equal(t, StringList{"Stephen [QADAO]", "Bob"}, second.MeetingInfo.PeoplePresent)
	assert.Equal(t, StringList{"archives", "budget"}, second.Tags.TopicsCovered)
	assert.NotEqual(t, first.MeetingID(), second.MeetingID())
}

func TestIngestRecord_ResolvesNameVariantsAcrossMeetings(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	i := newIngester(t, s)

	first := ingest(t, i, firstMeeting)
	second := ingest(t, i, secondMeeting)

	stephen := personID("Stephen")
	var qadao normalize.Resolution
	for _, r := range second.Resolutions {
		if r.Raw == "Stephen [QADAO]" {
			qadao = r
		}
	}
	assert.Equal(t, stephen, qadao.CanonicalID)
	assert.False(t, qadao.Created)

	rows, err := s.PersonMeetings(ctx, stephen)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	p, err := store.GetAs[*entity.Person](ctx, s, entity.TypePerson, stephen)
	require.NoError(t, err)
	assert.Equal(t, "Stephen", p.DisplayName)
	assert.Contains(t, p.Aliases, "Stephen [QADAO]")

	m, err := store.GetAs[*entity.Meeting](ctx, s, entity.TypeMeeting, first.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, stephen, m.HostID)

	participants, err := s.MeetingPeople(ctx, first.MeetingID)
	require.NoError(t, err)
	roles := make(map[string]string)
	for _, row := range participants {
		roles[row.PersonID] = row.Role
	}
	assert.Equal(t, map[string]string{stephen: entity.RoleHost, personID("Alice"): entity.RoleAttendee}, roles)

	g := triples.NewGenerator(s, zaptest.NewLogger(t))
	ts, err := g.Generate(ctx, m)
	require.NoError(t, err)
	var got []string
	for _, tr := range ts {
		got = append(got, tr.String())
	}
	assert.ElementsMatch(t, []string{
		"(Archives WG, held, Archives WG meeting 2025-01-08)",
		"(Stephen, attended, Archives WG meeting 2025-01-08)",
		"(Alice, attended, Archives WG meeting 2025-01-08)",
		"(Archives WG meeting 2025-01-08, produced, Approve budget)",
		"(Approve budget, has_effect, mayAffectOtherPeople)",
	}, got)
}

func TestIngestRecord_SkipsStoredMeeting(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	i := newIngesterWithLogger(t, openStore(t), zap.New(core))
	first := ingest(t, i, firstMeeting)

	rec, err := ParseRecord(1, []byte(firstMeeting))
	require.NoError(t, err)
	again, err := i.IngestRecord(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, again.Status)
	assert.Equal(t, first.MeetingID, again.MeetingID)

	// another meeting of the same workgroup on the same day collides on the key
	other := `{"workgroup":"Archives WG","workgroup_id":"WG1","meetingInfo":{"date":"2025-01-08","purpose":"Retro","peoplePresent":"Bob"}}`
	rec, err = ParseRecord(2, []byte(other))
	require.NoError(t, err)
	out, err := i.IngestRecord(context.Background(), 2, rec)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)

	skipped := logs.FilterMessage("Meeting already stored, record skipped").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, first.MeetingID, skipped[1].ContextMap()["meeting_id"])
	assert.Equal(t, int64(2), skipped[1].ContextMap()["index"])
}

func TestIngestRecord_PersonDeletedThenSeenAgain(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	i := newIngester(t, s)
	ingest(t, i, firstMeeting)

	_, err := i.guard.Delete(ctx, entity.TypePerson, personID("Alice"))
	require.NoError(t, err)

	out := ingest(t, i, `{"workgroup":"Archives WG","workgroup_id":"WG1","meetingInfo":{"date":"2025-02-01","peoplePresent":"Alice"}}`)
	rows, err := s.MeetingPeople(ctx, out.MeetingID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ok, err := s.Exists(ctx, entity.TypePerson, rows[0].PersonID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngestRecord_ParticipantRule(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	i := newIngester(t, s)

	raw := `{"workgroup":"Archives WG","workgroup_id":"WG1","meetingInfo":{"date":"2024-03-01"}}`
	rec, err := ParseRecord(0, []byte(raw))
	require.NoError(t, err)

	out, err := i.IngestRecord(ctx, 0, rec)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, StatusFailed, out.Status)
	ok, err := s.Exists(ctx, entity.TypeMeeting, rec.MeetingID())
	require.NoError(t, err)
	assert.False(t, ok)

	rec.Legacy = true
	out, err = i.IngestRecord(ctx, 0, rec)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, out.Status)
	m, err := store.GetAs[*entity.Meeting](ctx, s, entity.TypeMeeting, rec.MeetingID())
	require.NoError(t, err)
	assert.True(t, entity.HasFlag(m.Flags, entity.FlagNeedsParticipants))
}

// failingChildren rejects any commit that writes an agenda item
type failingChildren struct {
	store.EntityStore
}

func (f failingChildren) Commit(ctx context.Context, cs store.Changeset) error {
	for _, rec := range cs.Puts {
		if rec.EntityType() == entity.TypeAgendaItem {
			return errors.New("disk full")
		}
	}
	return f.EntityStore.Commit(ctx, cs)
}

func TestIngestRecord_ChildFailureRemovesPartialMeeting(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	i := newIngester(t, failingChildren{s})

	rec, err := ParseRecord(0, []byte(firstMeeting))
	require.NoError(t, err)
	out, err := i.IngestRecord(ctx, 0, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StatusFailed, out.Status)

	ok, err := s.Exists(ctx, entity.TypeMeeting, rec.MeetingID())
	require.NoError(t, err)
	assert.False(t, ok)
	rows, err := s.MeetingPeople(ctx, rec.MeetingID())
	require.NoError(t, err)
	assert.Empty(t, rows)

	report, err := s.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIngestBatch_OutcomesInInputOrder(t *testing.T) {
	i := newIngester(t, openStore(t))
	raws := [][]byte{[]byte(firstMeeting), []byte(`{"workgroup": "broken"`), []byte(secondMeeting), []byte(firstMeeting)}

	result, err := i.IngestBatch(context.Background(), raws)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 4)

	var statuses []Status
	for idx, o := range result.Outcomes {
		assert.Equal(t, idx, o.Index)
		statuses = append(statuses, o.Status)
	}
	assert.Equal(t, []Status{StatusIngested, StatusMalformed, StatusIngested, StatusSkipped}, statuses)
	assert.NotEmpty(t, result.Outcomes[1].Error)
	assert.Equal(t, 2, result.Count(StatusIngested))
	assert.Equal(t, personID("Stephen"), result.ClusterLabels["Stephen [QADAO]"])
	assert.Empty(t, result.Reconciliations)
}

func TestSplitBatch(t *testing.T) {
	raws, err := SplitBatch([]byte(`[{"a":1}, {"b":2}]`))
	require.NoError(t, err)
	assert.Len(t, raws, 2)

	_, err = SplitBatch([]byte(`{"a":1}`))
	assert.Error(t, err)
}

func TestBundle(t *testing.T) {
	ctx := context.Background()
	i := newIngester(t, openStore(t))
	first := ingest(t, i, firstMeeting)
	second := ingest(t, i, secondMeeting)

	b, err := i.Bundle(ctx, []string{first.MeetingID, second.MeetingID})
	require.NoError(t, err)

	counts := make(map[entity.Type]int)
	for _, e := range b.StructuredEntityList {
		counts[e.Type]++
	}
	assert.Equal(t, map[entity.Type]int{
		entity.TypeWorkgroup:     1,
		entity.TypeMeeting:       2,
		entity.TypePerson:        3,
		entity.TypeMeetingPerson: 4,
		entity.TypeAgendaItem:    2,
		entity.TypeActionItem:    1,
		entity.TypeDecisionItem:  1,
		entity.TypeTag:           1,
	}, counts)

	assert.Equal(t, personID("Stephen"), b.NormalizedClusterLabels["Stephen [QADAO]"])
	assert.Equal(t, personID("Stephen"), b.NormalizedClusterLabels["Stephen"])
	assert.Equal(t, personID("Bob"), b.NormalizedClusterLabels["Bob"])

	// 5 meeting triples + 1 agenda edge, then held, 2 attended, assigned_to + 1 agenda edge
	assert.Len(t, b.RelationshipTriples, 11)
	// summary, decision, attendance; then action item, attendance
	assert.Len(t, b.ChunksForEmbedding, 5)

	_, err = i.Bundle(ctx, []string{"missing"})
	assert.True(t, apperrors.IsNotFound(err))
}
