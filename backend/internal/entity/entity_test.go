package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Stable(t *testing.T) {
	a := NewID(TypeMeeting, "WG1", "2025-01-08")
	b := NewID(TypeMeeting, "WG1", "2025-01-08")
	c := NewID(TypeMeeting, "WG1", "2025-01-09")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, NewID(TypePerson, "x"), NewID(TypeTag, "x"), "type is part of the key")
}

func TestClassifyCandidate(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want Kind
	}{
		{"declared person", Candidate{Text: "Stephen", Type: "PERSON"}, KindPerson},
		{"declared org", Candidate{Text: "Archives WG", Type: "org"}, KindWorkgroup},
		{"field host", Candidate{Text: "Alice", SourceField: "meetingInfo.host"}, KindPerson},
		{"field assignee", Candidate{Text: "Bob", SourceField: "agendaItems[0].actionItems[2].assignee"}, KindPerson},
		{"field topics", Candidate{Text: "budget", SourceField: "tags.topicsCovered"}, KindTopic},
		{"field emotions", Candidate{Text: "calm", SourceField: "tags.emotions"}, KindEmotion},
		{"indexed people field", Candidate{Text: "Carol", SourceField: "meetingInfo.peoplePresent[2]"}, KindPerson},
		{"empty text", Candidate{Text: "  ", Type: "person"}, KindUnknown},
		{"unrecognized", Candidate{Text: "x", Type: "date", SourceField: "meetingInfo.date"}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCandidate(tt.c))
		})
	}
}

func TestRecord_ValidateAndReferences(t *testing.T) {
	m := &Meeting{ID: "m1", WorkgroupID: "WG1", Date: "2025-01-08", HostID: "p1"}
	assert.Empty(t, m.Validate())
	assert.Equal(t, []Reference{
		{Field: "workgroup_id", Target: Ref{Type: TypeWorkgroup, ID: "WG1"}},
		{Field: "host_id", Target: Ref{Type: TypePerson, ID: "p1"}},
	}, m.References())
	assert.Equal(t, map[string]string{IndexMeetingsByWorkgroup: "WG1"}, m.IndexKeys())

	bad := &Meeting{ID: "m2", Date: "08/01/2025"}
	violations := bad.Validate()
	require.Len(t, violations, 2)
	assert.Equal(t, "workgroup_id", violations[0].Field)
	assert.Equal(t, "date", violations[1].Field)

	ai := &ActionItem{ID: "a1", AgendaItemID: "ag1", Text: "write notes"}
	assert.Len(t, ai.References(), 1, "unset assignee is not a reference")
	assert.NotContains(t, ai.IndexKeys(), IndexActionItemsByPerson)
}

func TestDecode_RoundTripsType(t *testing.T) {
	rec, err := Decode(TypeDecisionItem, []byte(`{"id":"d1","agenda_item_id":"ag1","decision":"Approve budget","effect":"mayAffectOtherPeople"}`))
	require.NoError(t, err)

	d, ok := rec.(*DecisionItem)
	require.True(t, ok)
	assert.Equal(t, "mayAffectOtherPeople", d.Effect)

	_, err = Decode(Type("bogus"), []byte(`{}`))
	assert.Error(t, err)
}

func TestFlags(t *testing.T) {
	flags := AddFlag(nil, FlagNeedsParticipants)
	flags = AddFlag(flags, FlagNeedsParticipants)
	assert.Equal(t, []string{FlagNeedsParticipants}, flags)
	assert.Empty(t, RemoveFlag(flags, FlagNeedsParticipants))
}
