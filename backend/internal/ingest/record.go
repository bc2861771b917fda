package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
)

// MeetingRecord is one meeting summary as published by the archive
type MeetingRecord struct {
	Workgroup       string             `json:"workgroup"`
	WorkgroupID     string             `json:"workgroup_id"`
	Type            string             `json:"type"`
	MeetingInfo     MeetingInfo        `json:"meetingInfo"`
	AgendaItems     []AgendaItemRecord `json:"agendaItems"`
	Tags            TagsRecord         `json:"tags"`
	NoSummaryGiven  bool               `json:"noSummaryGiven"`
	CanceledSummary bool               `json:"canceledSummary"`
	Legacy          bool               `json:"legacy"`
}

// MeetingInfo is the header block of a meeting record
type MeetingInfo struct {
	Date          string          `json:"date"`
	Host          string          `json:"host"`
	Documenter    string          `json:"documenter"`
	PeoplePresent StringList      `json:"peoplePresent"`
	Purpose       string          `json:"purpose"`
	WorkingDocs   []WorkingDocRef `json:"workingDocs"`
	Summary       string          `json:"summary"`
}

type WorkingDocRef struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type AgendaItemRecord struct {
	Status           string           `json:"status"`
	Narrative        string           `json:"narrative"`
	DiscussionPoints StringList       `json:"discussionPoints"`
	ActionItems      []ActionRecord   `json:"actionItems"`
	DecisionItems    []DecisionRecord `json:"decisionItems"`
}

type ActionRecord struct {
	Text     string `json:"text"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"dueDate"`
	Status   string `json:"status"`
}

type DecisionRecord struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	Effect    string `json:"effect"`
}

type TagsRecord struct {
	TopicsCovered StringList `json:"topicsCovered"`
	Emotions      StringList `json:"emotions"`
}

// StringList accepts either a JSON array of strings or one comma separated string
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitNames(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected a string or an array of strings: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseRecord decodes one meeting record. index is the record's position in its
// batch and only used for error reporting.
func ParseRecord(index int, data []byte) (*MeetingRecord, error) {
	var rec MeetingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperrors.NewMalformedSourceRecord(index, "invalid JSON", err)
	}

	rec.WorkgroupID = strings.TrimSpace(rec.WorkgroupID)
	rec.Workgroup = strings.TrimSpace(rec.Workgroup)
	rec.MeetingInfo.Date = strings.TrimSpace(rec.MeetingInfo.Date)

	switch {
	case rec.WorkgroupID == "":
		return nil, apperrors.NewMalformedSourceRecord(index, "missing workgroup_id", nil)
	case rec.Workgroup == "":
		return nil, apperrors.NewMalformedSourceRecord(index, "missing workgroup", nil)
	case rec.MeetingInfo.Date == "":
		return nil, apperrors.NewMalformedSourceRecord(index, "missing meetingInfo.date", nil)
	}
	if _, err := time.Parse(entity.DateLayout, rec.MeetingInfo.Date); err != nil {
		return nil, apperrors.NewMalformedSourceRecord(index, "meetingInfo.date is not YYYY-MM-DD", err)
	}
	return &rec, nil
}

// MeetingID is the id the record's meeting is stored under
func (r *MeetingRecord) MeetingID() string {
	return entity.NewID(entity.TypeMeeting, r.WorkgroupID, r.MeetingInfo.Date, r.Type)
}
