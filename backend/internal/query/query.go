// Package query exposes the fixed read paths over the entity graph.
// Every function answers from a secondary index or the junction rows; none scans
// a whole entity type.
package query

import (
	"context"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/pkg/logger"
)

// Service answers queries against one store
type Service struct {
	store  store.EntityStore
	logger *zap.Logger
}

// New creates a query service
func New(s store.EntityStore, log *zap.Logger) *Service {
	return &Service{store: s, logger: logger.OrDefault(log, "query")}
}

// DocumentLink is a document together with the lazy check of its link
type DocumentLink struct {
	entity.Document
	LinkValid bool   `json:"link_valid"`
	LinkError string `json:"link_error,omitempty"`
}

// MeetingsByWorkgroup returns the workgroup's meetings ordered by date
func (q *Service) MeetingsByWorkgroup(ctx context.Context, workgroupID string) ([]entity.Meeting, error) {
	if err := q.require(ctx, entity.TypeWorkgroup, workgroupID); err != nil {
		return nil, err
	}
	ms, err := store.LookupAll[*entity.Meeting](ctx, q.store, entity.IndexMeetingsByWorkgroup, workgroupID)
	if err != nil {
		return nil, err
	}
	return sortMeetings(ms), nil
}

// MeetingsByPerson returns the meetings the person took part in, ordered by date
func (q *Service) MeetingsByPerson(ctx context.Context, personID string) ([]entity.Meeting, error) {
	if err := q.require(ctx, entity.TypePerson, personID); err != nil {
		return nil, err
	}
	rows, err := q.store.PersonMeetings(ctx, personID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MeetingID)
	}
	ms, err := store.GetAllAs[*entity.Meeting](ctx, q.store, entity.TypeMeeting, ids)
	if err != nil {
		return nil, err
	}
	return sortMeetings(ms), nil
}

// PeopleByMeeting returns the meeting's participants with their roles
func (q *Service) PeopleByMeeting(ctx context.Context, meetingID string) ([]entity.Participant, error) {
	if err := q.require(ctx, entity.TypeMeeting, meetingID); err != nil {
		return nil, err
	}
	rows, err := q.store.MeetingPeople(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Participant, 0, len(rows))
	for _, row := range rows {
		p, err := store.GetAs[*entity.Person](ctx, q.store, entity.TypePerson, row.PersonID)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.Participant{Person: *p, Role: row.Role})
	}
	return out, nil
}

// ActionItemsByPerson returns the action items assigned to the person
func (q *Service) ActionItemsByPerson(ctx context.Context, personID string) ([]entity.ActionItem, error) {
	if err := q.require(ctx, entity.TypePerson, personID); err != nil {
		return nil, err
	}
	items, err := store.LookupAll[*entity.ActionItem](ctx, q.store, entity.IndexActionItemsByPerson, personID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.ActionItem, 0, len(items))
	for _, ai := range items {
		out = append(out, *ai)
	}
	return out, nil
}

// DocumentsByMeeting returns the meeting's documents in source order. Links are
// not validated on write; each one is checked here.
func (q *Service) DocumentsByMeeting(ctx context.Context, meetingID string) ([]DocumentLink, error) {
	if err := q.require(ctx, entity.TypeMeeting, meetingID); err != nil {
		return nil, err
	}
	docs, err := store.LookupAll[*entity.Document](ctx, q.store, entity.IndexDocumentsByMeeting, meetingID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Position < docs[j].Position })

	out := make([]DocumentLink, 0, len(docs))
	for _, d := range docs {
		dl := DocumentLink{Document: *d}
		if reason := CheckLink(d.Link); reason != "" {
			dl.LinkError = reason
			q.logger.Debug("Invalid document link",
				zap.String("document_id", d.ID),
				zap.String("link", d.Link),
				zap.String("reason", reason),
			)
		} else {
			dl.LinkValid = true
		}
		out = append(out, dl)
	}
	return out, nil
}

// DecisionItemsByAgendaItem returns the agenda item's decisions, optionally
// only those with the given effect
func (q *Service) DecisionItemsByAgendaItem(ctx context.Context, agendaItemID, effect string) ([]entity.DecisionItem, error) {
	if err := q.require(ctx, entity.TypeAgendaItem, agendaItemID); err != nil {
		return nil, err
	}
	items, err := store.LookupAll[*entity.DecisionItem](ctx, q.store, entity.IndexDecisionItemsByAgendaItem, agendaItemID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.DecisionItem, 0, len(items))
	for _, d := range items {
		if effect == "" || d.Effect == effect {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// CheckLink returns why link is not a usable http(s) URL, or "" when it is
func CheckLink(link string) string {
	if link == "" {
		return "empty link"
	}
	u, err := url.Parse(link)
	if err != nil {
		return "unparseable URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "scheme must be http or https"
	}
	if u.Host == "" {
		return "missing host"
	}
	return ""
}

// require turns a missing root record into an ErrNotFound
func (q *Service) require(ctx context.Context, t entity.Type, id string) error {
	_, err := q.store.Get(ctx, t, id)
	return err
}

func sortMeetings(ms []*entity.Meeting) []entity.Meeting {
	out := make([]entity.Meeting, 0, len(ms))
	for _, m := range ms {
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}
