package store

import (
	"context"
	"fmt"
	"sort"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
)

// LoadMeetingView resolves the entity graph around one meeting.
// Children are ordered by their source position.
func LoadMeetingView(ctx context.Context, s EntityStore, meetingID string) (*entity.MeetingView, error) {
	m, err := GetAs[*entity.Meeting](ctx, s, entity.TypeMeeting, meetingID)
	if err != nil {
		return nil, err
	}
	wg, err := GetAs[*entity.Workgroup](ctx, s, entity.TypeWorkgroup, m.WorkgroupID)
	if err != nil {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, err)
	}

	v := &entity.MeetingView{
		Meeting:   *m,
		Workgroup: *wg,
		People:    make(map[string]entity.Person),
	}

	person := func(id string) (entity.Person, error) {
		if p, ok := v.People[id]; ok {
			return p, nil
		}
		p, err := GetAs[*entity.Person](ctx, s, entity.TypePerson, id)
		if err != nil {
			return entity.Person{}, err
		}
		v.People[id] = *p
		return *p, nil
	}

	rows, err := s.MeetingPeople(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		p, err := person(row.PersonID)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", row.ID, err)
		}
		v.Participants = append(v.Participants, entity.Participant{Person: p, Role: row.Role})
	}
	for _, id := range []string{m.HostID, m.DocumenterID} {
		if id == "" {
			continue
		}
		if _, err := person(id); err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
	}

	agenda, err := LookupAll[*entity.AgendaItem](ctx, s, entity.IndexAgendaItemsByMeeting, meetingID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(agenda, func(i, j int) bool { return agenda[i].Position < agenda[j].Position })
	for _, a := range agenda {
		v.AgendaItems = append(v.AgendaItems, *a)

		actions, err := LookupAll[*entity.ActionItem](ctx, s, entity.IndexActionItemsByAgendaItem, a.ID)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(actions, func(i, j int) bool { return actions[i].Position < actions[j].Position })
		for _, ai := range actions {
			v.ActionItems = append(v.ActionItems, *ai)
			if ai.AssigneeID != "" {
				if _, err := person(ai.AssigneeID); err != nil && !apperrors.IsNotFound(err) {
					return nil, err
				}
			}
		}

		decisions, err := LookupAll[*entity.DecisionItem](ctx, s, entity.IndexDecisionItemsByAgendaItem, a.ID)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(decisions, func(i, j int) bool { return decisions[i].Position < decisions[j].Position })
		for _, d := range decisions {
			v.Decisions = append(v.Decisions, *d)
		}
	}

	docs, err := LookupAll[*entity.Document](ctx, s, entity.IndexDocumentsByMeeting, meetingID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Position < docs[j].Position })
	for _, d := range docs {
		v.Documents = append(v.Documents, *d)
	}

	tags, err := LookupAll[*entity.Tag](ctx, s, entity.IndexTagsByMeeting, meetingID)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		tag := *tags[0]
		v.Tag = &tag
	}
	return v, nil
}

// LookupAll loads every record filed under key in index
func LookupAll[T entity.Record](ctx context.Context, s EntityStore, index, key string) ([]T, error) {
	ids, err := s.IndexLookup(ctx, index, key)
	if err != nil {
		return nil, err
	}
	return GetAllAs[T](ctx, s, entity.IndexTargets[index], ids)
}
