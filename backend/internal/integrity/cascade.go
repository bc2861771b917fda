package integrity

import (
	"context"
	"fmt"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
)

// Plan is a fully computed cascade delete. Victims are ordered deepest dependent
// first with the root last; Updates are records rewritten to drop soft references
// to a victim.
type Plan struct {
	Victims []entity.Ref    `json:"victims"`
	Updates []entity.Record `json:"updates"`
}

// children lists the index-backed dependents of each type
var children = map[entity.Type][]string{
	entity.TypeWorkgroup:  {entity.IndexMeetingsByWorkgroup},
	entity.TypeMeeting:    {entity.IndexDocumentsByMeeting, entity.IndexAgendaItemsByMeeting, entity.IndexTagsByMeeting},
	entity.TypeAgendaItem: {entity.IndexActionItemsByAgendaItem, entity.IndexDecisionItemsByAgendaItem},
	entity.TypePerson:     {entity.IndexActionItemsByPerson},
}

// ComputeCascadeSet returns the transitive dependents of one record without writing.
//
//	Person    -> ActionItem (assignee), MeetingPerson; meetings it hosted or documented are updated
//	Workgroup -> Meeting -> Document, AgendaItem -> (ActionItem, DecisionItem), Tag, MeetingPerson
func (g *Guard) ComputeCascadeSet(ctx context.Context, t entity.Type, id string) (*Plan, error) {
	ok, err := g.store.Exists(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound(string(t), id)
	}

	c := &cascade{
		guard: g,
		seen:  make(map[entity.Ref]bool),
	}
	root := entity.Ref{Type: t, ID: id}
	if err := c.visit(ctx, root); err != nil {
		return nil, fmt.Errorf("cascade from %s: %w", root, err)
	}

	plan := &Plan{Victims: c.order}
	if t == entity.TypePerson {
		updates, err := g.personUpdates(ctx, id)
		if err != nil {
			return nil, err
		}
		plan.Updates = updates
	}
	return plan, nil
}

type cascade struct {
	guard *Guard
	seen  map[entity.Ref]bool
	order []entity.Ref
}

// visit appends ref after all of its dependents (post-order)
func (c *cascade) visit(ctx context.Context, ref entity.Ref) error {
	if c.seen[ref] {
		return nil
	}
	c.seen[ref] = true

	deps, err := c.guard.dependents(ctx, ref)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := c.visit(ctx, dep); err != nil {
			return err
		}
	}
	c.order = append(c.order, ref)
	return nil
}

// dependents returns the direct dependents of ref in a stable order
func (g *Guard) dependents(ctx context.Context, ref entity.Ref) ([]entity.Ref, error) {
	var out []entity.Ref
	for _, index := range children[ref.Type] {
		ids, err := g.store.IndexLookup(ctx, index, ref.ID)
		if err != nil {
			return nil, err
		}
		target := entity.IndexTargets[index]
		for _, id := range ids {
			out = append(out, entity.Ref{Type: target, ID: id})
		}
	}

	var rows []entity.MeetingPerson
	var err error
	switch ref.Type {
	case entity.TypeMeeting:
		rows, err = g.store.MeetingPeople(ctx, ref.ID)
	case entity.TypePerson:
		rows, err = g.store.PersonMeetings(ctx, ref.ID)
	}
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out = append(out, entity.Ref{Type: entity.TypeMeetingPerson, ID: row.ID})
	}
	return out, nil
}

// personUpdates clears host/documenter references to a deleted person and drops it
// from the candidate lists of tentative people
func (g *Guard) personUpdates(ctx context.Context, personID string) ([]entity.Record, error) {
	var updates []entity.Record

	meetings, err := g.store.List(ctx, entity.TypeMeeting)
	if err != nil {
		return nil, err
	}
	for _, rec := range meetings {
		m := rec.(*entity.Meeting)
		if m.HostID != personID && m.DocumenterID != personID {
			continue
		}
		if m.HostID == personID {
			m.HostID = ""
		}
		if m.DocumenterID == personID {
			m.DocumenterID = ""
		}
		updates = append(updates, m)
	}

	people, err := g.store.List(ctx, entity.TypePerson)
	if err != nil {
		return nil, err
	}
	for _, rec := range people {
		p := rec.(*entity.Person)
		if p.ID == personID || !containsString(p.CandidateIDs, personID) {
			continue
		}
		p.CandidateIDs = removeString(p.CandidateIDs, personID)
		updates = append(updates, p)
	}
	return updates, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
