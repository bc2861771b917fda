// Package triples derives (subject, relation, object) facts from the entity graph.
// Triples are computed on demand and never stored.
package triples

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/pkg/logger"
)

// Relation is one edge kind of the fixed taxonomy
type Relation string

const (
	Held          Relation = "held"            // Workgroup -> Meeting
	Attended      Relation = "attended"        // Person -> Meeting
	Produced      Relation = "produced"        // Meeting -> DecisionItem
	AssignedTo    Relation = "assigned_to"     // ActionItem -> Person
	HasEffect     Relation = "has_effect"      // DecisionItem -> EffectTag
	HasDocument   Relation = "has_document"    // Meeting -> Document
	HasAgendaItem Relation = "has_agenda_item" // Meeting -> AgendaItem
)

// NodeEffectTag is the type of the value node a decision's effect points at
const NodeEffectTag = "effect_tag"

// Node is one end of a triple
type Node struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Triple is a derived fact about the entity graph
type Triple struct {
	Subject  Node     `json:"subject"`
	Relation Relation `json:"relation"`
	Object   Node     `json:"object"`
}

func (t Triple) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Subject.Label, t.Relation, t.Object.Label)
}

// Touches reports whether the entity with the given id is either end of the triple
func (t Triple) Touches(id string) bool {
	return t.Subject.ID == id || t.Object.ID == id
}

// Generator reads the store to derive triples from one entity's point of view
type Generator struct {
	store  store.EntityStore
	logger *zap.Logger
}

// NewGenerator creates a generator over s
func NewGenerator(s store.EntityStore, log *zap.Logger) *Generator {
	return &Generator{store: s, logger: logger.OrDefault(log, "triples")}
}

// Generate returns the triples seen from rec.
//
//	Workgroup     held
//	Meeting       held, attended, produced, has_effect, has_document, assigned_to
//	Person        attended, assigned_to
//	MeetingPerson attended
//	AgendaItem    has_agenda_item, produced, has_effect, assigned_to
//	ActionItem    assigned_to
//	DecisionItem  produced, has_effect
//	Document      has_document
//	Tag           none
func (g *Generator) Generate(ctx context.Context, rec entity.Record) ([]Triple, error) {
	switch r := rec.(type) {
	case *entity.Workgroup:
		return g.workgroup(ctx, r)
	case *entity.Meeting:
		v, err := store.LoadMeetingView(ctx, g.store, r.ID)
		if err != nil {
			return nil, err
		}
		return ForMeeting(v), nil
	case *entity.Person:
		return g.person(ctx, r)
	case *entity.MeetingPerson:
		return g.meetingPerson(ctx, r)
	case *entity.AgendaItem:
		return g.agendaItem(ctx, r)
	case *entity.ActionItem:
		return g.actionItem(ctx, r)
	case *entity.DecisionItem:
		return g.decisionItem(ctx, r)
	case *entity.Document:
		m, err := g.meetingNode(ctx, r.MeetingID)
		if err != nil {
			return nil, err
		}
		return []Triple{{Subject: m, Relation: HasDocument, Object: DocumentNode(*r)}}, nil
	case *entity.Tag:
		return nil, nil
	}
	return nil, fmt.Errorf("no triples for %T", rec)
}

// ForMeeting derives the meeting-perspective triples from a resolved view
func ForMeeting(v *entity.MeetingView) []Triple {
	m := MeetingNode(v.Meeting, v.Workgroup)
	out := []Triple{{Subject: WorkgroupNode(v.Workgroup), Relation: Held, Object: m}}

	for _, p := range v.Participants {
		out = append(out, Triple{Subject: PersonNode(p.Person), Relation: Attended, Object: m})
	}
	for _, d := range v.Decisions {
		out = append(out, decisionTriples(m, d)...)
	}
	for _, doc := range v.Documents {
		out = append(out, Triple{Subject: m, Relation: HasDocument, Object: DocumentNode(doc)})
	}
	for _, ai := range v.ActionItems {
		if p, ok := v.Person(ai.AssigneeID); ok {
			out = append(out, Triple{Subject: ActionItemNode(ai), Relation: AssignedTo, Object: PersonNode(p)})
		}
	}
	return out
}

// ForView is ForMeeting plus the meeting's has_agenda_item edges: every triple
// the meeting's entities take part in
func ForView(v *entity.MeetingView) []Triple {
	out := ForMeeting(v)
	m := MeetingNode(v.Meeting, v.Workgroup)
	for _, a := range v.AgendaItems {
		out = append(out, Triple{Subject: m, Relation: HasAgendaItem, Object: AgendaItemNode(a)})
	}
	return out
}

func decisionTriples(m Node, d entity.DecisionItem) []Triple {
	dn := DecisionNode(d)
	out := []Triple{{Subject: m, Relation: Produced, Object: dn}}
	if d.Effect != "" {
		out = append(out, Triple{Subject: dn, Relation: HasEffect, Object: EffectNode(d.Effect)})
	}
	return out
}

func (g *Generator) workgroup(ctx context.Context, w *entity.Workgroup) ([]Triple, error) {
	meetings, err := store.LookupAll[*entity.Meeting](ctx, g.store, entity.IndexMeetingsByWorkgroup, w.ID)
	if err != nil {
		return nil, err
	}
	wn := WorkgroupNode(*w)
	out := make([]Triple, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, Triple{Subject: wn, Relation: Held, Object: MeetingNode(*m, *w)})
	}
	return out, nil
}

func (g *Generator) person(ctx context.Context, p *entity.Person) ([]Triple, error) {
	pn := PersonNode(*p)
	rows, err := g.store.PersonMeetings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	var out []Triple
	for _, row := range rows {
		m, err := g.meetingNode(ctx, row.MeetingID)
		if err != nil {
			return nil, err
		}
		out = append(out, Triple{Subject: pn, Relation: Attended, Object: m})
	}

	actions, err := store.LookupAll[*entity.ActionItem](ctx, g.store, entity.IndexActionItemsByPerson, p.ID)
	if err != nil {
		return nil, err
	}
	for _, ai := range actions {
		out = append(out, Triple{Subject: ActionItemNode(*ai), Relation: AssignedTo, Object: pn})
	}
	return out, nil
}

func (g *Generator) meetingPerson(ctx context.Context, row *entity.MeetingPerson) ([]Triple, error) {
	p, err := store.GetAs[*entity.Person](ctx, g.store, entity.TypePerson, row.PersonID)
	if err != nil {
		return nil, err
	}
	m, err := g.meetingNode(ctx, row.MeetingID)
	if err != nil {
		return nil, err
	}
	return []Triple{{Subject: PersonNode(*p), Relation: Attended, Object: m}}, nil
}

func (g *Generator) agendaItem(ctx context.Context, a *entity.AgendaItem) ([]Triple, error) {
	m, err := g.meetingNode(ctx, a.MeetingID)
	if err != nil {
		return nil, err
	}
	out := []Triple{{Subject: m, Relation: HasAgendaItem, Object: AgendaItemNode(*a)}}

	decisions, err := store.LookupAll[*entity.DecisionItem](ctx, g.store, entity.IndexDecisionItemsByAgendaItem, a.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		out = append(out, decisionTriples(m, *d)...)
	}

	actions, err := store.LookupAll[*entity.ActionItem](ctx, g.store, entity.IndexActionItemsByAgendaItem, a.ID)
	if err != nil {
		return nil, err
	}
	for _, ai := range actions {
		t, ok, err := g.assignment(ctx, ai)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (g *Generator) actionItem(ctx context.Context, ai *entity.ActionItem) ([]Triple, error) {
	t, ok, err := g.assignment(ctx, ai)
	if err != nil || !ok {
		return nil, err
	}
	return []Triple{t}, nil
}

func (g *Generator) assignment(ctx context.Context, ai *entity.ActionItem) (Triple, bool, error) {
	if ai.AssigneeID == "" {
		return Triple{}, false, nil
	}
	p, err := store.GetAs[*entity.Person](ctx, g.store, entity.TypePerson, ai.AssigneeID)
	if err != nil {
		return Triple{}, false, err
	}
	return Triple{Subject: ActionItemNode(*ai), Relation: AssignedTo, Object: PersonNode(*p)}, true, nil
}

func (g *Generator) decisionItem(ctx context.Context, d *entity.DecisionItem) ([]Triple, error) {
	a, err := store.GetAs[*entity.AgendaItem](ctx, g.store, entity.TypeAgendaItem, d.AgendaItemID)
	if err != nil {
		return nil, err
	}
	m, err := g.meetingNode(ctx, a.MeetingID)
	if err != nil {
		return nil, err
	}
	return decisionTriples(m, *d), nil
}

func (g *Generator) meetingNode(ctx context.Context, meetingID string) (Node, error) {
	m, err := store.GetAs[*entity.Meeting](ctx, g.store, entity.TypeMeeting, meetingID)
	if err != nil {
		return Node{}, err
	}
	w, err := store.GetAs[*entity.Workgroup](ctx, g.store, entity.TypeWorkgroup, m.WorkgroupID)
	if err != nil {
		return Node{}, err
	}
	return MeetingNode(*m, *w), nil
}
