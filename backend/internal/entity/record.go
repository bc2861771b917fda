package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "meeting-graph/backend/pkg/errors"
)

// Type names an entity kind; it doubles as the on-disk directory name
type Type string

const (
	TypeWorkgroup     Type = "workgroup"
	TypeMeeting       Type = "meeting"
	TypePerson        Type = "person"
	TypeMeetingPerson Type = "meeting_person"
	TypeDocument      Type = "document"
	TypeAgendaItem    Type = "agenda_item"
	TypeActionItem    Type = "action_item"
	TypeDecisionItem  Type = "decision_item"
	TypeTag           Type = "tag"
)

// Types lists every entity type in a stable order
var Types = []Type{
	TypeWorkgroup,
	TypeMeeting,
	TypePerson,
	TypeMeetingPerson,
	TypeDocument,
	TypeAgendaItem,
	TypeActionItem,
	TypeDecisionItem,
	TypeTag,
}

// ParseType validates a type name coming from outside the process
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Secondary index names
const (
	IndexMeetingsByWorkgroup       = "meetings_by_workgroup"
	IndexAgendaItemsByMeeting      = "agenda_items_by_meeting"
	IndexDocumentsByMeeting        = "documents_by_meeting"
	IndexTagsByMeeting             = "tags_by_meeting"
	IndexActionItemsByAgendaItem   = "action_items_by_agenda_item"
	IndexDecisionItemsByAgendaItem = "decision_items_by_agenda_item"
	IndexActionItemsByPerson       = "action_items_by_person"
)

// IndexTargets maps every index to the type of the ids it holds
var IndexTargets = map[string]Type{
	IndexMeetingsByWorkgroup:       TypeMeeting,
	IndexAgendaItemsByMeeting:      TypeAgendaItem,
	IndexDocumentsByMeeting:        TypeDocument,
	IndexTagsByMeeting:             TypeTag,
	IndexActionItemsByAgendaItem:   TypeActionItem,
	IndexDecisionItemsByAgendaItem: TypeDecisionItem,
	IndexActionItemsByPerson:       TypeActionItem,
}

// Ref identifies a record without loading it
type Ref struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

func (r Ref) String() string {
	return string(r.Type) + "/" + r.ID
}

// Reference is one outgoing foreign key of a record
type Reference struct {
	Field  string
	Target Ref
}

// Record is the closed set of storable entities
type Record interface {
	EntityType() Type
	EntityID() string
	// Validate reports missing required fields
	Validate() []apperrors.Violation
	// References lists the foreign keys that are set
	References() []Reference
	// IndexKeys maps index name to the key this record is filed under
	IndexKeys() map[string]string
}

// RefOf returns the ref of a record
func RefOf(r Record) Ref {
	return Ref{Type: r.EntityType(), ID: r.EntityID()}
}

// New returns an empty record of the given type for decoding
func New(t Type) (Record, error) {
	switch t {
	case TypeWorkgroup:
		return &Workgroup{}, nil
	case TypeMeeting:
		return &Meeting{}, nil
	case TypePerson:
		return &Person{}, nil
	case TypeMeetingPerson:
		return &MeetingPerson{}, nil
	case TypeDocument:
		return &Document{}, nil
	case TypeAgendaItem:
		return &AgendaItem{}, nil
	case TypeActionItem:
		return &ActionItem{}, nil
	case TypeDecisionItem:
		return &DecisionItem{}, nil
	case TypeTag:
		return &Tag{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// Decode parses a stored JSON document into a record of type t
func Decode(t Type, data []byte) (Record, error) {
	rec, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return rec, nil
}

func required(t Type, id string, fields map[string]string) []apperrors.Violation {
	var out []apperrors.Violation
	if strings.TrimSpace(id) == "" {
		out = append(out, apperrors.Violation{EntityType: string(t), Field: "id", Reason: "required"})
	}
	for _, name := range sortedKeys(fields) {
		if strings.TrimSpace(fields[name]) == "" {
			out = append(out, apperrors.Violation{EntityType: string(t), EntityID: id, Field: name, Reason: "required"})
		}
	}
	return out
}

type fk struct {
	field string
	t     Type
	id    string
}

func refs(fks ...fk) []Reference {
	var out []Reference
	for _, f := range fks {
		if f.id != "" {
			out = append(out, Reference{Field: f.field, Target: Ref{Type: f.t, ID: f.id}})
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func keys(pairs ...string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			m[pairs[i]] = pairs[i+1]
		}
	}
	return m
}

// Workgroup

func (w *Workgroup) EntityType() Type { return TypeWorkgroup }
func (w *Workgroup) EntityID() string { return w.ID }
func (w *Workgroup) Validate() []apperrors.Violation {
	return required(TypeWorkgroup, w.ID, map[string]string{"name": w.Name})
}
func (w *Workgroup) References() []Reference      { return nil }
func (w *Workgroup) IndexKeys() map[string]string { return nil }

// Meeting

func (m *Meeting) EntityType() Type { return TypeMeeting }
func (m *Meeting) EntityID() string { return m.ID }
func (m *Meeting) Validate() []apperrors.Violation {
	out := required(TypeMeeting, m.ID, map[string]string{"workgroup_id": m.WorkgroupID, "date": m.Date})
	if m.Date != "" {
		if _, err := time.Parse(DateLayout, m.Date); err != nil {
			out = append(out, apperrors.Violation{EntityType: string(TypeMeeting), EntityID: m.ID, Field: "date", Reason: "not a YYYY-MM-DD date"})
		}
	}
	return out
}
func (m *Meeting) References() []Reference {
	return refs(
		fk{"workgroup_id", TypeWorkgroup, m.WorkgroupID},
		fk{"host_id", TypePerson, m.HostID},
		fk{"documenter_id", TypePerson, m.DocumenterID},
	)
}
func (m *Meeting) IndexKeys() map[string]string {
	return keys(IndexMeetingsByWorkgroup, m.WorkgroupID)
}

// Person

func (p *Person) EntityType() Type { return TypePerson }
func (p *Person) EntityID() string { return p.ID }
func (p *Person) Validate() []apperrors.Violation {
	return required(TypePerson, p.ID, map[string]string{"display_name": p.DisplayName})
}
func (p *Person) References() []Reference      { return nil }
func (p *Person) IndexKeys() map[string]string { return nil }

// MeetingPerson

func (mp *MeetingPerson) EntityType() Type { return TypeMeetingPerson }
func (mp *MeetingPerson) EntityID() string { return mp.ID }
func (mp *MeetingPerson) Validate() []apperrors.Violation {
	return required(TypeMeetingPerson, mp.ID, map[string]string{
		"meeting_id": mp.MeetingID,
		"person_id":  mp.PersonID,
		"role":       mp.Role,
	})
}
func (mp *MeetingPerson) References() []Reference {
	return refs(
		fk{"meeting_id", TypeMeeting, mp.MeetingID},
		fk{"person_id", TypePerson, mp.PersonID},
	)
}
func (mp *MeetingPerson) IndexKeys() map[string]string { return nil }

// Document

func (d *Document) EntityType() Type { return TypeDocument }
func (d *Document) EntityID() string { return d.ID }
func (d *Document) Validate() []apperrors.Violation {
	return required(TypeDocument, d.ID, map[string]string{"meeting_id": d.MeetingID})
}
func (d *Document) References() []Reference {
	return refs(fk{"meeting_id", TypeMeeting, d.MeetingID})
}
func (d *Document) IndexKeys() map[string]string {
	return keys(IndexDocumentsByMeeting, d.MeetingID)
}

// AgendaItem

func (a *AgendaItem) EntityType() Type { return TypeAgendaItem }
func (a *AgendaItem) EntityID() string { return a.ID }
func (a *AgendaItem) Validate() []apperrors.Violation {
	return required(TypeAgendaItem, a.ID, map[string]string{"meeting_id": a.MeetingID})
}
func (a *AgendaItem) References() []Reference {
	return refs(fk{"meeting_id", TypeMeeting, a.MeetingID})
}
func (a *AgendaItem) IndexKeys() map[string]string {
	return keys(IndexAgendaItemsByMeeting, a.MeetingID)
}

// ActionItem

func (ai *ActionItem) EntityType() Type { return TypeActionItem }
func (ai *ActionItem) EntityID() string { return ai.ID }
func (ai *ActionItem) Validate() []apperrors.Violation {
	return required(TypeActionItem, ai.ID, map[string]string{
		"agenda_item_id": ai.AgendaItemID,
		"text":           ai.Text,
	})
}
func (ai *ActionItem) References() []Reference {
	return refs(
		fk{"agenda_item_id", TypeAgendaItem, ai.AgendaItemID},
		fk{"assignee_id", TypePerson, ai.AssigneeID},
	)
}
func (ai *ActionItem) IndexKeys() map[string]string {
	return keys(
		IndexActionItemsByAgendaItem, ai.AgendaItemID,
		IndexActionItemsByPerson, ai.AssigneeID,
	)
}

// DecisionItem

func (d *DecisionItem) EntityType() Type { return TypeDecisionItem }
func (d *DecisionItem) EntityID() string { return d.ID }
func (d *DecisionItem) Validate() []apperrors.Violation {
	return required(TypeDecisionItem, d.ID, map[string]string{
		"agenda_item_id": d.AgendaItemID,
		"decision":       d.Decision,
	})
}
func (d *DecisionItem) References() []Reference {
	return refs(fk{"agenda_item_id", TypeAgendaItem, d.AgendaItemID})
}
func (d *DecisionItem) IndexKeys() map[string]string {
	return keys(IndexDecisionItemsByAgendaItem, d.AgendaItemID)
}

// Tag

func (t *Tag) EntityType() Type { return TypeTag }
func (t *Tag) EntityID() string { return t.ID }
func (t *Tag) Validate() []apperrors.Violation {
	return required(TypeTag, t.ID, map[string]string{"meeting_id": t.MeetingID})
}
func (t *Tag) References() []Reference {
	return refs(fk{"meeting_id", TypeMeeting, t.MeetingID})
}
func (t *Tag) IndexKeys() map[string]string {
	return keys(IndexTagsByMeeting, t.MeetingID)
}
