package entity

import "sort"

// Participant is a person together with their role in one meeting
type Participant struct {
	Person Person `json:"person"`
	Role   string `json:"role"`
}

// MeetingView is the resolved entity graph around one meeting.
// Slices follow source order (Position) so consumers stay deterministic.
type MeetingView struct {
	Meeting      Meeting           `json:"meeting"`
	Workgroup    Workgroup         `json:"workgroup"`
	Participants []Participant     `json:"participants"`
	AgendaItems  []AgendaItem      `json:"agenda_items"`
	ActionItems  []ActionItem      `json:"action_items"`
	Decisions    []DecisionItem    `json:"decisions"`
	Documents    []Document        `json:"documents"`
	Tag          *Tag              `json:"tag,omitempty"`
	People       map[string]Person `json:"people"` // every person referenced by the meeting, by id
}

// Person looks up a referenced person by id
func (v *MeetingView) Person(id string) (Person, bool) {
	p, ok := v.People[id]
	return p, ok
}

// AgendaItem looks up an agenda item of the meeting by id
func (v *MeetingView) AgendaItem(id string) (AgendaItem, bool) {
	for _, a := range v.AgendaItems {
		if a.ID == id {
			return a, true
		}
	}
	return AgendaItem{}, false
}

// Records flattens the view into storable records in dependency order
func (v *MeetingView) Records() []Record {
	out := []Record{&v.Workgroup, &v.Meeting}
	ids := make([]string, 0, len(v.People))
	for id := range v.People {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := v.People[id]
		out = append(out, &p)
	}
	for i := range v.AgendaItems {
		out = append(out, &v.AgendaItems[i])
	}
	for i := range v.ActionItems {
		out = append(out, &v.ActionItems[i])
	}
	for i := range v.Decisions {
		out = append(out, &v.Decisions[i])
	}
	for i := range v.Documents {
		out = append(out, &v.Documents[i])
	}
	if v.Tag != nil {
		out = append(out, v.Tag)
	}
	return out
}
