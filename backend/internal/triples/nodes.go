package triples

import (
	"fmt"

	"meeting-graph/backend/internal/entity"
)

func WorkgroupNode(w entity.Workgroup) Node {
	return Node{Type: string(entity.TypeWorkgroup), ID: w.ID, Label: w.Name}
}

// MeetingNode labels a meeting by its workgroup and date
func MeetingNode(m entity.Meeting, w entity.Workgroup) Node {
	return Node{Type: string(entity.TypeMeeting), ID: m.ID, Label: fmt.Sprintf("%s meeting %s", w.Name, m.Date)}
}

func PersonNode(p entity.Person) Node {
	return Node{Type: string(entity.TypePerson), ID: p.ID, Label: p.DisplayName}
}

func AgendaItemNode(a entity.AgendaItem) Node {
	label := a.Narrative
	if label == "" {
		label = fmt.Sprintf("agenda item %d", a.Position+1)
	}
	return Node{Type: string(entity.TypeAgendaItem), ID: a.ID, Label: label}
}

func ActionItemNode(ai entity.ActionItem) Node {
	return Node{Type: string(entity.TypeActionItem), ID: ai.ID, Label: ai.Text}
}

func DecisionNode(d entity.DecisionItem) Node {
	return Node{Type: string(entity.TypeDecisionItem), ID: d.ID, Label: d.Decision}
}

func DocumentNode(d entity.Document) Node {
	label := d.Title
	if label == "" {
		label = d.Link
	}
	return Node{Type: string(entity.TypeDocument), ID: d.ID, Label: label}
}

// EffectNode is the value node of a decision effect; its id is the effect itself
func EffectNode(effect string) Node {
	return Node{Type: NodeEffectTag, ID: effect, Label: effect}
}
