package entity

// ============================================================================
// Meeting Archive Entities
// ============================================================================

// Workgroup owns a series of meetings
type Workgroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meeting is one held (or legacy-imported) meeting of a workgroup
type Meeting struct {
	ID              string   `json:"id"`
	WorkgroupID     string   `json:"workgroup_id"`
	Date            string   `json:"date"` // YYYY-MM-DD
	Type            string   `json:"type,omitempty"`
	HostID          string   `json:"host_id,omitempty"`
	DocumenterID    string   `json:"documenter_id,omitempty"`
	Purpose         string   `json:"purpose,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	NoSummaryGiven  bool     `json:"no_summary_given"`
	CanceledSummary bool     `json:"canceled_summary"`
	Flags           []string `json:"flags,omitempty"`
}

// Person is the canonical record for one real-world participant
type Person struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Aliases      []string `json:"aliases,omitempty"`
	Role         string   `json:"role,omitempty"`
	Flags        []string `json:"flags,omitempty"`
	CandidateIDs []string `json:"candidate_ids,omitempty"` // set on tentative people awaiting disambiguation
}

// MeetingPerson links a person to a meeting they took part in
type MeetingPerson struct {
	ID        string `json:"id"`
	MeetingID string `json:"meeting_id"`
	PersonID  string `json:"person_id"`
	Role      string `json:"role"`
}

// Document is a working document linked from a meeting
type Document struct {
	ID        string `json:"id"`
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Position  int    `json:"position"`
}

// AgendaItem groups the discussion, actions and decisions of one agenda topic
type AgendaItem struct {
	ID               string   `json:"id"`
	MeetingID        string   `json:"meeting_id"`
	Status           string   `json:"status,omitempty"`
	Narrative        string   `json:"narrative,omitempty"`
	DiscussionPoints []string `json:"discussion_points,omitempty"`
	Position         int      `json:"position"`
}

// ActionItem is a task raised under an agenda item
type ActionItem struct {
	ID           string `json:"id"`
	AgendaItemID string `json:"agenda_item_id"`
	Text         string `json:"text"`
	AssigneeID   string `json:"assignee_id,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	Status       string `json:"status,omitempty"`
	Position     int    `json:"position"`
}

// DecisionItem is a decision taken under an agenda item
type DecisionItem struct {
	ID           string `json:"id"`
	AgendaItemID string `json:"agenda_item_id"`
	Decision     string `json:"decision"`
	Rationale    string `json:"rationale,omitempty"`
	Effect       string `json:"effect,omitempty"`
	Position     int    `json:"position"`
}

// Tag carries the topic and emotion labels of a meeting
type Tag struct {
	ID        string   `json:"id"`
	MeetingID string   `json:"meeting_id"`
	Topics    []string `json:"topics,omitempty"`
	Emotions  []string `json:"emotions,omitempty"`
}

// Meeting flags
const (
	// FlagNeedsParticipants marks a legacy meeting loaded without any participant
	FlagNeedsParticipants = "needs-participants"
	// FlagNeedsDisambiguation marks a tentative person whose name matched several people
	FlagNeedsDisambiguation = "needs-disambiguation"
)

// MeetingPerson roles, strongest first
const (
	RoleHost       = "host"
	RoleDocumenter = "documenter"
	RoleAttendee   = "attendee"
)

// HasFlag reports whether flags contains flag
func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends flag unless already present
func AddFlag(flags []string, flag string) []string {
	if HasFlag(flags, flag) {
		return flags
	}
	return append(flags, flag)
}

// RemoveFlag drops every occurrence of flag
func RemoveFlag(flags []string, flag string) []string {
	out := flags[:0:0]
	for _, f := range flags {
		if f != flag {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the display name followed by every alias
func (p Person) Names() []string {
	names := make([]string, 0, 1+len(p.Aliases))
	names = append(names, p.DisplayName)
	return append(names, p.Aliases...)
}

// Tentative reports whether the person is awaiting disambiguation
func (p Person) Tentative() bool {
	return HasFlag(p.Flags, FlagNeedsDisambiguation)
}
