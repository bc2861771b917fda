package entity

import "strings"

// Candidate is a raw entity mention produced by an external extraction step
type Candidate struct {
	Text        string  `json:"text"`
	Type        string  `json:"type"`
	SourceField string  `json:"source_field"`
	Confidence  float64 `json:"confidence"`
}

// Kind is the closed set of variants a candidate can instantiate
type Kind int

const (
	KindUnknown Kind = iota
	KindPerson
	KindWorkgroup
	KindTopic
	KindEmotion
)

func (k Kind) String() string {
	switch k {
	case KindPerson:
		return "person"
	case KindWorkgroup:
		return "workgroup"
	case KindTopic:
		return "topic"
	case KindEmotion:
		return "emotion"
	}
	return "unknown"
}

// personFields are the meeting record fields that only ever hold people
var personFields = map[string]bool{
	"host":          true,
	"documenter":    true,
	"peoplepresent": true,
	"assignee":      true,
	"participants":  true,
}

// ClassifyCandidate decides which variant a candidate instantiates.
// The declared type wins when it is recognized; otherwise the source field decides.
// This is the only place raw type labels are inspected.
func ClassifyCandidate(c Candidate) Kind {
	if strings.TrimSpace(c.Text) == "" {
		return KindUnknown
	}
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "person", "per", "people", "participant":
		return KindPerson
	case "workgroup", "org", "organization", "group":
		return KindWorkgroup
	case "topic", "topics", "subject":
		return KindTopic
	case "emotion", "emotions", "sentiment":
		return KindEmotion
	}

	field := strings.ToLower(c.SourceField)
	for strings.HasSuffix(field, "]") {
		i := strings.LastIndex(field, "[")
		if i < 0 {
			break
		}
		field = field[:i]
	}
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch {
	case personFields[field]:
		return KindPerson
	case field == "workgroup":
		return KindWorkgroup
	case field == "topicscovered" || field == "topics":
		return KindTopic
	case field == "emotions":
		return KindEmotion
	}
	return KindUnknown
}
