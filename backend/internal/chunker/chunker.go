// Package chunker turns a resolved meeting into retrieval units aligned to content
// boundaries: one summary unit, one per action item, one per decision, one for
// attendance and one per linked document. Units over the token budget are split at
// sentence boundaries and every fragment keeps the unit's metadata.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/triples"
	"meeting-graph/backend/pkg/logger"
)

// DefaultTokenBudget is used when Options.TokenBudget is not set
const DefaultTokenBudget = 512

// ChunkType names the content boundary a unit came from
type ChunkType string

const (
	ChunkSummary    ChunkType = "summary"
	ChunkActionItem ChunkType = "action_item"
	ChunkDecision   ChunkType = "decision"
	ChunkAttendance ChunkType = "attendance"
	ChunkDocument   ChunkType = "document"
)

// EntityRef names a canonical entity mentioned in a unit
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChunkUnit is one retrieval unit, or one fragment of a split unit
type ChunkUnit struct {
	ID           string           `json:"id"`
	MeetingID    string           `json:"meeting_id"`
	Text         string           `json:"text"`
	EntityRefs   []EntityRef      `json:"entity_refs"`
	RelationRefs []triples.Triple `json:"relation_refs"`
	ChunkType    ChunkType        `json:"chunk_type"`
	SourcePath   string           `json:"source_path"`
	ChunkIndex   int              `json:"chunk_index"`
	TotalChunks  int              `json:"total_chunks"`
}

// Options configures a Chunker
type Options struct {
	Counter     TokenCounter
	TokenBudget int
	Logger      *zap.Logger
}

// Chunker splits meetings into units
type Chunker struct {
	counter TokenCounter
	budget  int
	logger  *zap.Logger
}

// New creates a Chunker; the approximate counter and default budget fill unset options
func New(opts Options) *Chunker {
	c := &Chunker{
		counter: opts.Counter,
		budget:  opts.TokenBudget,
		logger:  logger.OrDefault(opts.Logger, "chunker"),
	}
	if c.counter == nil {
		c.counter = ApproxCounter{}
	}
	if c.budget <= 0 {
		c.budget = DefaultTokenBudget
	}
	return c
}

// unit is a content unit before splitting
type unit struct {
	anchor string
	kind   ChunkType
	path   string
	text   string
}

// Chunk builds the units of one meeting. ts are the triples of the meeting's
// entities; each unit carries the ones touching its anchor entity.
func (c *Chunker) Chunk(v *entity.MeetingView, ts []triples.Triple) []ChunkUnit {
	mentions := newMentionIndex(v)

	var out []ChunkUnit
	for _, u := range c.units(v) {
		refs := mentions.find(u.text)
		var rels []triples.Triple
		for _, t := range ts {
			if t.Touches(u.anchor) {
				rels = append(rels, t)
			}
		}

		fragments := c.split(u)
		for i, text := range fragments {
			out = append(out, ChunkUnit{
				ID:           fmt.Sprintf("%s:%s:%d", u.anchor, u.kind, i),
				MeetingID:    v.Meeting.ID,
				Text:         text,
				EntityRefs:   refs,
				RelationRefs: rels,
				ChunkType:    u.kind,
				SourcePath:   u.path,
				ChunkIndex:   i,
				TotalChunks:  len(fragments),
			})
		}
	}
	return out
}

func (c *Chunker) units(v *entity.MeetingView) []unit {
	m := v.Meeting
	var out []unit

	var summary []string
	if m.Purpose != "" {
		summary = append(summary, ensureTerminal("Purpose: "+m.Purpose))
	}
	if m.Summary != "" {
		summary = append(summary, ensureTerminal(m.Summary))
	}
	for _, a := range v.AgendaItems {
		if a.Narrative != "" {
			summary = append(summary, ensureTerminal(a.Narrative))
		}
		for _, p := range a.DiscussionPoints {
			if strings.TrimSpace(p) != "" {
				summary = append(summary, ensureTerminal(p))
			}
		}
	}
	if len(summary) > 0 {
		out = append(out, unit{anchor: m.ID, kind: ChunkSummary, path: "meetingInfo.summary", text: strings.Join(summary, " ")})
	}

	agendaIndex := make(map[string]int, len(v.AgendaItems))
	for i, a := range v.AgendaItems {
		agendaIndex[a.ID] = i
	}

	for _, ai := range v.ActionItems {
		parts := []string{ensureTerminal("Action item: " + ai.Text)}
		if p, ok := v.Person(ai.AssigneeID); ok {
			parts = append(parts, "Assigned to "+p.DisplayName+".")
		}
		if ai.DueDate != "" {
			parts = append(parts, "Due "+ai.DueDate+".")
		}
		if ai.Status != "" {
			parts = append(parts, "Status: "+ai.Status+".")
		}
		out = append(out, unit{
			anchor: ai.ID,
			kind:   ChunkActionItem,
			path:   fmt.Sprintf("agendaItems[%d].actionItems[%d]", agendaIndex[ai.AgendaItemID], ai.Position),
			text:   strings.Join(parts, " "),
		})
	}

	for _, d := range v.Decisions {
		parts := []string{ensureTerminal("Decision: " + d.Decision)}
		if d.Rationale != "" {
			parts = append(parts, ensureTerminal("Rationale: "+d.Rationale))
		}
		if d.Effect != "" {
			parts = append(parts, "Effect: "+d.Effect+".")
		}
		out = append(out, unit{
			anchor: d.ID,
			kind:   ChunkDecision,
			path:   fmt.Sprintf("agendaItems[%d].decisionItems[%d]", agendaIndex[d.AgendaItemID], d.Position),
			text:   strings.Join(parts, " "),
		})
	}

	if len(v.Participants) > 0 {
		names := make([]string, 0, len(v.Participants))
		for _, p := range v.Participants {
			name := p.Person.DisplayName
			if p.Role != entity.RoleAttendee {
				name += " (" + p.Role + ")"
			}
			names = append(names, name)
		}
		text := fmt.Sprintf("Attendees of the %s meeting on %s: %s.", v.Workgroup.Name, m.Date, strings.Join(names, ", "))
		out = append(out, unit{anchor: m.ID, kind: ChunkAttendance, path: "meetingInfo.peoplePresent", text: text})
	}

	for _, d := range v.Documents {
		text := "Document: " + d.Title
		if d.Link != "" {
			text += " (" + d.Link + ")"
		}
		out = append(out, unit{
			anchor: d.ID,
			kind:   ChunkDocument,
			path:   fmt.Sprintf("meetingInfo.workingDocs[%d]", d.Position),
			text:   ensureTerminal(text),
		})
	}
	return out
}

// split packs whole sentences into fragments within the budget
func (c *Chunker) split(u unit) []string {
	if c.counter.CountTokens(u.text) <= c.budget {
		return []string{u.text}
	}

	var fragments, current []string
	flush := func() {
		if len(current) > 0 {
			fragments = append(fragments, strings.Join(current, " "))
			current = nil
		}
	}
	for _, s := range SplitSentences(u.text) {
		if c.counter.CountTokens(s) > c.budget {
			flush()
			c.logger.Warn("Sentence exceeds token budget, kept whole",
				zap.String("anchor", u.anchor),
				zap.String("chunk_type", string(u.kind)),
				zap.Int("tokens", c.counter.CountTokens(s)),
				zap.Int("budget", c.budget),
			)
			fragments = append(fragments, s)
			continue
		}
		next := append(append([]string(nil), current...), s)
		if c.counter.CountTokens(strings.Join(next, " ")) > c.budget {
			flush()
			next = []string{s}
		}
		current = next
	}
	flush()
	return fragments
}

// mentionIndex finds canonical entities named in text, matching any name or alias
// case-insensitively on word boundaries
type mentionIndex struct {
	entries []mention
}

type mention struct {
	ref      EntityRef
	patterns []*regexp.Regexp
}

func newMentionIndex(v *entity.MeetingView) *mentionIndex {
	ix := &mentionIndex{}
	if v.Workgroup.Name != "" {
		ix.add(EntityRef{Type: string(entity.TypeWorkgroup), ID: v.Workgroup.ID, Name: v.Workgroup.Name}, []string{v.Workgroup.Name})
	}

	ids := make([]string, 0, len(v.People))
	for id := range v.People {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := v.People[id]
		ix.add(EntityRef{Type: string(entity.TypePerson), ID: p.ID, Name: p.DisplayName}, p.Names())
	}
	return ix
}

func (ix *mentionIndex) add(ref EntityRef, names []string) {
	m := mention{ref: ref}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m.patterns = append(m.patterns, regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])`+regexp.QuoteMeta(name)+`($|[^\p{L}\p{N}_])`))
	}
	if len(m.patterns) > 0 {
		ix.entries = append(ix.entries, m)
	}
}

func (ix *mentionIndex) find(text string) []EntityRef {
	var out []EntityRef
	for _, m := range ix.entries {
		for _, re := range m.patterns {
			if re.MatchString(text) {
				out = append(out, m.ref)
				break
			}
		}
	}
	return out
}
