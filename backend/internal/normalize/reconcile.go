package normalize

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
)

// Reconciliation is the outcome of one tentative person
type Reconciliation struct {
	TentativeID string         `json:"tentative_id"`
	CanonicalID string         `json:"canonical_id,omitempty"`
	Scores      map[string]int `json:"scores"`
	Merged      bool           `json:"merged"`
}

// context of one person: who they met with and in which workgroups
type personContext struct {
	coAttendees map[string]bool
	workgroups  map[string]bool
}

// Reconcile resolves tentative people from meeting co-occurrence. Each candidate
// scores one point per co-attendee it shares with the tentative person and two per
// shared workgroup; a unique best score above zero merges the tentative person
// into that candidate. Anything else stays deferred.
func (n *Normalizer) Reconcile(ctx context.Context) ([]Reconciliation, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var ids []string
	for id, p := range n.people {
		if p.Tentative() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Reconciliation, 0, len(ids))
	for _, id := range ids {
		rec, err := n.reconcileOne(ctx, n.people[id])
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (n *Normalizer) reconcileOne(ctx context.Context, tentative *entity.Person) (Reconciliation, error) {
	result := Reconciliation{TentativeID: tentative.ID, Scores: make(map[string]int)}

	exclude := map[string]bool{tentative.ID: true}
	for _, c := range tentative.CandidateIDs {
		exclude[c] = true
	}
	own, err := n.contextOf(ctx, tentative.ID, exclude)
	if err != nil {
		return result, err
	}

	best, bestScore, tied := "", 0, false
	for _, cand := range tentative.CandidateIDs {
		if _, ok := n.people[cand]; !ok {
			continue
		}
		theirs, err := n.contextOf(ctx, cand, exclude)
		if err != nil {
			return result, err
		}
		score := overlap(own.coAttendees, theirs.coAttendees) + 2*overlap(own.workgroups, theirs.workgroups)
		result.Scores[cand] = score
		switch {
		case score > bestScore:
			best, bestScore, tied = cand, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		n.logger.Info("Tentative person left for review",
			zap.String("id", tentative.ID),
			zap.String("name", tentative.DisplayName),
			zap.Any("scores", result.Scores),
		)
		return result, nil
	}

	if err := n.absorb(ctx, tentative, best); err != nil {
		return result, err
	}
	result.CanonicalID = best
	result.Merged = true
	n.logger.Info("Tentative person merged",
		zap.String("id", tentative.ID),
		zap.String("into", best),
		zap.Int("score", bestScore),
	)
	return result, nil
}

func (n *Normalizer) contextOf(ctx context.Context, personID string, exclude map[string]bool) (*personContext, error) {
	pc := &personContext{coAttendees: make(map[string]bool), workgroups: make(map[string]bool)}

	rows, err := n.store.PersonMeetings(ctx, personID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		m, err := store.GetAs[*entity.Meeting](ctx, n.store, entity.TypeMeeting, row.MeetingID)
		if err != nil {
			return nil, fmt.Errorf("context of %s: %w", personID, err)
		}
		pc.workgroups[m.WorkgroupID] = true

		others, err := n.store.MeetingPeople(ctx, row.MeetingID)
		if err != nil {
			return nil, err
		}
		for _, o := range others {
			if o.PersonID != personID && !exclude[o.PersonID] {
				pc.coAttendees[o.PersonID] = true
			}
		}
	}
	return pc, nil
}

func overlap(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

// roleRank orders junction roles, strongest first
var roleRank = map[string]int{
	entity.RoleHost:       0,
	entity.RoleDocumenter: 1,
	entity.RoleAttendee:   2,
}

// absorb repoints everything that references the tentative person at the
// canonical one and deletes the tentative record, all in one commit
func (n *Normalizer) absorb(ctx context.Context, tentative *entity.Person, canonicalID string) error {
	canonical := *n.people[canonicalID]
	canonical.Aliases = append([]string(nil), canonical.Aliases...)
	for _, name := range tentative.Names() {
		if !containsName(canonical.Names(), name) {
			canonical.Aliases = append(canonical.Aliases, name)
		}
	}

	cs := store.Changeset{Puts: []entity.Record{&canonical}}

	rows, err := n.store.PersonMeetings(ctx, tentative.ID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cs.Deletes = append(cs.Deletes, entity.Ref{Type: entity.TypeMeetingPerson, ID: row.ID})

		merged := entity.MeetingPerson{
			ID:        entity.MeetingPersonID(row.MeetingID, canonicalID),
			MeetingID: row.MeetingID,
			PersonID:  canonicalID,
			Role:      row.Role,
		}
		existing, err := n.store.MeetingPeople(ctx, row.MeetingID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.PersonID == canonicalID && roleRank[e.Role] < roleRank[merged.Role] {
				merged.Role = e.Role
			}
		}
		cs.Puts = append(cs.Puts, &merged)

		m, err := store.GetAs[*entity.Meeting](ctx, n.store, entity.TypeMeeting, row.MeetingID)
		if err != nil {
			return err
		}
		if m.HostID == tentative.ID || m.DocumenterID == tentative.ID {
			if m.HostID == tentative.ID {
				m.HostID = canonicalID
			}
			if m.DocumenterID == tentative.ID {
				m.DocumenterID = canonicalID
			}
			cs.Puts = append(cs.Puts, m)
		}
	}

	actionIDs, err := n.store.IndexLookup(ctx, entity.IndexActionItemsByPerson, tentative.ID)
	if err != nil {
		return err
	}
	actions, err := store.GetAllAs[*entity.ActionItem](ctx, n.store, entity.TypeActionItem, actionIDs)
	if err != nil {
		return err
	}
	for _, ai := range actions {
		ai.AssigneeID = canonicalID
		cs.Puts = append(cs.Puts, ai)
	}

	cs.Deletes = append(cs.Deletes, entity.Ref{Type: entity.TypePerson, ID: tentative.ID})
	if err := n.guard.Apply(ctx, cs); err != nil {
		return fmt.Errorf("merge %s into %s: %w", tentative.ID, canonicalID, err)
	}

	n.unregister(tentative)
	n.unregister(n.people[canonicalID])
	n.register(&canonical)
	for raw, id := range n.labels {
		if id == tentative.ID {
			n.labels[raw] = canonicalID
		}
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, v := range names {
		if v == name {
			return true
		}
	}
	return false
}
