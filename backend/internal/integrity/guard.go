// Package integrity enforces foreign keys and participant rules on writes and
// plans cascade deletes over the fixed dependency graph.
package integrity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/store"
	apperrors "meeting-graph/backend/pkg/errors"
	"meeting-graph/backend/pkg/logger"
)

// DeleteHook observes a committed cascade delete
type DeleteHook func(ctx context.Context, plan *Plan)

// Guard wraps an EntityStore and rejects writes that would break referential integrity.
// Writes through one guard are serialized: a foreign key check and the commit it
// guards cannot interleave with a cascade delete.
type Guard struct {
	store  store.EntityStore
	logger *zap.Logger

	mu sync.Mutex

	hooksMu  sync.RWMutex
	onDelete []DeleteHook
}

// NewGuard creates a guard over s; a nil logger falls back to the global one
func NewGuard(s store.EntityStore, log *zap.Logger) *Guard {
	return &Guard{
		store:  s,
		logger: logger.OrDefault(log, "integrity"),
	}
}

// Store returns the guarded store
func (g *Guard) Store() store.EntityStore {
	return g.store
}

// OnDelete registers h to run after every committed cascade delete.
// Hooks run after the write lock is released and may write through the guard.
func (g *Guard) OnDelete(h DeleteHook) {
	g.hooksMu.Lock()
	defer g.hooksMu.Unlock()
	g.onDelete = append(g.onDelete, h)
}

// CreateOptions tunes CreateMeeting
type CreateOptions struct {
	// Legacy meetings come from migration and may lack participants
	Legacy bool
}

// ValidateForeignKeys reports every missing required field and every reference
// whose target does not exist. The error is reserved for storage failures.
func (g *Guard) ValidateForeignKeys(ctx context.Context, rec entity.Record) ([]apperrors.Violation, error) {
	return g.validate(ctx, rec, nil, nil)
}

// validate is ValidateForeignKeys over a pending commit: refs in pending count as
// present and refs in deleted count as absent
func (g *Guard) validate(ctx context.Context, rec entity.Record, pending, deleted map[entity.Ref]bool) ([]apperrors.Violation, error) {
	violations := rec.Validate()
	for _, ref := range rec.References() {
		if pending[ref.Target] {
			continue
		}
		ok := false
		if !deleted[ref.Target] {
			var err error
			if ok, err = g.store.Exists(ctx, ref.Target.Type, ref.Target.ID); err != nil {
				return nil, fmt.Errorf("check %s: %w", ref.Target, err)
			}
		}
		if !ok {
			violations = append(violations, apperrors.Violation{
				EntityType: string(rec.EntityType()),
				EntityID:   rec.EntityID(),
				Field:      ref.Field,
				Target:     ref.Target.String(),
				Reason:     "referenced record does not exist",
			})
		}
	}
	return violations, nil
}

// Put validates rec and stores it; violations come back as an ErrValidation
func (g *Guard) Put(ctx context.Context, rec entity.Record) error {
	return g.PutAll(ctx, rec)
}

// PutAll validates and stores several records in one commit. Records may reference
// each other; a violation in any of them rejects the whole set.
func (g *Guard) PutAll(ctx context.Context, recs ...entity.Record) error {
	return g.Apply(ctx, store.Changeset{Puts: recs})
}

// Apply validates the puts of cs against the store as it will be after the commit
// and commits cs. Nothing is written when any put has a violation.
func (g *Guard) Apply(ctx context.Context, cs store.Changeset) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending := make(map[entity.Ref]bool, len(cs.Puts))
	for _, rec := range cs.Puts {
		pending[entity.RefOf(rec)] = true
	}
	deleted := make(map[entity.Ref]bool, len(cs.Deletes))
	for _, ref := range cs.Deletes {
		if !pending[ref] {
			deleted[ref] = true
		}
	}

	var violations []apperrors.Violation
	for _, rec := range cs.Puts {
		v, err := g.validate(ctx, rec, pending, deleted)
		if err != nil {
			return err
		}
		violations = append(violations, v...)
	}
	if len(violations) > 0 {
		err := apperrors.NewValidation(violations)
		g.logger.Warn("Write rejected",
			zap.Int("records", len(cs.Puts)),
			zap.Int("violations", len(violations)),
			zap.Error(err),
		)
		return err
	}
	return g.store.Commit(ctx, cs)
}

// CreateMeeting stores a new meeting together with its participant rows.
// A new meeting needs at least one participant; a legacy meeting without any is
// stored with the needs-participants flag instead.
func (g *Guard) CreateMeeting(ctx context.Context, m *entity.Meeting, participants []entity.MeetingPerson, opts CreateOptions) error {
	for _, p := range participants {
		if p.MeetingID != m.ID {
			return apperrors.NewValidation([]apperrors.Violation{{
				EntityType: string(entity.TypeMeetingPerson),
				EntityID:   p.ID,
				Field:      "meeting_id",
				Target:     m.ID,
				Reason:     "participant row belongs to another meeting",
			}})
		}
	}

	if len(participants) == 0 {
		if !opts.Legacy {
			err := apperrors.NewValidation([]apperrors.Violation{{
				EntityType: string(entity.TypeMeeting),
				EntityID:   m.ID,
				Field:      "participants",
				Reason:     "a new meeting needs at least one participant",
			}})
			g.logger.Warn("Meeting rejected", zap.String("meeting_id", m.ID), zap.Error(err))
			return err
		}
		m.Flags = entity.AddFlag(m.Flags, entity.FlagNeedsParticipants)
		g.logger.Info("Legacy meeting stored without participants",
			zap.String("meeting_id", m.ID),
			zap.String("flag", entity.FlagNeedsParticipants),
		)
	}

	recs := make([]entity.Record, 0, 1+len(participants))
	recs = append(recs, m)
	for i := range participants {
		recs = append(recs, &participants[i])
	}
	return g.PutAll(ctx, recs...)
}

// Delete removes the record and its full cascade set as one commit, then runs
// the delete hooks
func (g *Guard) Delete(ctx context.Context, t entity.Type, id string) (*Plan, error) {
	plan, err := g.delete(ctx, t, id)
	if err != nil {
		return nil, err
	}

	g.hooksMu.RLock()
	hooks := append([]DeleteHook(nil), g.onDelete...)
	g.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, plan)
	}
	return plan, nil
}

func (g *Guard) delete(ctx context.Context, t entity.Type, id string) (*Plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	plan, err := g.ComputeCascadeSet(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if err := g.store.Delete(ctx, plan.Victims, plan.Updates); err != nil {
		return nil, err
	}
	g.logger.Info("Cascade delete committed",
		zap.String("root", entity.Ref{Type: t, ID: id}.String()),
		zap.Int("victims", len(plan.Victims)),
		zap.Int("updates", len(plan.Updates)),
	)
	return plan, nil
}
