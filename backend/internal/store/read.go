package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
)

// Get loads one record; a missing record is an ErrNotFound
func (s *FileStore) Get(_ context.Context, t entity.Type, id string) (entity.Record, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("get %s: %w", t, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(t, id)
}

func (s *FileStore) get(t entity.Type, id string) (entity.Record, error) {
	if t == entity.TypeMeetingPerson {
		row, ok := s.relations.get(id)
		if !ok {
			return nil, apperrors.NewNotFound(string(t), id)
		}
		return &row, nil
	}

	data, ok, err := readOptional(s.fs, s.recordPath(t, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", t, id, err)
	}
	if !ok {
		return nil, apperrors.NewNotFound(string(t), id)
	}
	return entity.Decode(t, data)
}

// Exists reports whether a record is stored
func (s *FileStore) Exists(_ context.Context, t entity.Type, id string) (bool, error) {
	if validateID(id) != nil {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists(t, id)
}

func (s *FileStore) exists(t entity.Type, id string) (bool, error) {
	if t == entity.TypeMeetingPerson {
		_, ok := s.relations.get(id)
		return ok, nil
	}
	_, ok, err := readOptional(s.fs, s.recordPath(t, id))
	return ok, err
}

// List returns every record of a type ordered by id
func (s *FileStore) List(_ context.Context, t entity.Type) ([]entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t == entity.TypeMeetingPerson {
		rows := make([]entity.MeetingPerson, len(s.relations.rows))
		copy(rows, s.relations.rows)
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		out := make([]entity.Record, 0, len(rows))
		for i := range rows {
			out = append(out, &rows[i])
		}
		return out, nil
	}

	ids, err := s.listIDs(t)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.get(t, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *FileStore) listIDs(t entity.Type) ([]string, error) {
	dir := filepath.Join(s.root, string(t))
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// IndexLookup returns the ids filed under key in the named index, in insertion order.
// Ids whose record no longer exists are dropped from the index and logged.
func (s *FileStore) IndexLookup(ctx context.Context, index, key string) ([]string, error) {
	target, ok := entity.IndexTargets[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	s.mu.RLock()
	ids := s.indexes[index][key]
	var live, stale []string
	for _, id := range ids {
		ok, err := s.exists(target, id)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if ok {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	if len(stale) > 0 {
		s.heal(ctx, index, key, target, stale)
	}
	return live, nil
}

// heal removes stale ids from one index key and persists the result
func (s *FileStore) heal(_ context.Context, index, key string, target entity.Type, stale []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.begin()
	for _, id := range stale {
		// recheck under the write lock; a concurrent put may have restored it
		if ok, err := s.exists(target, id); err != nil || ok {
			continue
		}
		t.delta.remove(index, key, id)
		s.logger.Warn("Dropped stale index entry",
			zap.String("index", index),
			zap.String("key", key),
			zap.String("id", id),
			zap.Error(apperrors.NewIndexDesync(index, key, id)),
		)
	}
	if len(t.delta.changed) == 0 {
		return
	}
	if err := t.apply("index heal"); err != nil {
		s.logger.Error("Failed to persist healed index",
			zap.String("index", index),
			zap.Error(err),
		)
	}
}

// MeetingPeople returns the junction rows of one meeting in insertion order
func (s *FileStore) MeetingPeople(_ context.Context, meetingID string) ([]entity.MeetingPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relations.forMeeting(meetingID), nil
}

// PersonMeetings returns the junction rows of one person in insertion order
func (s *FileStore) PersonMeetings(_ context.Context, personID string) ([]entity.MeetingPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relations.forPerson(personID), nil
}

// GetAs fetches a record and asserts its concrete type
func GetAs[T entity.Record](ctx context.Context, s EntityStore, t entity.Type, id string) (T, error) {
	var zero T
	rec, err := s.Get(ctx, t, id)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("record %s/%s has unexpected type %T", t, id, rec)
	}
	return typed, nil
}

// GetAllAs fetches the records behind ids, skipping any that disappeared meanwhile
func GetAllAs[T entity.Record](ctx context.Context, s EntityStore, t entity.Type, ids []string) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, err := GetAs[T](ctx, s, t, id)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
