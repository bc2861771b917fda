package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
	"meeting-graph/backend/pkg/logger"
)

// ConsistencyReport summarizes one consistency pass
type ConsistencyReport struct {
	Checked          int                         `json:"checked"`
	DroppedIndex     []*apperrors.ErrIndexDesync `json:"-"`
	DroppedRelations []entity.MeetingPerson      `json:"dropped_relations"`
}

// Clean reports whether the pass found nothing to repair
func (r *ConsistencyReport) Clean() bool {
	return len(r.DroppedIndex) == 0 && len(r.DroppedRelations) == 0
}

// CheckConsistency scans every index entry and junction row and drops those that
// point at a record that no longer exists. Repairs are committed as one change.
func (s *FileStore) CheckConsistency(_ context.Context) (*ConsistencyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &ConsistencyReport{}
	t := s.begin()

	for _, index := range sortedIndexNames() {
		target := entity.IndexTargets[index]
		for key, ids := range s.indexes[index] {
			for _, id := range ids {
				report.Checked++
				ok, err := s.exists(target, id)
				if err != nil {
					return nil, err
				}
				if ok {
					continue
				}
				t.delta.remove(index, key, id)
				desync := apperrors.NewIndexDesync(index, key, id)
				report.DroppedIndex = append(report.DroppedIndex, desync)
				s.logger.Warn("Dropped stale index entry",
					zap.String("index", index),
					zap.String("key", key),
					zap.String("id", id),
					zap.Error(desync),
				)
			}
		}
	}

	stale := make(map[string]bool)
	for _, row := range s.relations.rows {
		report.Checked++
		meetingOK, err := s.exists(entity.TypeMeeting, row.MeetingID)
		if err != nil {
			return nil, err
		}
		personOK, err := s.exists(entity.TypePerson, row.PersonID)
		if err != nil {
			return nil, err
		}
		if meetingOK && personOK {
			continue
		}
		stale[row.ID] = true
		report.DroppedRelations = append(report.DroppedRelations, row)
		s.logger.Warn("Dropped dangling meeting_person row",
			zap.String("id", row.ID),
			zap.String("meeting_id", row.MeetingID),
			zap.String("person_id", row.PersonID),
		)
	}
	if len(stale) > 0 {
		t.relations = t.relations.without(stale)
		t.relDirty = true
	}

	if report.Clean() {
		return report, nil
	}
	if err := t.apply("consistency repair"); err != nil {
		return nil, err
	}
	return report, nil
}

// Reindex rebuilds every index file from the stored records
func (s *FileStore) Reindex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rebuilt := make(indexSet, len(entity.IndexTargets))
	for name := range entity.IndexTargets {
		rebuilt[name] = make(map[string][]string)
	}
	for _, typ := range entity.Types {
		if typ == entity.TypeMeetingPerson {
			continue
		}
		ids, err := s.listIDs(typ)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := s.get(typ, id)
			if err != nil {
				return fmt.Errorf("reindex %s/%s: %w", typ, id, err)
			}
			for name, key := range rec.IndexKeys() {
				rebuilt[name][key] = append(rebuilt[name][key], id)
			}
		}
	}

	t := s.begin()
	for _, name := range sortedIndexNames() {
		data, err := encodeIndex(rebuilt[name])
		if err != nil {
			return err
		}
		if err := t.write(s.indexPath(name), data); err != nil {
			return t.rollback("reindex", err)
		}
	}
	s.indexes = rebuilt
	s.logger.Info("Rebuilt indexes", zap.Int("indexes", len(rebuilt)))
	return nil
}

// RunConsistencyChecks runs CheckConsistency every interval until ctx ends
func RunConsistencyChecks(ctx context.Context, s EntityStore, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	log = logger.OrDefault(log, "consistency")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.CheckConsistency(ctx)
			if err != nil {
				log.Error("Consistency check failed", zap.Error(err))
				continue
			}
			if !report.Clean() {
				log.Warn("Consistency check repaired the store",
					zap.Int("checked", report.Checked),
					zap.Int("dropped_index_entries", len(report.DroppedIndex)),
					zap.Int("dropped_relations", len(report.DroppedRelations)),
				)
			}
		}
	}
}

func sortedIndexNames() []string {
	names := make([]string, 0, len(entity.IndexTargets))
	for name := range entity.IndexTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
