package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	apperrors "meeting-graph/backend/pkg/errors"
)

// fileOp is one staged file mutation; nil data means remove
type fileOp struct {
	path string
	data []byte
}

// undoEntry is the pre-commit state of a touched file
type undoEntry struct {
	path    string
	data    []byte
	existed bool
}

// tx stages a changeset entirely in memory, then applies it.
// Nothing is written until apply; on failure apply restores every file it touched
// from the undo log and the published indexes and relations are left as they were.
type tx struct {
	s         *FileStore
	ops       []fileOp
	delta     *indexDelta
	relations *relationSet
	relDirty  bool
	undo      []undoEntry
	saved     map[string]bool
}

func (s *FileStore) begin() *tx {
	return &tx{
		s:         s,
		delta:     newIndexDelta(s.indexes),
		relations: s.relations,
		saved:     make(map[string]bool),
	}
}

// Put validates that rec serializes and commits it with its index updates
func (s *FileStore) Put(ctx context.Context, rec entity.Record) error {
	return s.Commit(ctx, Changeset{Puts: []entity.Record{rec}})
}

// Delete removes the victims in the order given and writes the side-effect updates.
// Callers pass the victim set deepest-dependent first.
func (s *FileStore) Delete(ctx context.Context, victims []entity.Ref, updates []entity.Record) error {
	return s.Commit(ctx, Changeset{Deletes: victims, Puts: updates})
}

// Commit applies cs as a single all-or-nothing change
func (s *FileStore) Commit(_ context.Context, cs Changeset) error {
	if cs.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.begin()
	for _, ref := range cs.Deletes {
		if err := t.stageDelete(ref); err != nil {
			return err
		}
	}
	for _, rec := range cs.Puts {
		if err := t.stagePut(rec); err != nil {
			return err
		}
	}
	op := "put"
	if len(cs.Deletes) > 0 {
		op = "cascade delete"
	}
	return t.apply(op)
}

func (t *tx) stageDelete(ref entity.Ref) error {
	if err := validateID(ref.ID); err != nil {
		return fmt.Errorf("delete %s: %w", ref.Type, err)
	}

	if ref.Type == entity.TypeMeetingPerson {
		if _, ok := t.relations.get(ref.ID); !ok {
			return apperrors.NewNotFound(string(ref.Type), ref.ID)
		}
		t.relations = t.relations.without(map[string]bool{ref.ID: true})
		t.relDirty = true
		return nil
	}

	path := t.s.recordPath(ref.Type, ref.ID)
	data, ok, err := readOptional(t.s.fs, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if !ok {
		return apperrors.NewNotFound(string(ref.Type), ref.ID)
	}
	old, err := entity.Decode(ref.Type, data)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}

	t.delta.move(ref.ID, old.IndexKeys(), nil)
	t.ops = append(t.ops, fileOp{path: path})
	return nil
}

func (t *tx) stagePut(rec entity.Record) error {
	if err := validateID(rec.EntityID()); err != nil {
		return fmt.Errorf("put %s: %w", rec.EntityType(), err)
	}
	data, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	if mp, ok := rec.(*entity.MeetingPerson); ok {
		t.relations = t.relations.upsert(*mp)
		t.relDirty = true
		return nil
	}

	path := t.s.recordPath(rec.EntityType(), rec.EntityID())
	var prevKeys map[string]string
	if prev, ok, err := readOptional(t.s.fs, path); err != nil {
		return fmt.Errorf("put %s: %w", entity.RefOf(rec), err)
	} else if ok {
		old, err := entity.Decode(rec.EntityType(), prev)
		if err != nil {
			return fmt.Errorf("put %s: %w", entity.RefOf(rec), err)
		}
		prevKeys = old.IndexKeys()
	}

	t.delta.move(rec.EntityID(), prevKeys, rec.IndexKeys())
	t.ops = append(t.ops, fileOp{path: path, data: data})
	return nil
}

// remember records the current content of path the first time it is touched
func (t *tx) remember(path string) error {
	if t.saved[path] {
		return nil
	}
	data, ok, err := readOptional(t.s.fs, path)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, undoEntry{path: path, data: data, existed: ok})
	t.saved[path] = true
	return nil
}

func (t *tx) write(path string, data []byte) error {
	if err := t.remember(path); err != nil {
		return err
	}
	if data == nil {
		err := t.s.fs.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}
	return writeFileAtomic(t.s.fs, path, data)
}

// apply performs the staged writes; record files first, then index files,
// then the relations file. Published state changes only after the last write.
func (t *tx) apply(op string) error {
	for _, o := range t.ops {
		if err := t.write(o.path, o.data); err != nil {
			return t.rollback(op, err)
		}
	}

	for _, name := range t.delta.touched() {
		next := t.delta.apply()
		data, err := encodeIndex(next[name])
		if err != nil {
			return t.rollback(op, fmt.Errorf("encode index %s: %w", name, err))
		}
		if err := t.write(t.s.indexPath(name), data); err != nil {
			return t.rollback(op, err)
		}
	}

	if t.relDirty {
		data, err := t.relations.encode()
		if err != nil {
			return t.rollback(op, fmt.Errorf("encode relations: %w", err))
		}
		if err := t.write(t.s.relationsPath(), data); err != nil {
			return t.rollback(op, err)
		}
	}

	t.s.indexes = t.delta.apply()
	t.s.relations = t.relations
	return nil
}

// rollback restores every touched file, newest first
func (t *tx) rollback(op string, cause error) error {
	restored := true
	for i := len(t.undo) - 1; i >= 0; i-- {
		u := t.undo[i]
		var err error
		if u.existed {
			err = writeFileAtomic(t.s.fs, u.path, u.data)
		} else {
			err = t.s.fs.Remove(u.path)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		}
		if err != nil {
			restored = false
			t.s.logger.Error("Failed to restore file during rollback",
				zap.String("path", u.path),
				zap.Error(err),
			)
		}
	}

	t.s.logger.Error("Commit rolled back",
		zap.String("operation", op),
		zap.Int("files_touched", len(t.undo)),
		zap.Bool("restored", restored),
		zap.Error(cause),
	)
	return apperrors.NewCascadeFailure(op, restored, cause)
}
