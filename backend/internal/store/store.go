// Package store persists the meeting archive entity graph on the local file system.
//
// Layout under the data directory:
//
//	entities/{type}/{id}.json            one file per record
//	entities/_index/{index_name}.json    secondary indexes, key -> ordered ids
//	entities/_relations/meeting_person.json  meeting/person junction rows
//
// Every file is replaced with write-temp-then-rename so readers see the old or the new
// content, never a partial file. Multi-file changes go through Commit, which keeps an
// in-memory undo log and restores every touched file if any step fails.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/pkg/logger"
)

const (
	entitiesDir   = "entities"
	indexDir      = "_index"
	relationsDir  = "_relations"
	relationsFile = "meeting_person.json"
	tmpSuffix     = ".tmp"
)

// EntityStore is the persistence contract the rest of the archive depends on.
// FileStore is the flat-file implementation; another backing medium only has to
// satisfy this interface.
type EntityStore interface {
	Put(ctx context.Context, rec entity.Record) error
	Get(ctx context.Context, t entity.Type, id string) (entity.Record, error)
	Exists(ctx context.Context, t entity.Type, id string) (bool, error)
	List(ctx context.Context, t entity.Type) ([]entity.Record, error)

	// Commit applies deletes (in the given order) then puts as one all-or-nothing change
	Commit(ctx context.Context, cs Changeset) error
	// Delete removes a precomputed victim set and applies side-effect updates atomically
	Delete(ctx context.Context, victims []entity.Ref, updates []entity.Record) error

	IndexLookup(ctx context.Context, index, key string) ([]string, error)
	MeetingPeople(ctx context.Context, meetingID string) ([]entity.MeetingPerson, error)
	PersonMeetings(ctx context.Context, personID string) ([]entity.MeetingPerson, error)

	CheckConsistency(ctx context.Context) (*ConsistencyReport, error)
}

// Changeset is a staged multi-record change
type Changeset struct {
	Deletes []entity.Ref
	Puts    []entity.Record
}

// Empty reports whether the changeset does nothing
func (cs Changeset) Empty() bool {
	return len(cs.Deletes) == 0 && len(cs.Puts) == 0
}

// FileStore is a directory-per-type EntityStore.
// One handle owns one directory tree; writes are serialized by mu.
type FileStore struct {
	root      string
	fs        fileSystem
	logger    *zap.Logger
	mu        sync.RWMutex
	indexes   indexSet
	relations *relationSet
}

// Option configures a FileStore
type Option func(*FileStore)

// WithLogger sets the logger used for warnings and commit failures
func WithLogger(l *zap.Logger) Option {
	return func(s *FileStore) {
		s.logger = l
	}
}

// withFileSystem swaps the file system, used by tests to inject I/O faults
func withFileSystem(fsys fileSystem) Option {
	return func(s *FileStore) {
		s.fs = fsys
	}
}

// Open creates or opens a store rooted at dataDir.
// Leftover temp files from an interrupted write are removed and the indexes
// and junction rows are loaded into memory.
func Open(dataDir string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		root: filepath.Join(dataDir, entitiesDir),
		fs:   osFS{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger, "store")

	dirs := []string{filepath.Join(s.root, indexDir), filepath.Join(s.root, relationsDir)}
	for _, t := range entity.Types {
		if t == entity.TypeMeetingPerson {
			continue
		}
		dirs = append(dirs, filepath.Join(s.root, string(t)))
	}
	for _, dir := range dirs {
		if err := s.fs.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := s.sweepTemp(dir); err != nil {
			return nil, err
		}
	}

	indexes, err := s.loadIndexes()
	if err != nil {
		return nil, err
	}
	relations, err := s.loadRelations()
	if err != nil {
		return nil, err
	}
	s.indexes = indexes
	s.relations = relations

	s.logger.Debug("Entity store opened",
		zap.String("root", s.root),
		zap.Int("meeting_person_rows", relations.len()),
	)
	return s, nil
}

// Root returns the entities directory
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) sweepTemp(dir string) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale temp file %s: %w", path, err)
		}
		s.logger.Warn("Removed temp file left by an interrupted write", zap.String("path", path))
	}
	return nil
}

func (s *FileStore) recordPath(t entity.Type, id string) string {
	return filepath.Join(s.root, string(t), id+".json")
}

func (s *FileStore) indexPath(name string) string {
	return filepath.Join(s.root, indexDir, name+".json")
}

func (s *FileStore) relationsPath() string {
	return filepath.Join(s.root, relationsDir, relationsFile)
}

// validateID rejects ids that cannot be used as a file name inside the type directory
func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("invalid id (empty)")
	case id == "." || id == "..":
		return fmt.Errorf("invalid id %q", id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("invalid id %q (contains path separator)", id)
	case strings.HasSuffix(id, tmpSuffix):
		return fmt.Errorf("invalid id %q (reserved suffix)", id)
	}
	return nil
}

// marshalRecord renders a record the way it is stored on disk
func marshalRecord(rec entity.Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("record %s/%s is not serializable: %w", rec.EntityType(), rec.EntityID(), err)
	}
	return append(data, '\n'), nil
}
