package store

import (
	"encoding/json"
	"fmt"

	"meeting-graph/backend/internal/entity"
)

// relationSet holds the meeting/person junction rows in insertion order
type relationSet struct {
	rows      []entity.MeetingPerson
	byID      map[string]int
	byMeeting map[string][]int
	byPerson  map[string][]int
}

func newRelationSet(rows []entity.MeetingPerson) *relationSet {
	rs := &relationSet{
		rows:      rows,
		byID:      make(map[string]int, len(rows)),
		byMeeting: make(map[string][]int),
		byPerson:  make(map[string][]int),
	}
	for i, row := range rows {
		rs.byID[row.ID] = i
		rs.byMeeting[row.MeetingID] = append(rs.byMeeting[row.MeetingID], i)
		rs.byPerson[row.PersonID] = append(rs.byPerson[row.PersonID], i)
	}
	return rs
}

func (rs *relationSet) len() int {
	return len(rs.rows)
}

func (rs *relationSet) get(id string) (entity.MeetingPerson, bool) {
	i, ok := rs.byID[id]
	if !ok {
		return entity.MeetingPerson{}, false
	}
	return rs.rows[i], true
}

func (rs *relationSet) forMeeting(meetingID string) []entity.MeetingPerson {
	return rs.pick(rs.byMeeting[meetingID])
}

func (rs *relationSet) forPerson(personID string) []entity.MeetingPerson {
	return rs.pick(rs.byPerson[personID])
}

func (rs *relationSet) pick(idx []int) []entity.MeetingPerson {
	out := make([]entity.MeetingPerson, 0, len(idx))
	for _, i := range idx {
		out = append(out, rs.rows[i])
	}
	return out
}

// upsert returns a new set with row replacing the row of the same id, or appended
func (rs *relationSet) upsert(row entity.MeetingPerson) *relationSet {
	rows := make([]entity.MeetingPerson, len(rs.rows), len(rs.rows)+1)
	copy(rows, rs.rows)
	if i, ok := rs.byID[row.ID]; ok {
		rows[i] = row
	} else {
		rows = append(rows, row)
	}
	return newRelationSet(rows)
}

// without returns a new set lacking the given row ids
func (rs *relationSet) without(ids map[string]bool) *relationSet {
	rows := make([]entity.MeetingPerson, 0, len(rs.rows))
	for _, row := range rs.rows {
		if !ids[row.ID] {
			rows = append(rows, row)
		}
	}
	return newRelationSet(rows)
}

func (rs *relationSet) encode() ([]byte, error) {
	rows := rs.rows
	if rows == nil {
		rows = []entity.MeetingPerson{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *FileStore) loadRelations() (*relationSet, error) {
	data, ok, err := readOptional(s.fs, s.relationsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read meeting_person relations: %w", err)
	}
	var rows []entity.MeetingPerson
	if ok {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse meeting_person relations: %w", err)
		}
	}
	return newRelationSet(rows), nil
}
