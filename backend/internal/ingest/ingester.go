// Package ingest loads published meeting records into the entity graph and
// assembles the downstream hand-off bundle.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meeting-graph/backend/internal/chunker"
	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/normalize"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/pkg/logger"
)

// DefaultWorkers bounds parallel parsing when Options.Workers is not set
const DefaultWorkers = 4

// Status is the result of ingesting one record
type Status string

const (
	StatusIngested  Status = "ingested"
	StatusSkipped   Status = "skipped" // meeting already stored
	StatusMalformed Status = "malformed"
	StatusFailed    Status = "failed"
)

// Outcome reports what happened to one record of a batch
type Outcome struct {
	Index       int                    `json:"index"`
	MeetingID   string                 `json:"meeting_id,omitempty"`
	Status      Status                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Resolutions []normalize.Resolution `json:"resolutions,omitempty"`
}

// BatchResult lists per-record outcomes in input order
type BatchResult struct {
	Outcomes        []Outcome                  `json:"outcomes"`
	Reconciliations []normalize.Reconciliation `json:"reconciliations,omitempty"`
	ClusterLabels   map[string]string          `json:"cluster_labels"`
}

// Count returns how many records ended with status s
func (r *BatchResult) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Options configures an Ingester
type Options struct {
	Workers int
	Chunker *chunker.Chunker
	Logger  *zap.Logger
}

// Ingester writes meeting records through the integrity guard.
// It is not safe for concurrent use; one batch runs at a time.
type Ingester struct {
	guard      *integrity.Guard
	store      store.EntityStore
	normalizer *normalize.Normalizer
	chunker    *chunker.Chunker
	workers    int
	logger     *zap.Logger
}

// New creates an Ingester
func New(g *integrity.Guard, n *normalize.Normalizer, opts Options) *Ingester {
	i := &Ingester{
		guard:      g,
		store:      g.Store(),
		normalizer: n,
		chunker:    opts.Chunker,
		workers:    opts.Workers,
		logger:     logger.OrDefault(opts.Logger, "ingest"),
	}
	if i.workers <= 0 {
		i.workers = DefaultWorkers
	}
	if i.chunker == nil {
		i.chunker = chunker.New(chunker.Options{Logger: opts.Logger})
	}
	return i
}

// SplitBatch splits a JSON array of meeting records into raw records
func SplitBatch(data []byte) ([][]byte, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("batch is not a JSON array: %w", err)
	}
	out := make([][]byte, len(raws))
	for i, r := range raws {
		out[i] = r
	}
	return out, nil
}

// IngestBatch parses records in parallel and writes them one at a time in input
// order. Malformed records are skipped and reported; a record that fails to write
// leaves nothing behind. Tentative people are reconciled once the batch is written.
func (i *Ingester) IngestBatch(ctx context.Context, raws [][]byte) (*BatchResult, error) {
	parsed := make([]*MeetingRecord, len(raws))
	parseErrs := make([]error, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for idx, data := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[idx], parseErrs[idx] = ParseRecord(idx, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Outcomes: make([]Outcome, 0, len(raws))}
	for idx := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if parseErrs[idx] != nil {
			i.logger.Warn("Skipped malformed record", zap.Int("index", idx), zap.Error(parseErrs[idx]))
			result.Outcomes = append(result.Outcomes, Outcome{
				Index:  idx,
				Status: StatusMalformed,
				Error:  parseErrs[idx].Error(),
			})
			continue
		}
		outcome, err := i.IngestRecord(ctx, idx, parsed[idx])
		if err != nil {
			outcome.Error = err.Error()
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	recs, err := i.normalizer.Reconcile(ctx)
	if err != nil {
		return result, fmt.Errorf("reconcile tentative people: %w", err)
	}
	result.Reconciliations = recs
	result.ClusterLabels = i.normalizer.ClusterLabels()

	i.logger.Info("Batch ingested",
		zap.Int("records", len(raws)),
		zap.Int("ingested", result.Count(StatusIngested)),
		zap.Int("skipped", result.Count(StatusSkipped)),
		zap.Int("malformed", result.Count(StatusMalformed)),
		zap.Int("failed", result.Count(StatusFailed)),
	)
	return result, nil
}

// IngestRecord stores one parsed record: its people, its workgroup if new, the
// meeting with its participants and then every child. A meeting that is already
// stored is skipped.
func (i *Ingester) IngestRecord(ctx context.Context, index int, rec *MeetingRecord) (Outcome, error) {
	meetingID := rec.MeetingID()
	outcome := Outcome{Index: index, MeetingID: meetingID}

	exists, err := i.store.Exists(ctx, entity.TypeMeeting, meetingID)
	if err != nil {
		outcome.Status = StatusFailed
		return outcome, err
	}
	if exists {
		// same workgroup, date and type; a different meeting with that key is dropped here
		i.logger.Warn("Meeting already stored, record skipped",
			zap.Int("index", index),
			zap.String("meeting_id", meetingID),
			zap.String("workgroup_id", rec.WorkgroupID),
			zap.String("date", rec.MeetingInfo.Date),
			zap.String("type", rec.Type),
		)
		outcome.Status = StatusSkipped
		return outcome, nil
	}

	if err := i.ensureWorkgroup(ctx, rec); err != nil {
		outcome.Status = StatusFailed
		return outcome, err
	}

	r := &resolver{n: i.normalizer, logger: i.logger, ids: make(map[string]string)}
	m, participants, err := i.meeting(ctx, rec, r)
	if err != nil {
		outcome.Status = StatusFailed
		return outcome, err
	}
	children, err := i.children(ctx, rec, meetingID, r)
	outcome.Resolutions = r.resolutions
	if err != nil {
		outcome.Status = StatusFailed
		return outcome, err
	}

	if err := i.guard.CreateMeeting(ctx, m, participants, integrity.CreateOptions{Legacy: rec.Legacy}); err != nil {
		i.logger.Warn("Meeting not stored", zap.Int("index", index), zap.String("meeting_id", meetingID), zap.Error(err))
		outcome.Status = StatusFailed
		return outcome, err
	}

	if len(children) > 0 {
		if err := i.guard.PutAll(ctx, children...); err != nil {
			i.logger.Error("Failed to store meeting children, removing partial meeting",
				zap.Int("index", index),
				zap.String("meeting_id", meetingID),
				zap.Error(err),
			)
			if _, derr := i.guard.Delete(ctx, entity.TypeMeeting, meetingID); derr != nil {
				err = errors.Join(err, fmt.Errorf("remove partial meeting: %w", derr))
			}
			outcome.Status = StatusFailed
			return outcome, err
		}
	}

	i.logger.Info("Meeting ingested",
		zap.Int("index", index),
		zap.String("meeting_id", meetingID),
		zap.String("workgroup_id", rec.WorkgroupID),
		zap.String("date", rec.MeetingInfo.Date),
		zap.Int("participants", len(participants)),
		zap.Int("children", len(children)),
	)
	outcome.Status = StatusIngested
	return outcome, nil
}

func (i *Ingester) ensureWorkgroup(ctx context.Context, rec *MeetingRecord) error {
	ok, err := i.store.Exists(ctx, entity.TypeWorkgroup, rec.WorkgroupID)
	if err != nil || ok {
		return err
	}
	i.logger.Info("Creating workgroup", zap.String("id", rec.WorkgroupID), zap.String("name", rec.Workgroup))
	return i.guard.Put(ctx, &entity.Workgroup{ID: rec.WorkgroupID, Name: rec.Workgroup})
}

// roleStrength orders participant roles; a person keeps the strongest one
var roleStrength = map[string]int{
	entity.RoleAttendee:   1,
	entity.RoleDocumenter: 2,
	entity.RoleHost:       3,
}

func (i *Ingester) meeting(ctx context.Context, rec *MeetingRecord, r *resolver) (*entity.Meeting, []entity.MeetingPerson, error) {
	info := rec.MeetingInfo
	m := &entity.Meeting{
		ID:              rec.MeetingID(),
		WorkgroupID:     rec.WorkgroupID,
		Date:            info.Date,
		Type:            rec.Type,
		Purpose:         strings.TrimSpace(info.Purpose),
		Summary:         strings.TrimSpace(info.Summary),
		NoSummaryGiven:  rec.NoSummaryGiven,
		CanceledSummary: rec.CanceledSummary,
	}

	var order []string
	roles := make(map[string]string)
	add := func(raw, role string) (string, error) {
		id, err := r.resolve(ctx, raw)
		if err != nil || id == "" {
			return "", err
		}
		cur, seen := roles[id]
		if !seen {
			order = append(order, id)
		}
		if roleStrength[role] > roleStrength[cur] {
			roles[id] = role
		}
		return id, nil
	}

	var err error
	if m.HostID, err = add(info.Host, entity.RoleHost); err != nil {
		return nil, nil, err
	}
	if m.DocumenterID, err = add(info.Documenter, entity.RoleDocumenter); err != nil {
		return nil, nil, err
	}
	for _, name := range info.PeoplePresent {
		if _, err := add(name, entity.RoleAttendee); err != nil {
			return nil, nil, err
		}
	}

	rows := make([]entity.MeetingPerson, 0, len(order))
	for _, id := range order {
		rows = append(rows, entity.MeetingPerson{
			ID:        entity.MeetingPersonID(m.ID, id),
			MeetingID: m.ID,
			PersonID:  id,
			Role:      roles[id],
		})
	}
	return m, rows, nil
}

func (i *Ingester) children(ctx context.Context, rec *MeetingRecord, meetingID string, r *resolver) ([]entity.Record, error) {
	var out []entity.Record

	for pos, doc := range rec.MeetingInfo.WorkingDocs {
		if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Link) == "" {
			continue
		}
		out = append(out, &entity.Document{
			ID:        entity.NewID(entity.TypeDocument, meetingID, strconv.Itoa(pos)),
			MeetingID: meetingID,
			Title:     strings.TrimSpace(doc.Title),
			Link:      strings.TrimSpace(doc.Link),
			Position:  pos,
		})
	}

	for pos, item := range rec.AgendaItems {
		agendaID := entity.NewID(entity.TypeAgendaItem, meetingID, strconv.Itoa(pos))
		out = append(out, &entity.AgendaItem{
			ID:               agendaID,
			MeetingID:        meetingID,
			Status:           item.Status,
			Narrative:        strings.TrimSpace(item.Narrative),
			DiscussionPoints: item.DiscussionPoints,
			Position:         pos,
		})

		for apos, a := range item.ActionItems {
			if strings.TrimSpace(a.Text) == "" {
				i.logger.Debug("Skipped empty action item", zap.String("agenda_item_id", agendaID), zap.Int("position", apos))
				continue
			}
			assignee, err := r.resolve(ctx, a.Assignee)
			if err != nil {
				return nil, err
			}
			out = append(out, &entity.ActionItem{
				ID:           entity.NewID(entity.TypeActionItem, agendaID, strconv.Itoa(apos)),
				AgendaItemID: agendaID,
				Text:         strings.TrimSpace(a.Text),
				AssigneeID:   assignee,
				DueDate:      strings.TrimSpace(a.DueDate),
				Status:       a.Status,
				Position:     apos,
			})
		}

		for dpos, d := range item.DecisionItems {
			if strings.TrimSpace(d.Decision) == "" {
				i.logger.Debug("Skipped empty decision", zap.String("agenda_item_id", agendaID), zap.Int("position", dpos))
				continue
			}
			out = append(out, &entity.DecisionItem{
				ID:           entity.NewID(entity.TypeDecisionItem, agendaID, strconv.Itoa(dpos)),
				AgendaItemID: agendaID,
				Decision:     strings.TrimSpace(d.Decision),
				Rationale:    strings.TrimSpace(d.Rationale),
				Effect:       strings.TrimSpace(d.Effect),
				Position:     dpos,
			})
		}
	}

	tags := rec.Tags
	if len(tags.TopicsCovered) > 0 || len(tags.Emotions) > 0 {
		out = append(out, &entity.Tag{
			ID:        entity.NewID(entity.TypeTag, meetingID),
			MeetingID: meetingID,
			Topics:    tags.TopicsCovered,
			Emotions:  tags.Emotions,
		})
	}
	return out, nil
}

// resolver normalizes the raw names of one record, once per distinct name
type resolver struct {
	n           *normalize.Normalizer
	logger      *zap.Logger
	ids         map[string]string
	resolutions []normalize.Resolution
}

// resolve returns the canonical id for raw, or "" for a blank or unusable name
func (r *resolver) resolve(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if id, ok := r.ids[raw]; ok {
		return id, nil
	}
	res, err := r.n.Normalize(ctx, raw)
	if errors.Is(err, normalize.ErrEmptyName) {
		r.logger.Warn("Ignored unusable person name", zap.String("raw", raw))
		r.ids[raw] = ""
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", raw, err)
	}
	r.ids[raw] = res.CanonicalID
	r.resolutions = append(r.resolutions, res)
	return res.CanonicalID, nil
}
