// Package normalize resolves raw person names to one canonical Person record.
//
// A raw name is cleaned by ordered rules, folded to a comparison key and scored
// with Jaro-Winkler against the names and aliases of every canonical person that
// shares a trigram with it. A single clear winner at or above the threshold is a
// match; several winners within epsilon of each other produce a tentative person
// flagged for disambiguation, which Reconcile later resolves from meeting context.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/store"
	apperrors "meeting-graph/backend/pkg/errors"
	"meeting-graph/backend/pkg/logger"
)

const (
	DefaultThreshold = 0.95
	DefaultEpsilon   = 0.01
)

// ErrEmptyName is returned for a raw name the cleaning rules reduce to nothing
var ErrEmptyName = errors.New("name is empty after normalization")

// Options tunes a Normalizer; zero values take the defaults
type Options struct {
	Threshold float64
	Epsilon   float64
	Rules     *RuleSet
	Logger    *zap.Logger
}

// Resolution is the outcome of normalizing one raw name
type Resolution struct {
	Raw           string  `json:"raw"`
	CanonicalID   string  `json:"canonical_id"`
	CanonicalName string  `json:"canonical_name"`
	Confidence    float64 `json:"confidence"`
	Created       bool    `json:"created"`
	Tentative     bool    `json:"tentative"`
}

// Normalizer owns the in-memory registry of canonical people.
// Calls are serialized; one batch is normalized on one goroutine.
type Normalizer struct {
	guard     *integrity.Guard
	store     store.EntityStore
	logger    *zap.Logger
	rules     *RuleSet
	threshold float64
	epsilon   float64

	mu        sync.Mutex
	people    map[string]*entity.Person
	keyIDs    map[string][]string // comparison key -> canonical person ids
	tentative map[string]string   // comparison key -> tentative person id
	grams     *trigramIndex
	labels    map[string]string // raw variant -> canonical id
}

// New builds a Normalizer and loads every stored person into its registry
func New(ctx context.Context, g *integrity.Guard, opts Options) (*Normalizer, error) {
	n := &Normalizer{
		guard:     g,
		store:     g.Store(),
		logger:    logger.OrDefault(opts.Logger, "normalize"),
		rules:     opts.Rules,
		threshold: opts.Threshold,
		epsilon:   opts.Epsilon,
		people:    make(map[string]*entity.Person),
		keyIDs:    make(map[string][]string),
		tentative: make(map[string]string),
		grams:     newTrigramIndex(),
		labels:    make(map[string]string),
	}
	if n.rules == nil {
		n.rules = DefaultRules()
	}
	if n.threshold <= 0 {
		n.threshold = DefaultThreshold
	}
	if n.epsilon <= 0 {
		n.epsilon = DefaultEpsilon
	}

	recs, err := n.store.List(ctx, entity.TypePerson)
	if err != nil {
		return nil, fmt.Errorf("failed to load people: %w", err)
	}
	for _, rec := range recs {
		n.register(rec.(*entity.Person))
	}
	g.OnDelete(n.forget)
	n.logger.Debug("Normalizer ready",
		zap.Int("people", len(n.people)),
		zap.Strings("rules", n.rules.Names()),
	)
	return n, nil
}

// register adds a person and all of its names to the lookup structures
func (n *Normalizer) register(p *entity.Person) {
	n.people[p.ID] = p
	if p.Tentative() {
		n.tentative[Key(n.rules.Clean(p.DisplayName))] = p.ID
		return
	}
	for _, name := range p.Names() {
		n.indexName(p.ID, name)
	}
}

func (n *Normalizer) indexName(id, name string) {
	key := Key(n.rules.Clean(name))
	if key == "" {
		return
	}
	for _, existing := range n.keyIDs[key] {
		if existing == id {
			return
		}
	}
	if len(n.keyIDs[key]) == 0 {
		n.grams.add(key)
	}
	n.keyIDs[key] = append(n.keyIDs[key], id)
}

func (n *Normalizer) unregister(p *entity.Person) {
	delete(n.people, p.ID)
	if p.Tentative() {
		delete(n.tentative, Key(n.rules.Clean(p.DisplayName)))
		return
	}
	for _, name := range p.Names() {
		key := Key(n.rules.Clean(name))
		ids := removeID(n.keyIDs[key], p.ID)
		if len(ids) == 0 {
			delete(n.keyIDs, key)
			n.grams.remove(key)
			continue
		}
		n.keyIDs[key] = ids
	}
}

// forget drops deleted people from the registry and refreshes people the
// cascade rewrote
func (n *Normalizer) forget(_ context.Context, plan *integrity.Plan) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ref := range plan.Victims {
		if ref.Type != entity.TypePerson {
			continue
		}
		if p, ok := n.people[ref.ID]; ok {
			n.drop(p)
			n.logger.Debug("Forgot deleted person", zap.String("id", ref.ID))
		}
	}
	for _, rec := range plan.Updates {
		p, ok := rec.(*entity.Person)
		if !ok {
			continue
		}
		if old, ok := n.people[p.ID]; ok {
			n.unregister(old)
		}
		updated := *p
		n.register(&updated)
	}
}

// drop unregisters p and the raw labels that resolved to it
func (n *Normalizer) drop(p *entity.Person) {
	n.unregister(p)
	for raw, id := range n.labels {
		if id == p.ID {
			delete(n.labels, raw)
		}
	}
}

// live drops registered people that are no longer stored. A delete that bypassed
// the guard is caught here.
func (n *Normalizer) live(ctx context.Context, ids ...string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		ok, err := n.store.Exists(ctx, entity.TypePerson, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			if p, registered := n.people[id]; registered {
				n.drop(p)
			}
			n.logger.Warn("Registered person missing from store, dropped", zap.String("id", id))
			continue
		}
		out[id] = true
	}
	return out, nil
}

type scored struct {
	id    string
	score float64
}

// score ranks canonical people whose best name similarity to key reaches the threshold
func (n *Normalizer) score(key string) []scored {
	best := make(map[string]float64)
	for _, cand := range n.grams.candidates(key, 1) {
		s := jaroWinkler(key, cand)
		if s < n.threshold {
			continue
		}
		for _, id := range n.keyIDs[cand] {
			if s > best[id] {
				best[id] = s
			}
		}
	}
	out := make([]scored, 0, len(best))
	for id, s := range best {
		out = append(out, scored{id: id, score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}

// Normalize resolves raw to a canonical person, creating one when nothing matches.
// Resolving a name that is already canonical changes nothing.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (Resolution, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cleaned := n.rules.Clean(raw)
	if cleaned == "" {
		return Resolution{}, fmt.Errorf("%q: %w", raw, ErrEmptyName)
	}
	key := Key(cleaned)

	matches := n.score(key)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.id)
	}
	alive, err := n.live(ctx, ids...)
	if err != nil {
		return Resolution{}, err
	}
	if len(alive) < len(matches) {
		matches = n.score(key)
	}

	switch {
	case len(matches) == 0:
		return n.create(ctx, raw, cleaned, key)
	case len(matches) == 1 || matches[0].score-matches[1].score > n.epsilon:
		return n.match(ctx, raw, matches[0])
	default:
		return n.deferAmbiguous(ctx, raw, cleaned, key, matches)
	}
}

func (n *Normalizer) create(ctx context.Context, raw, cleaned, key string) (Resolution, error) {
	p := &entity.Person{
		ID:          entity.NewID(entity.TypePerson, key),
		DisplayName: cleaned,
	}
	if raw != cleaned {
		p.Aliases = []string{raw}
	}
	if err := n.guard.Put(ctx, p); err != nil {
		return Resolution{}, err
	}
	n.register(p)
	n.labels[raw] = p.ID

	n.logger.Debug("Created canonical person", zap.String("id", p.ID), zap.String("name", cleaned))
	return Resolution{Raw: raw, CanonicalID: p.ID, CanonicalName: cleaned, Confidence: 1, Created: true}, nil
}

func (n *Normalizer) match(ctx context.Context, raw string, best scored) (Resolution, error) {
	if err := n.addAlias(ctx, best.id, raw); err != nil {
		return Resolution{}, err
	}
	p := n.people[best.id]
	n.labels[raw] = p.ID
	return Resolution{Raw: raw, CanonicalID: p.ID, CanonicalName: p.DisplayName, Confidence: best.score}, nil
}

// deferAmbiguous records an ambiguous name as a tentative person carrying the tied candidates
func (n *Normalizer) deferAmbiguous(ctx context.Context, raw, cleaned, key string, matches []scored) (Resolution, error) {
	var ids []string
	for _, m := range matches {
		if matches[0].score-m.score <= n.epsilon {
			ids = append(ids, m.id)
		}
	}
	sort.Strings(ids)

	ambiguity := apperrors.NewNormalizationAmbiguity(raw, ids)
	n.logger.Warn("Ambiguous person name deferred",
		zap.String("raw", raw),
		zap.Strings("candidate_ids", ids),
		zap.Error(ambiguity),
	)

	res := Resolution{Raw: raw, CanonicalName: cleaned, Confidence: matches[0].score, Tentative: true}
	if id, ok := n.tentative[key]; ok {
		// a stale tentative person is dropped from n.tentative by live
		if _, err := n.live(ctx, id); err != nil {
			return Resolution{}, err
		}
	}
	if id, ok := n.tentative[key]; ok {
		if err := n.addAlias(ctx, id, raw); err != nil {
			return Resolution{}, err
		}
		n.labels[raw] = id
		res.CanonicalID = id
		return res, nil
	}

	p := &entity.Person{
		ID:           entity.NewID(entity.TypePerson, "tentative", key),
		DisplayName:  cleaned,
		Flags:        []string{entity.FlagNeedsDisambiguation},
		CandidateIDs: ids,
	}
	if raw != cleaned {
		p.Aliases = []string{raw}
	}
	if err := n.guard.Put(ctx, p); err != nil {
		return Resolution{}, err
	}
	n.register(p)
	n.labels[raw] = p.ID

	res.CanonicalID = p.ID
	res.Created = true
	return res, nil
}

// Merge records variant as an alias of an existing person; repeating it is a no-op
func (n *Normalizer) Merge(ctx context.Context, existingID, variant string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.people[existingID]; !ok {
		p, err := store.GetAs[*entity.Person](ctx, n.store, entity.TypePerson, existingID)
		if err != nil {
			return err
		}
		n.register(p)
	}
	if err := n.addAlias(ctx, existingID, variant); err != nil {
		return err
	}
	n.labels[variant] = existingID
	return nil
}

// addAlias stores variant on the person unless it is already one of its names
func (n *Normalizer) addAlias(ctx context.Context, id, variant string) error {
	p := n.people[id]
	for _, name := range p.Names() {
		if name == variant {
			return nil
		}
	}

	updated := *p
	updated.Aliases = append(append([]string(nil), p.Aliases...), variant)
	if err := n.guard.Put(ctx, &updated); err != nil {
		return fmt.Errorf("add alias %q to %s: %w", variant, id, err)
	}
	n.people[id] = &updated
	if !updated.Tentative() {
		n.indexName(id, variant)
	}
	n.logger.Debug("Recorded alias", zap.String("id", id), zap.String("alias", variant))
	return nil
}

// Person returns a copy of a registered person
func (n *Normalizer) Person(id string) (entity.Person, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.people[id]
	if !ok {
		return entity.Person{}, false
	}
	return *p, true
}

// ClusterLabels maps every raw variant seen so far to its canonical person id
func (n *Normalizer) ClusterLabels() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.labels))
	for raw, id := range n.labels {
		out[raw] = id
	}
	return out
}

// MergeReport summarizes a MergeCandidates call
type MergeReport struct {
	Resolved []Resolution   `json:"resolved"`
	Skipped  map[string]int `json:"skipped"`
}

// MergeCandidates normalizes the person candidates of an external extraction step.
// Candidates of other kinds are counted and left alone.
func (n *Normalizer) MergeCandidates(ctx context.Context, candidates []entity.Candidate) (*MergeReport, error) {
	report := &MergeReport{Skipped: make(map[string]int)}
	for _, c := range candidates {
		kind := entity.ClassifyCandidate(c)
		if kind != entity.KindPerson {
			report.Skipped[kind.String()]++
			continue
		}
		res, err := n.Normalize(ctx, c.Text)
		if err != nil {
			n.logger.Warn("Skipped person candidate",
				zap.String("text", c.Text),
				zap.String("source_field", c.SourceField),
				zap.Error(err),
			)
			report.Skipped[kind.String()]++
			continue
		}
		report.Resolved = append(report.Resolved, res)
	}
	return report, nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
