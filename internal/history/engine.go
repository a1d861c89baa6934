// Package history rebuilds the change log of a registry entity from its
// stored revisions.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rpattn/wellhistory/internal/collector"
	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/lookuploader"
	"github.com/rpattn/wellhistory/internal/repository"
	"github.com/rpattn/wellhistory/internal/schema"
)

// Engine builds history feeds for every registered entity kind.
type Engine struct {
	registry  *schema.Registry
	store     repository.RecordStore
	collector *collector.Collector
	wait      time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookupWait sets how long code lookups are batched for.
func WithLookupWait(wait time.Duration) Option {
	return func(e *Engine) {
		e.wait = wait
	}
}

// NewEngine creates an engine reading from store.
func NewEngine(registry *schema.Registry, store repository.RecordStore, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		store:     store,
		collector: collector.New(store),
		wait:      lookuploader.DefaultWait,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sources holds everything read for one build. Each reader owns one slot,
// so the emission order never depends on which read finishes first.
type sources struct {
	header       domain.EntityHeader
	primary      []domain.Snapshot
	children     [][]domain.Snapshot
	correlations []domain.CorrelationChange
	related      [][]domain.RelatedRecord
}

// Build returns the history of ref, newest entry first. Entries sharing a
// timestamp keep the order they were emitted in: primary revisions, then
// child batches, correlations and related records in schema order.
func (e *Engine) Build(ctx context.Context, ref domain.EntityRef) (entries []domain.HistoryEntry, err error) {
	start := time.Now()
	kind := string(ref.Kind)
	defer func() {
		buildDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		buildTotal.WithLabelValues(kind, buildResult(err)).Inc()
		if err == nil {
			entriesEmitted.WithLabelValues(kind).Add(float64(len(entries)))
		}
	}()

	s, err := e.registry.Lookup(ref.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ref.ID) == "" {
		return nil, fmt.Errorf("%s without id: %w", ref.Kind, domain.ErrEntityNotFound)
	}

	logger := logging.From(ctx).With("kind", kind, "id", ref.ID)
	ctx = logging.With(ctx, logger)

	src, err := e.collect(ctx, s, ref)
	if err != nil {
		return nil, err
	}

	loader := lookuploader.FromContext(ctx)
	if loader == nil {
		loader = lookuploader.New(e.store, e.wait)
	}
	if err := loader.Prefetch(ctx, src.codeRefs(s)); err != nil {
		return nil, err
	}
	normalizer := NewNormalizer(loader)

	switch s.Mode {
	case schema.ModeStackedSubmissions:
		entries, err = stackedEntries(ctx, normalizer, s, ref, src.header, src.primary)
	default:
		entries, err = fullObjectEntries(ctx, normalizer, s, s.Label(ref.ID), src.primary)
	}
	if err != nil {
		return nil, err
	}

	for i, child := range s.Children {
		entries = append(entries, groupedEntries(child, ref.ID, src.children[i])...)
	}
	if s.Correlations {
		entries = append(entries, correlationEntries(s.Label(ref.ID), src.correlations)...)
	}
	for i, related := range s.Related {
		for _, record := range src.related[i] {
			recordEntries, err := relatedEntries(ctx, normalizer, related.Schema, record)
			if err != nil {
				return nil, err
			}
			entries = append(entries, recordEntries...)
		}
	}

	domain.SortNewestFirst(entries)
	logger.Debugf("built %d history entries", len(entries))
	return entries, nil
}

func buildResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEntityNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnknownEntityKind):
		return "unknown_kind"
	default:
		return "error"
	}
}

func (e *Engine) collect(ctx context.Context, s *schema.Schema, ref domain.EntityRef) (*sources, error) {
	src := &sources{
		children: make([][]domain.Snapshot, len(s.Children)),
		related:  make([][]domain.RelatedRecord, len(s.Related)),
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.Mode == schema.ModeStackedSubmissions {
		g.Go(func() error {
			header, err := e.collector.Header(gctx, ref)
			src.header = header
			return err
		})
		g.Go(func() error {
			submissions, err := e.collector.Submissions(gctx, ref.ID)
			src.primary = submissions
			return err
		})
	} else {
		g.Go(func() error {
			revisions, err := e.collector.FullObject(gctx, ref)
			src.primary = revisions
			return err
		})
	}

	for i, child := range s.Children {
		g.Go(func() error {
			groups, err := e.collector.Grouped(gctx, child, ref.ID)
			src.children[i] = groups
			return err
		})
	}

	if s.Correlations {
		g.Go(func() error {
			changes, err := e.collector.Correlations(gctx, ref.ID)
			src.correlations = changes
			return err
		})
	}

	for i, related := range s.Related {
		g.Go(func() error {
			records, err := e.collector.Related(gctx, ref, related.Relation)
			src.related[i] = records
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}

func (src *sources) codeRefs(s *schema.Schema) []lookuploader.CodeRef {
	refs := codeRefs(s.Trackable(), src.primary)
	for i, related := range s.Related {
		for _, record := range src.related[i] {
			refs = append(refs, codeRefs(related.Schema.Trackable(), record.Snapshots)...)
		}
	}
	return refs
}

// fullObjectEntries emits the creation entry for the first revision and one
// entry per later revision that changed a trackable field.
func fullObjectEntries(ctx context.Context, n *Normalizer, s *schema.Schema, label string, snapshots []domain.Snapshot) ([]domain.HistoryEntry, error) {
	if len(snapshots) == 0 {
		return nil, nil
	}

	first := snapshots[0]
	entries := []domain.HistoryEntry{domain.NewCreationEntry(label, first.CreateUser, first.CreateDate)}

	composite := make(map[string]any)
	for i, snapshot := range snapshots {
		diff, prev, err := diffSnapshot(ctx, n, s.Trackable(), snapshot, composite)
		if err != nil {
			return nil, err
		}
		if i == 0 || len(diff) == 0 {
			continue
		}
		entries = append(entries, domain.HistoryEntry{
			Timestamp:      snapshot.Timestamp(),
			Editor:         snapshot.Editor(),
			EntityLabel:    label,
			ChangedFields:  diff,
			PreviousFields: prev,
		})
	}
	return entries, nil
}

// relatedEntries walks the revisions of a record owned by the entity. The
// first revision reports every initial value against nil.
func relatedEntries(ctx context.Context, n *Normalizer, s *schema.Schema, record domain.RelatedRecord) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	composite := make(map[string]any)
	for _, snapshot := range record.Snapshots {
		diff, prev, err := diffSnapshot(ctx, n, s.Trackable(), snapshot, composite)
		if err != nil {
			return nil, err
		}
		if len(diff) == 0 {
			continue
		}
		entries = append(entries, domain.HistoryEntry{
			Timestamp:      snapshot.Timestamp(),
			Editor:         snapshot.Editor(),
			EntityLabel:    record.Label,
			ChangedFields:  diff,
			PreviousFields: prev,
		})
	}
	return entries, nil
}

// diffSnapshot compares every rule's normalized value against the composite
// and folds the snapshot into it.
func diffSnapshot(ctx context.Context, n *Normalizer, rules []domain.FieldRule, snapshot domain.Snapshot, composite map[string]any) (map[string]any, map[string]any, error) {
	diff := make(map[string]any)
	prev := make(map[string]any)
	for _, rule := range rules {
		raw, _ := snapshot.Value(rule.Field)
		current, err := n.Normalize(ctx, snapshot, rule, raw)
		if err != nil {
			return nil, nil, err
		}

		name := rule.ReportedName()
		previous := composite[name]
		composite[name] = current
		if domain.ValuesEqual(current, previous) {
			continue
		}
		diff[name] = current
		prev[name] = previous
	}
	return diff, prev, nil
}

// stackedEntries replays the activity submissions of a well. Reports other
// than staff edits only ever add information: their nil values are ignored
// and their interval series are merged into the previous ones.
func stackedEntries(ctx context.Context, n *Normalizer, s *schema.Schema, ref domain.EntityRef, header domain.EntityHeader, submissions []domain.Snapshot) ([]domain.HistoryEntry, error) {
	label := s.Label(ref.ID)
	entries := []domain.HistoryEntry{domain.NewCreationEntry(label, header.CreateUser, header.CreateDate)}

	composite := make(map[string]any)
	for _, submission := range submissions {
		staffEdit := strings.EqualFold(submission.ActivityType, schema.ActivityStaffEdit)

		entry := domain.HistoryEntry{
			Timestamp:      submission.CreateDate,
			Editor:         submission.CreateUser,
			EntityLabel:    label,
			ChangedFields:  make(map[string]any),
			PreviousFields: make(map[string]any),
			Actions:        make(map[string]domain.Action),
		}

		for _, rule := range submissionRules(s, submission) {
			raw, _ := submission.Value(rule.Field)
			current, err := n.Normalize(ctx, submission, rule, raw)
			if err != nil {
				return nil, err
			}
			if current == nil && !staffEdit {
				continue
			}

			name := rule.ReportedName()
			previous := composite[name]
			if rule.Kind == domain.RuleCollection && rule.Series && !staffEdit {
				if before, ok := previous.([]any); ok {
					if after, ok := current.([]any); ok {
						current = mergeSeries(before, after)
					}
				}
			}

			composite[name] = current
			if domain.ValuesEqual(current, previous) {
				continue
			}
			entry.ChangedFields[name] = current
			entry.PreviousFields[name] = previous
			entry.Actions[name] = actionFor(current, previous)
		}

		if entry.HasChanges() {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// submissionRules returns the rules of the fields a submission speaks for.
// Submissions recording the fields they provided only speak for those.
func submissionRules(s *schema.Schema, submission domain.Snapshot) []domain.FieldRule {
	if submission.FieldsProvided == nil {
		return s.Trackable()
	}

	rules := make([]domain.FieldRule, 0, len(submission.FieldsProvided))
	for _, field := range submission.FieldsProvided {
		if rule, ok := s.Rule(field); ok && !rule.IsExcluded() {
			rules = append(rules, rule)
		}
	}
	return rules
}

// groupedEntries emits one entry per child batch; each batch is a change.
func groupedEntries(child schema.ChildCollection, parentID string, groups []domain.Snapshot) []domain.HistoryEntry {
	label := child.Label(parentID)
	// A batch reported as Added has nothing before it; otherwise the first
	// batch is compared with an empty list.
	var previous any = []any{}
	if child.Actions {
		previous = nil
	}

	entries := make([]domain.HistoryEntry, 0, len(groups))
	for i, group := range groups {
		raw, _ := group.Value(child.Key)
		current := canonical(raw)

		entry := domain.HistoryEntry{
			Timestamp:      group.Timestamp(),
			Editor:         group.Editor(),
			EntityLabel:    label,
			ChangedFields:  map[string]any{child.Key: current},
			PreviousFields: map[string]any{child.Key: previous},
		}
		if child.Actions {
			action := domain.ActionUpdated
			if i == 0 {
				action = domain.ActionAdded
			}
			entry.Actions = map[string]domain.Action{child.Key: action}
		}
		entries = append(entries, entry)
		previous = current
	}
	return entries
}

// correlationEntries reports bulk moves of a well between aquifers.
func correlationEntries(label string, changes []domain.CorrelationChange) []domain.HistoryEntry {
	key := schema.CorrelationKey()
	entries := make([]domain.HistoryEntry, 0, len(changes))
	for _, change := range changes {
		var from any
		action := domain.ActionAdded
		if change.FromAquifer != nil {
			from = canonical(*change.FromAquifer)
			action = domain.ActionUpdated
		}
		entries = append(entries, domain.HistoryEntry{
			Timestamp:      change.CreateDate,
			Editor:         change.CreateUser,
			EntityLabel:    label,
			ChangedFields:  map[string]any{key: canonical(change.ToAquifer)},
			PreviousFields: map[string]any{key: from},
			Actions:        map[string]domain.Action{key: action},
		})
	}
	return entries
}

// actionFor classifies a change by which side is empty.
func actionFor(current, previous any) domain.Action {
	switch {
	case isEmpty(current):
		return domain.ActionRemoved
	case isEmpty(previous):
		return domain.ActionAdded
	default:
		return domain.ActionUpdated
	}
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	default:
		return false
	}
}

// mergeSeries drops the previous intervals that overlap a new one, then
// orders the union by (start, end).
func mergeSeries(previous, next []any) []any {
	merged := make([]any, 0, len(previous)+len(next))
	for _, item := range previous {
		if !overlapsAny(item, next) {
			merged = append(merged, item)
		}
	}
	merged = append(merged, next...)

	sort.SliceStable(merged, func(i, j int) bool {
		as, ae := interval(merged[i])
		bs, be := interval(merged[j])
		if as != bs {
			return as < bs
		}
		return ae < be
	})
	return merged
}

func overlapsAny(item any, series []any) bool {
	start, end := interval(item)
	for _, other := range series {
		otherStart, otherEnd := interval(other)
		if overlap(start, end, otherStart, otherEnd) {
			return true
		}
	}
	return false
}

// overlap reports whether interval a crosses into b or shares an endpoint
// with it.
func overlap(aStart, aEnd, bStart, bEnd float64) bool {
	intersect := (aStart > bStart && aStart < bEnd) || (aEnd > bStart && aEnd < bEnd)
	return intersect || aStart == bStart || aEnd == bEnd
}

func interval(item any) (float64, float64) {
	row, ok := asMap(item)
	if !ok {
		return 0, 0
	}
	start, _ := toFloat(row["start"])
	end, _ := toFloat(row["end"])
	return start, end
}
