// Package schema declares, per registry entity type, which fields are
// tracked in history and how their stored values are normalised.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/schema/validator"
)

// Mode selects how the primary revisions of an entity are diffed.
type Mode string

const (
	// ModeFullObject diffs whole-record revisions.
	ModeFullObject Mode = "full_object"
	// ModeStackedSubmissions diffs activity reports stacked onto one well.
	ModeStackedSubmissions Mode = "stacked_submissions"
)

// ChildCollection describes a batch-written child table whose rows are
// grouped by creation time.
type ChildCollection struct {
	Table        string
	ParentColumn string
	// Key is the synthetic field the grouped rows are reported under.
	Key     string
	Columns []string
	// LabelFormat receives the parent id.
	LabelFormat string
	// Actions records Added on the first batch and Updated afterwards.
	Actions bool
}

// Label returns the entry name for the given parent.
func (c ChildCollection) Label(parentID string) string {
	return formatLabel(c.LabelFormat, parentID)
}

// RelatedCollection describes versioned records owned by the entity, each
// with its own revision history.
type RelatedCollection struct {
	Relation string
	Schema   *Schema
}

// Schema is the static history description of one entity type.
type Schema struct {
	Kind        domain.EntityKind
	LabelFormat string
	Mode        Mode
	Fields      []domain.FieldRule
	Children    []ChildCollection
	Related     []RelatedCollection
	// Correlations enables the bulk aquifer correlation feed.
	Correlations bool

	index map[string]int
}

// Label returns the entry name for the given entity id.
func (s *Schema) Label(id string) string {
	return formatLabel(s.LabelFormat, id)
}

// formatLabel fills the id into format. A format without a verb is a fixed
// name and is returned as is.
func formatLabel(format, id string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return fmt.Sprintf(format, id)
}

// Rule returns the rule declared for a field.
func (s *Schema) Rule(field string) (domain.FieldRule, bool) {
	idx, ok := s.index[field]
	if !ok {
		return domain.FieldRule{}, false
	}
	return s.Fields[idx], true
}

// IsExcluded reports whether a field is excluded from every diff. Fields the
// schema does not declare are excluded too.
func (s *Schema) IsExcluded(field string) bool {
	rule, ok := s.Rule(field)
	return !ok || rule.IsExcluded()
}

// Excluded returns the sorted exclusion set.
func (s *Schema) Excluded() []string {
	out := make([]string, 0)
	for _, rule := range s.Fields {
		if rule.IsExcluded() {
			out = append(out, rule.Field)
		}
	}
	sort.Strings(out)
	return out
}

// Trackable returns the rules of every non-excluded field in declaration
// order.
func (s *Schema) Trackable() []domain.FieldRule {
	out := make([]domain.FieldRule, 0, len(s.Fields))
	for _, rule := range s.Fields {
		if !rule.IsExcluded() {
			out = append(out, rule)
		}
	}
	return out
}

// ReportedNames returns the set of keys entries of this schema may carry.
func (s *Schema) ReportedNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, rule := range s.Trackable() {
		names[rule.ReportedName()] = struct{}{}
	}
	for _, child := range s.Children {
		names[child.Key] = struct{}{}
	}
	if s.Correlations {
		names[correlationKey] = struct{}{}
	}
	return names
}

func (s *Schema) build() error {
	if err := validator.ValidateRules(s.Fields); err != nil {
		return fmt.Errorf("schema %s: %w", s.Kind, err)
	}
	s.index = make(map[string]int, len(s.Fields))
	for i, rule := range s.Fields {
		s.index[rule.Field] = i
	}
	for _, child := range s.Children {
		if child.Key == "" || child.Table == "" || child.ParentColumn == "" || len(child.Columns) == 0 {
			return fmt.Errorf("schema %s: child collection %q is incomplete", s.Kind, child.Table)
		}
	}
	for _, related := range s.Related {
		if related.Schema == nil {
			return fmt.Errorf("schema %s: related collection %s has no schema", s.Kind, related.Relation)
		}
		if err := related.Schema.build(); err != nil {
			return err
		}
	}
	return nil
}

const correlationKey = "aquifer"

// CorrelationKey is the field bulk correlation entries are reported under.
func CorrelationKey() string {
	return correlationKey
}

// Registry owns the schema table for every entity kind.
type Registry struct {
	schemas map[domain.EntityKind]*Schema
}

// NewRegistry validates and indexes the given schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	registry := &Registry{schemas: make(map[domain.EntityKind]*Schema, len(schemas))}
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if _, dup := registry.schemas[s.Kind]; dup {
			return nil, fmt.Errorf("schema %s registered twice", s.Kind)
		}
		if err := s.build(); err != nil {
			return nil, err
		}
		registry.schemas[s.Kind] = s
	}
	return registry, nil
}

// DefaultRegistry returns the registry of built-in groundwater schemas.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Aquifer(), Well(), Organization(), Person())
}

// Lookup returns the schema registered for kind.
func (r *Registry) Lookup(kind domain.EntityKind) (*Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, domain.ErrUnknownEntityKind)
	}
	return s, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []domain.EntityKind {
	kinds := make([]domain.EntityKind, 0, len(r.schemas))
	for kind := range r.schemas {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
