package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/lookuploader"
	"github.com/rpattn/wellhistory/internal/repository"
)

// ErrExcludedField is returned when an excluded field reaches the normalizer.
var ErrExcludedField = errors.New("field is excluded from history")

// CodeResolver returns the attributes of a code table row.
type CodeResolver interface {
	Load(ctx context.Context, table, code string) (map[string]any, bool, error)
}

// Normalizer turns stored field values into comparable display values.
type Normalizer struct {
	codes CodeResolver
}

// NewNormalizer creates a normalizer resolving code lookups through codes.
func NewNormalizer(codes CodeResolver) *Normalizer {
	return &Normalizer{codes: codes}
}

// Normalize converts the raw value of one field of a snapshot. Unresolvable
// references and unreadable geometry degrade to the raw reference and nil
// respectively; only record store failures are returned as errors.
func (n *Normalizer) Normalize(ctx context.Context, snapshot domain.Snapshot, rule domain.FieldRule, raw any) (any, error) {
	if rule.IsExcluded() {
		return nil, fmt.Errorf("%s: %w", rule.Field, ErrExcludedField)
	}

	if rule.Kind == domain.RuleLegacyGeometry {
		return n.legacyGeometry(ctx, snapshot, rule, raw), nil
	}

	if raw == nil {
		return nil, nil
	}

	switch rule.Kind {
	case domain.RuleLookup, domain.RuleCompoundLookup:
		return n.lookup(ctx, snapshot, rule, raw)
	case domain.RuleGeometry:
		return n.geometry(ctx, rule, raw), nil
	case domain.RuleCollection:
		return collectionValue(raw, rule.Columns), nil
	case domain.RuleCodeList:
		return codeListValue(raw), nil
	default:
		return canonical(raw), nil
	}
}

func (n *Normalizer) lookup(ctx context.Context, snapshot domain.Snapshot, rule domain.FieldRule, raw any) (any, error) {
	if object, ok := raw.(map[string]any); ok {
		return readAttributes(rule, object), nil
	}

	reference := repository.KeyString(raw)
	switch rule.Source {
	case domain.LookupRevision:
		object, ok := snapshot.Related[reference]
		if !ok {
			return n.unresolved(ctx, rule, raw), nil
		}
		value := readAttributes(rule, object)
		if value == nil {
			return canonical(raw), nil
		}
		return value, nil

	case domain.LookupCodeTable:
		if n.codes == nil {
			return n.unresolved(ctx, rule, raw), nil
		}
		object, ok, err := n.codes.Load(ctx, rule.Table, reference)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", rule.Field, err)
		}
		if !ok {
			return n.unresolved(ctx, rule, raw), nil
		}
		return readAttributes(rule, object), nil

	default:
		return n.unresolved(ctx, rule, raw), nil
	}
}

// readAttributes returns the first present attribute for lookups and every
// present attribute joined by ", " for compound lookups.
func readAttributes(rule domain.FieldRule, object map[string]any) any {
	if rule.Kind == domain.RuleCompoundLookup {
		parts := make([]string, 0, len(rule.Attributes))
		for _, attribute := range rule.Attributes {
			if value, ok := object[attribute]; ok && value != nil {
				parts = append(parts, repository.KeyString(value))
			}
		}
		return strings.Join(parts, ", ")
	}

	for _, attribute := range rule.Attributes {
		if value, ok := object[attribute]; ok && value != nil {
			return canonical(value)
		}
	}
	return nil
}

func (n *Normalizer) unresolved(ctx context.Context, rule domain.FieldRule, raw any) any {
	normalizeFallbacks.WithLabelValues(fallbackUnresolvedReference).Inc()
	logging.From(ctx).Warnf("unresolved reference %v for %s, keeping raw value", raw, rule.Field)
	return canonical(raw)
}

func (n *Normalizer) geometry(ctx context.Context, rule domain.FieldRule, raw any) any {
	value, err := FormatGeometry(raw)
	if err != nil {
		normalizeFallbacks.WithLabelValues(fallbackMalformedGeometry).Inc()
		logging.From(ctx).Warnf("unreadable geometry in %s: %v", rule.Field, err)
		return nil
	}
	return value
}

// legacyGeometry prefers the geometry recorded in the serialized revision
// and falls back to the stored field value.
func (n *Normalizer) legacyGeometry(ctx context.Context, snapshot domain.Snapshot, rule domain.FieldRule, raw any) any {
	if stored, ok := legacyGeometry(snapshot.Serialized); ok {
		if value, err := FormatGeometry(stored); err == nil {
			return value
		}
	}
	if raw == nil {
		if len(snapshot.Serialized) > 0 {
			normalizeFallbacks.WithLabelValues(fallbackMalformedGeometry).Inc()
			logging.From(ctx).Warnf("unreadable serialized geometry in %s", rule.Field)
		}
		return nil
	}
	return n.geometry(ctx, rule, raw)
}

// collectionValue materialises a reverse relation as a list of plain maps
// restricted to columns. Empty collections are nil.
func collectionValue(raw any, columns []string) any {
	items, ok := asList(raw)
	if !ok {
		return canonical(raw)
	}
	if len(items) == 0 {
		return nil
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		row, ok := asMap(item)
		if !ok {
			out = append(out, canonical(item))
			continue
		}
		plain := make(map[string]any, len(row))
		if len(columns) == 0 {
			for key, value := range row {
				plain[key] = canonical(value)
			}
		} else {
			for _, column := range columns {
				plain[column] = canonical(row[column])
			}
		}
		out = append(out, plain)
	}
	return out
}

// codeListValue materialises a many-to-many code relation as [{"code": c}].
func codeListValue(raw any) any {
	items, ok := asList(raw)
	if !ok {
		return canonical(raw)
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if row, ok := asMap(item); ok {
			out = append(out, map[string]any{"code": canonical(row["code"])})
			continue
		}
		out = append(out, map[string]any{"code": canonical(item)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// canonical makes numerically equal values compare equal regardless of the
// Go type the store decoded them into.
func canonical(value any) any {
	switch typed := value.(type) {
	case int:
		return canonicalInt(int64(typed))
	case int8:
		return float64(typed)
	case int16:
		return float64(typed)
	case int32:
		return float64(typed)
	case int64:
		return canonicalInt(typed)
	case uint:
		return canonicalUint(uint64(typed))
	case uint8:
		return float64(typed)
	case uint16:
		return float64(typed)
	case uint32:
		return float64(typed)
	case uint64:
		return canonicalUint(typed)
	case float32:
		return float64(typed)
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return canonicalInt(i)
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case json.RawMessage:
		var decoded any
		decoder := json.NewDecoder(bytes.NewReader(typed))
		decoder.UseNumber()
		if err := decoder.Decode(&decoded); err == nil {
			return canonical(decoded)
		}
		return string(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = canonical(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = canonical(item)
		}
		return out
	default:
		return value
	}
}

// maxExactInt is the largest magnitude a float64 holds without rounding.
const maxExactInt = 1 << 53

// canonicalInt widens integers to float64 so they compare equal to floats,
// keeping the integer when widening would round it.
func canonicalInt(v int64) any {
	if v >= -maxExactInt && v <= maxExactInt {
		return float64(v)
	}
	return v
}

func canonicalUint(v uint64) any {
	if v <= maxExactInt {
		return float64(v)
	}
	return v
}

func asList(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, true
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func asMap(value any) (map[string]any, bool) {
	row, ok := value.(map[string]any)
	return row, ok
}

func toFloat(value any) (float64, bool) {
	f, ok := canonical(value).(float64)
	return f, ok
}

// codeRefs lists every code table row the rules will look up across the
// snapshots, sorted for a deterministic batch.
func codeRefs(rules []domain.FieldRule, snapshots []domain.Snapshot) []lookuploader.CodeRef {
	seen := make(map[lookuploader.CodeRef]struct{})
	for _, rule := range rules {
		if rule.Source != domain.LookupCodeTable || (rule.Kind != domain.RuleLookup && rule.Kind != domain.RuleCompoundLookup) {
			continue
		}
		for _, snapshot := range snapshots {
			raw, ok := snapshot.Value(rule.Field)
			if !ok || raw == nil {
				continue
			}
			if _, embedded := raw.(map[string]any); embedded {
				continue
			}
			seen[lookuploader.CodeRef{Table: rule.Table, Code: repository.KeyString(raw)}] = struct{}{}
		}
	}

	refs := make([]lookuploader.CodeRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Table != refs[j].Table {
			return refs[i].Table < refs[j].Table
		}
		return refs[i].Code < refs[j].Code
	})
	return refs
}
