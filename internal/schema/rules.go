package schema

import "github.com/rpattn/wellhistory/internal/domain"

func identity(fields ...string) []domain.FieldRule {
	rules := make([]domain.FieldRule, len(fields))
	for i, field := range fields {
		rules[i] = domain.FieldRule{Field: field, Kind: domain.RuleIdentity}
	}
	return rules
}

func excluded(fields ...string) []domain.FieldRule {
	rules := make([]domain.FieldRule, len(fields))
	for i, field := range fields {
		rules[i] = domain.FieldRule{Field: field, Kind: domain.RuleExcluded}
	}
	return rules
}

func codeLookup(field, table, attribute string) domain.FieldRule {
	return domain.FieldRule{
		Field:      field,
		Kind:       domain.RuleLookup,
		Source:     domain.LookupCodeTable,
		Table:      table,
		Attributes: []string{attribute},
	}
}

func compoundLookup(field, table string, attributes ...string) domain.FieldRule {
	return domain.FieldRule{
		Field:      field,
		Kind:       domain.RuleCompoundLookup,
		Source:     domain.LookupCodeTable,
		Table:      table,
		Attributes: attributes,
	}
}

// revisionLookup resolves a *_id column against the objects saved in the
// same revision and reports it without the suffix.
func revisionLookup(field string) domain.FieldRule {
	return domain.FieldRule{
		Field:       field,
		Kind:        domain.RuleLookup,
		Source:      domain.LookupRevision,
		Attributes:  []string{"description", "name"},
		DisplayName: domain.StripIDSuffix(field),
	}
}

func collection(field string, series bool, columns ...string) domain.FieldRule {
	return domain.FieldRule{
		Field:   field,
		Kind:    domain.RuleCollection,
		Columns: columns,
		Series:  series,
	}
}

func codeList(field string) domain.FieldRule {
	return domain.FieldRule{
		Field:      field,
		Kind:       domain.RuleCodeList,
		Attributes: []string{"code"},
	}
}

// auditFields are stamped on every registry table and never diffed.
var auditFields = []string{"create_user", "create_date", "update_user", "update_date"}

func concat(groups ...[]domain.FieldRule) []domain.FieldRule {
	var out []domain.FieldRule
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}
