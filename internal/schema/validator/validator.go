package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/wellhistory/internal/domain"
)

var lookupKinds = map[domain.RuleKind]struct{}{
	domain.RuleLookup:         {},
	domain.RuleCompoundLookup: {},
}

var knownKinds = map[domain.RuleKind]struct{}{
	domain.RuleIdentity:       {},
	domain.RuleLookup:         {},
	domain.RuleCompoundLookup: {},
	domain.RuleGeometry:       {},
	domain.RuleLegacyGeometry: {},
	domain.RuleCollection:     {},
	domain.RuleCodeList:       {},
	domain.RuleExcluded:       {},
}

// ValidateRules ensures a field rule table is internally consistent. Field
// names and reported names must be unique, lookups must say where and what
// to resolve, and collections must name the columns they keep.
func ValidateRules(rules []domain.FieldRule) error {
	seen := make(map[string]struct{}, len(rules))
	reported := make(map[string]string, len(rules))

	for _, rule := range rules {
		name := strings.TrimSpace(rule.Field)
		if name == "" {
			return fmt.Errorf("field rule with empty field name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %s declared more than once", name)
		}
		seen[name] = struct{}{}

		if _, ok := knownKinds[rule.Kind]; !ok {
			return fmt.Errorf("field %s has unknown rule kind %q", name, rule.Kind)
		}

		if rule.IsExcluded() {
			if rule.DisplayName != "" {
				return fmt.Errorf("excluded field %s cannot declare a display name", name)
			}
			continue
		}

		if other, dup := reported[rule.ReportedName()]; dup {
			return fmt.Errorf("fields %s and %s are both reported as %s", other, name, rule.ReportedName())
		}
		reported[rule.ReportedName()] = name

		if _, ok := lookupKinds[rule.Kind]; ok {
			if len(rule.Attributes) == 0 {
				return fmt.Errorf("lookup field %s must declare at least one attribute", name)
			}
			switch rule.Source {
			case domain.LookupCodeTable:
				if strings.TrimSpace(rule.Table) == "" {
					return fmt.Errorf("code table lookup field %s must name its table", name)
				}
			case domain.LookupRevision, domain.LookupEmbedded:
			default:
				return fmt.Errorf("lookup field %s has unknown source %q", name, rule.Source)
			}
		}

		if rule.Kind == domain.RuleCollection && len(rule.Columns) == 0 {
			return fmt.Errorf("collection field %s must declare its columns", name)
		}

		if rule.Series && rule.Kind != domain.RuleCollection {
			return fmt.Errorf("field %s is marked as a series but is not a collection", name)
		}
	}

	return nil
}
