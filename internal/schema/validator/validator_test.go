package validator

import (
	"strings"
	"testing"

	"github.com/rpattn/wellhistory/internal/domain"
)

func TestValidateRules_AcceptsMixedTable(t *testing.T) {
	rules := []domain.FieldRule{
		{Field: "aquifer_id", Kind: domain.RuleExcluded},
		{Field: "aquifer_name", Kind: domain.RuleIdentity},
		{Field: "material", Kind: domain.RuleLookup, Source: domain.LookupCodeTable, Table: "aquifer_material", Attributes: []string{"description"}},
		{Field: "company_id", Kind: domain.RuleLookup, Source: domain.LookupRevision, Attributes: []string{"description", "name"}, DisplayName: "company"},
		{Field: "geom", Kind: domain.RuleLegacyGeometry},
		{Field: "casing_set", Kind: domain.RuleCollection, Columns: []string{"start", "end"}, Series: true},
	}

	if err := ValidateRules(rules); err != nil {
		t.Fatalf("expected validation to pass, got error: %v", err)
	}
}

func TestValidateRules_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		rules   []domain.FieldRule
		message string
	}{
		{
			name:    "duplicate field",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleIdentity}, {Field: "a", Kind: domain.RuleIdentity}},
			message: "declared more than once",
		},
		{
			name:    "empty name",
			rules:   []domain.FieldRule{{Field: " ", Kind: domain.RuleIdentity}},
			message: "empty field name",
		},
		{
			name:    "unknown kind",
			rules:   []domain.FieldRule{{Field: "a", Kind: "magic"}},
			message: "unknown rule kind",
		},
		{
			name:    "lookup without attributes",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleLookup, Source: domain.LookupRevision}},
			message: "at least one attribute",
		},
		{
			name:    "code table lookup without table",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleLookup, Source: domain.LookupCodeTable, Attributes: []string{"description"}}},
			message: "must name its table",
		},
		{
			name:    "collection without columns",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleCollection}},
			message: "must declare its columns",
		},
		{
			name: "reported name clash",
			rules: []domain.FieldRule{
				{Field: "company", Kind: domain.RuleIdentity},
				{Field: "company_id", Kind: domain.RuleLookup, Source: domain.LookupRevision, Attributes: []string{"name"}, DisplayName: "company"},
			},
			message: "both reported as company",
		},
		{
			name:    "series on scalar",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleIdentity, Series: true}},
			message: "marked as a series",
		},
		{
			name:    "excluded with display name",
			rules:   []domain.FieldRule{{Field: "a", Kind: domain.RuleExcluded, DisplayName: "b"}},
			message: "cannot declare a display name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRules(tc.rules)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.message)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error containing %q, got %v", tc.message, err)
			}
		})
	}
}
