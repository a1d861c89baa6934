package domain

import "strings"

// RuleKind describes how a stored field value is normalised before it is
// compared and displayed.
type RuleKind string

const (
	RuleIdentity       RuleKind = "identity"
	RuleLookup         RuleKind = "lookup"
	RuleCompoundLookup RuleKind = "compound_lookup"
	RuleGeometry       RuleKind = "geometry"
	// RuleLegacyGeometry reads the geometry out of the serialized revision
	// payload. Older revisions stored a single polygon where the live column
	// now holds a multipolygon.
	RuleLegacyGeometry RuleKind = "legacy_geometry"
	RuleCollection     RuleKind = "collection"
	RuleCodeList       RuleKind = "code_list"
	RuleExcluded       RuleKind = "excluded"
)

// LookupSource says where a lookup rule finds the referenced object.
type LookupSource string

const (
	// LookupCodeTable resolves against a code table in the record store.
	LookupCodeTable LookupSource = "code_table"
	// LookupRevision resolves against objects logged in the same revision.
	LookupRevision LookupSource = "revision"
	// LookupEmbedded reads attributes from a value that already carries the
	// referenced object as a map.
	LookupEmbedded LookupSource = "embedded"
)

// FieldRule is the normalisation rule for one field of an entity type.
type FieldRule struct {
	Field string   `json:"field"`
	Kind  RuleKind `json:"kind"`
	// DisplayName overrides the key the field is reported under.
	DisplayName string       `json:"displayName,omitempty"`
	Source      LookupSource `json:"source,omitempty"`
	Table       string       `json:"table,omitempty"`
	// Attributes lists the referenced attributes to read. Lookup rules try
	// them in order and take the first present one; compound lookups join
	// every present attribute.
	Attributes []string `json:"attributes,omitempty"`
	// Columns restricts collection rows to these keys, in this order.
	Columns []string `json:"columns,omitempty"`
	// Series marks interval collections that reports merge into the
	// previous series instead of replacing it.
	Series bool `json:"series,omitempty"`
}

// ReportedName returns the key the field is reported under.
func (r FieldRule) ReportedName() string {
	if strings.TrimSpace(r.DisplayName) != "" {
		return r.DisplayName
	}
	return r.Field
}

// IsExcluded reports whether the field must never appear in a diff.
func (r FieldRule) IsExcluded() bool {
	return r.Kind == RuleExcluded
}

// StripIDSuffix turns a foreign key column such as company_id into the
// relation name company.
func StripIDSuffix(field string) string {
	if strings.HasSuffix(field, "_id") && len(field) > len("_id") {
		return strings.TrimSuffix(field, "_id")
	}
	return field
}
