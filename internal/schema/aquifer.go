package schema

import "github.com/rpattn/wellhistory/internal/domain"

// Aquifer describes the aquifer record and its vertical extent batches.
func Aquifer() *Schema {
	return &Schema{
		Kind:        domain.EntityKindAquifer,
		LabelFormat: "Aquifer %s",
		Mode:        ModeFullObject,
		Fields: concat(
			excluded("aquifer_id"),
			identity("aquifer_name", "location_description"),
			[]domain.FieldRule{
				codeLookup("material", "aquifer_material", "description"),
				codeLookup("subtype", "aquifer_subtype", "description"),
			},
			identity("area"),
			[]domain.FieldRule{
				codeLookup("vulnerability", "aquifer_vulnerability", "description"),
				codeLookup("productivity", "aquifer_productivity", "description"),
				codeLookup("demand", "aquifer_demand", "description"),
				codeLookup("known_water_use", "water_use", "description"),
				codeLookup("quality_concern", "quality_concern", "description"),
			},
			identity(
				"litho_stratographic_unit",
				"mapping_year",
				"notes",
				"effective_date",
				"expiry_date",
				"retire_date",
			),
			[]domain.FieldRule{{Field: "geom", Kind: domain.RuleLegacyGeometry}},
			excluded("geom_simplified"),
			excluded(auditFields...),
			excluded(
				"well",
				"activitysubmission",
				"resources",
				"verticalaquiferextent",
				"update_to_aquifer_set",
				"update_from_aquifer_set",
				"history",
			),
		),
		Children: []ChildCollection{
			{
				Table:        "vertical_aquifer_extents_history",
				ParentColumn: "aquifer_id",
				Key:          "extents",
				Columns:      []string{"well_tag_number", "start", "end"},
				LabelFormat:  "Aquifer %s's Vertical Extents",
			},
		},
	}
}
