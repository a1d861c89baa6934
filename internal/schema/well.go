package schema

import "github.com/rpattn/wellhistory/internal/domain"

// Activity submission types that change how a report is stacked.
const (
	ActivityLegacy       = "LEGACY"
	ActivityStaffEdit    = "STAFF_EDIT"
	ActivityConstruction = "CON"
	ActivityAlteration   = "ALT"
	ActivityDecommission = "DEC"
)

// Well describes activity submission history for a well together with its
// aquifer correlation and vertical extent feeds.
func Well() *Schema {
	return &Schema{
		Kind:        domain.EntityKindWell,
		LabelFormat: "Well %s",
		Mode:        ModeStackedSubmissions,
		Fields: concat(
			excluded("filing_number", "activity_submission_guid", "activity_submission", "well", "well_activity_type"),
			[]domain.FieldRule{
				codeLookup("well_status", "well_status_code", "well_status_code"),
				codeLookup("well_publication_status", "well_publication_status_code", "well_publication_status_code"),
				codeLookup("well_class", "well_class_code", "description"),
				codeLookup("well_subclass", "well_subclass_code", "description"),
				codeLookup("intended_water_use", "intended_water_use_code", "description"),
				compoundLookup("person_responsible", "person", "surname", "first_name"),
				codeLookup("company_of_person_responsible", "organization", "name"),
			},
			identity(
				"driller_name",
				"consultant_name",
				"consultant_company",
				"work_start_date",
				"work_end_date",
				"owner_full_name",
				"owner_mailing_address",
				"owner_city",
			),
			[]domain.FieldRule{codeLookup("owner_province_state", "province_state_code", "province_state_code")},
			identity(
				"owner_postal_code",
				"owner_email",
				"owner_tel",
				"street_address",
				"city",
				"legal_lot",
				"legal_plan",
				"legal_district_lot",
				"legal_block",
				"legal_section",
				"legal_township",
				"legal_range",
			),
			[]domain.FieldRule{codeLookup("land_district", "land_district_code", "name")},
			identity(
				"legal_pid",
				"well_location_description",
				"identification_plate_number",
				"well_identification_plate_attached",
				"id_plate_attached_by",
			),
			[]domain.FieldRule{
				{Field: "geom", Kind: domain.RuleGeometry},
				codeLookup("coordinate_acquisition_code", "coordinate_acquisition_code", "description"),
			},
			identity("ground_elevation"),
			[]domain.FieldRule{
				codeLookup("ground_elevation_method", "ground_elevation_method_code", "description"),
				codeList("drilling_methods"),
				codeLookup("well_orientation_status", "well_orientation_code", "description"),
			},
			identity("water_supply_system_name", "water_supply_system_well_name"),
			[]domain.FieldRule{codeLookup("surface_seal_material", "surface_seal_material_code", "description")},
			identity("surface_seal_depth", "surface_seal_thickness"),
			[]domain.FieldRule{codeLookup("surface_seal_method", "surface_seal_method_code", "description")},
			identity("backfill_above_surface_seal", "backfill_above_surface_seal_depth", "backfill_depth", "backfill_type"),
			[]domain.FieldRule{codeLookup("liner_material", "liner_material_code", "code")},
			identity("liner_diameter", "liner_thickness", "liner_from", "liner_to"),
			[]domain.FieldRule{
				codeLookup("screen_intake_method", "screen_intake_method_code", "description"),
				codeLookup("screen_type", "screen_type_code", "description"),
				codeLookup("screen_material", "screen_material_code", "description"),
			},
			identity("other_screen_material"),
			[]domain.FieldRule{
				codeLookup("screen_opening", "screen_opening_code", "description"),
				codeLookup("screen_bottom", "screen_bottom_code", "description"),
			},
			identity("other_screen_bottom", "screen_information", "filter_pack_from", "filter_pack_to", "filter_pack_thickness"),
			[]domain.FieldRule{
				codeLookup("filter_pack_material", "filter_pack_material_code", "description"),
				codeLookup("filter_pack_material_size", "filter_pack_material_size_code", "description"),
				codeList("development_methods"),
			},
			identity("development_hours", "development_notes"),
			[]domain.FieldRule{codeList("water_quality_characteristics")},
			identity(
				"water_quality_colour",
				"water_quality_odour",
				"total_depth_drilled",
				"finished_well_depth",
				"final_casing_stick_up",
				"bedrock_depth",
				"static_water_level",
				"well_yield",
				"artesian_flow",
				"artesian_pressure",
				"well_cap_type",
			),
			[]domain.FieldRule{codeLookup("well_disinfected_status", "well_disinfected_code", "description")},
			identity("comments", "internal_comments", "alternative_specs_submitted"),
			[]domain.FieldRule{
				codeLookup("well_yield_unit", "well_yield_unit_code", "well_yield_unit_code"),
				codeLookup("drive_shoe_status", "drive_shoe_code", "description"),
			},
			identity("diameter", "ems", "observation_well_number"),
			[]domain.FieldRule{
				codeLookup("observation_well_status", "obs_well_status_code", "obs_well_status_code"),
				compoundLookup("aquifer", "aquifer", "aquifer_id", "aquifer_name"),
			},
			identity("decommission_reason"),
			[]domain.FieldRule{codeLookup("decommission_method", "decommission_method_code", "description")},
			identity(
				"decommission_sealant_material",
				"decommission_backfill_material",
				"decommission_details",
				"aquifer_vulnerability_index",
				"storativity",
				"transmissivity",
				"hydraulic_conductivity",
				"specific_storage",
				"specific_yield",
				"testing_method",
				"testing_duration",
				"analytic_solution_type",
			),
			[]domain.FieldRule{
				codeLookup("boundary_effect", "boundary_effect_code", "description"),
				codeLookup("aquifer_lithology", "aquifer_lithology_code", "description"),
				codeLookup("yield_estimation_method", "yield_estimation_method_code", "description"),
			},
			identity(
				"yield_estimation_rate",
				"yield_estimation_duration",
				"static_level_before_test",
				"drawdown",
				"hydro_fracturing_performed",
				"hydro_fracturing_yield_increase",
				"recommended_pump_depth",
				"recommended_pump_rate",
			),
			[]domain.FieldRule{
				collection("casing_set", true, "start", "end", "diameter", "casing_code", "casing_material", "drive_shoe_status", "wall_thickness"),
				collection("screen_set", true, "start", "end", "internal_diameter", "assembly_type", "slot_size"),
				collection("linerperforation_set", true, "start", "end"),
				collection("decommission_description_set", false, "start", "end", "material", "observations"),
				collection("lithologydescription_set", false,
					"start", "end", "lithology_raw_data", "lithology_description", "lithology_material",
					"lithology_hardness", "lithology_colour", "water_bearing_estimated_flow", "lithology_observation"),
			},
			excluded(auditFields...),
		),
		Children: []ChildCollection{
			{
				Table:        "vertical_aquifer_extents_history",
				ParentColumn: "well_tag_number",
				Key:          "vertical_aquifer_extents",
				Columns:      []string{"aquifer_id", "start", "end"},
				LabelFormat:  "Well %s's Vertical Extents",
				Actions:      true,
			},
		},
		Correlations: true,
	}
}
