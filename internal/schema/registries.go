package schema

import "github.com/rpattn/wellhistory/internal/domain"

// Organization describes a registries organization (drilling company).
func Organization() *Schema {
	return &Schema{
		Kind: domain.EntityKindOrganization,
		Mode: ModeFullObject,
		Fields: concat(
			excluded("org_guid"),
			identity("name", "street_address", "city"),
			[]domain.FieldRule{revisionLookup("province_state_id")},
			identity("postal_code", "main_tel", "fax_tel", "website_url", "email", "effective_date", "expiry_date"),
			[]domain.FieldRule{{Field: "geom", Kind: domain.RuleGeometry}},
			identity("regional_areas"),
			excluded(auditFields...),
		),
	}
}

// Person describes a registered professional, merged with the histories of
// their registrations and applications.
func Person() *Schema {
	return &Schema{
		Kind:        domain.EntityKindPerson,
		LabelFormat: "Person profile",
		Mode:        ModeFullObject,
		Fields: concat(
			excluded("person_guid"),
			identity(
				"first_name",
				"surname",
				"well_driller_orcs_no",
				"pump_installer_orcs_no",
				"contact_tel",
				"contact_cell",
				"contact_email",
				"effective_date",
				"expiry_date",
			),
			excluded(auditFields...),
		),
		Related: []RelatedCollection{
			{Relation: "registrations", Schema: registration()},
			{Relation: "applications", Schema: application()},
		},
	}
}

func registration() *Schema {
	return &Schema{
		Kind: "registration",
		Mode: ModeFullObject,
		Fields: concat(
			excluded("register_guid", "person_id"),
			[]domain.FieldRule{
				revisionLookup("registries_activity_id"),
				revisionLookup("organization_id"),
			},
			identity("registration_no"),
			excluded(auditFields...),
		),
	}
}

func application() *Schema {
	return &Schema{
		Kind: "application",
		Mode: ModeFullObject,
		Fields: concat(
			excluded("application_guid", "registration_id"),
			[]domain.FieldRule{
				revisionLookup("subactivity_id"),
				revisionLookup("primary_certificate_id"),
				revisionLookup("proof_of_age_id"),
				revisionLookup("current_status_id"),
				revisionLookup("removal_reason_id"),
			},
			identity(
				"file_no",
				"primary_certificate_no",
				"over19_ind",
				"registrar_notes",
				"reason_denied",
				"application_recieved_date",
				"application_outcome_date",
				"application_outcome_notification_date",
				"removal_date",
			),
			excluded(auditFields...),
		),
	}
}
