package memory

import "github.com/hashicorp/go-memdb"

var (
	tblHeaders      = "headers"
	tblRevisions    = "revisions"
	tblRelated      = "related"
	tblSubmissions  = "submissions"
	tblChildRows    = "child_rows"
	tblCorrelations = "correlations"
	tblCodes        = "codes"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblHeaders: {
			Name: tblHeaders,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
		tblRevisions: {
			Name: tblRevisions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"entity": {
					Name:    "entity",
					Indexer: &memdb.StringFieldIndex{Field: "EntityKey"},
				},
			},
		},
		tblRelated: {
			Name: tblRelated,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"parent_relation": {
					Name: "parent_relation",
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "ParentKey"},
							&memdb.StringFieldIndex{Field: "Relation"},
						},
					},
				},
			},
		},
		tblSubmissions: {
			Name: tblSubmissions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"well": {
					Name:    "well",
					Indexer: &memdb.StringFieldIndex{Field: "WellTagNumber"},
				},
			},
		},
		tblChildRows: {
			Name: tblChildRows,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"table": {
					Name:    "table",
					Indexer: &memdb.StringFieldIndex{Field: "Table"},
				},
			},
		},
		tblCorrelations: {
			Name: tblCorrelations,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"well": {
					Name:    "well",
					Indexer: &memdb.StringFieldIndex{Field: "WellTagNumber"},
				},
			},
		},
		tblCodes: {
			Name: tblCodes,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Table"},
							&memdb.StringFieldIndex{Field: "Code"},
						},
					},
				},
			},
		},
	},
}
