package schema

// Records holds primary data records.
var Records = &Table{
	Name:        "records",
	Description: "Primary data records with attributes and metadata",
	Fields: []Field{
		{Name: "id", Type: String, Comment: "Unique record identifier"},
		{Name: "category", Type: String, Comment: "Record category (partition key)"},
		{Name: "created_at", Type: Timestamp, Nullable: true, Comment: "Creation timestamp"},
		{Name: "updated_at", Type: Timestamp, Nullable: true, Comment: "Last update timestamp"},
		{Name: "name", Type: String, Nullable: true, Comment: "Record name"},
		{Name: "description", Type: String, Nullable: true, Comment: "Record description"},
		{Name: "value", Type: Float64, Nullable: true, Comment: "Numeric value"},
		{Name: "tags", Type: StringList, Nullable: true, Comment: "List of tags"},
		{Name: "attributes", Type: Struct, Nullable: true, Comment: "Nested attributes", Children: []Field{
			{Name: "key1", Type: String, Nullable: true},
			{Name: "key2", Type: Int64, Nullable: true},
		}},
		{Name: "source_file", Type: String, Nullable: true, Comment: "Source file path"},
		{Name: "ingestion_time", Type: Timestamp, Nullable: true, Comment: "Ingestion timestamp"},
	},
	PrimaryKey:    "id",
	RecencyField:  "created_at",
	PartitionKeys: []string{"category"},
	FilePattern:   "records*.parquet",
}

// Events holds time-series events associated with records.
var Events = &Table{
	Name:        "events",
	Description: "Time-series events associated with records",
	Fields: []Field{
		{Name: "id", Type: String, Comment: "Unique event identifier"},
		{Name: "record_id", Type: String, Comment: "Associated record ID"},
		{Name: "category", Type: String, Comment: "Event category (partition key)"},
		{Name: "event_time", Type: Timestamp, Nullable: true, Comment: "Event timestamp"},
		{Name: "event_type", Type: String, Nullable: true, Comment: "Type of event"},
		{Name: "event_data", Type: String, Nullable: true, Comment: "Event payload (JSON)"},
	},
	PrimaryKey:    "id",
	RecencyField:  "event_time",
	PartitionKeys: []string{"category"},
	FilePattern:   "events*.parquet",
}

// Default returns the built-in registry of records and events.
func Default() *Registry {
	r, err := NewRegistry(Records, Events)
	if err != nil {
		panic(err)
	}
	return r
}
