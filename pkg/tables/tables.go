package tables

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
)

const (
	SchemaName    = "schema"
	MetadataName  = "meta"
	SummaryName   = "data_all"
	FrequencyName = "freq"

	ParquetExt = ".parquet"
	CSVExt     = ".csv"
)

// Column names shared by the schema and frequency tables.
const (
	FieldsColumn         = "Fields"
	ParentColumn         = "Parent"
	ParentWeightColumn   = "ParentWeight"
	WeightColumn         = "Weight"
	OptionalWeightColumn = "OptionalWeight"
	InSchemaColumn       = "In Schema"
	IdentifierColumn     = "Identifier"
)

const (
	runIDKey        = "run_id"
	schemaDigestKey = "schema_blake2b"
)

// Run identifies the report run that produced a table. It is recorded in
// every table's schema metadata.
type Run struct {
	ID           string
	SchemaDigest string
}

func (r Run) metadata(description string) *arrow.Metadata {
	return NewMetadataBuilder().
		Add(comment, description).
		Add(runIDKey, r.ID).
		Add(schemaDigestKey, r.SchemaDigest).
		BuildReference()
}

// Format is an output file format.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case CSV, Parquet:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q, must be one of [csv|parquet]", s)
	}
}

// Ext is the file extension of the format.
func (f Format) Ext() string {
	if f == Parquet {
		return ParquetExt
	}
	return CSVExt
}

func weightFields() []arrow.Field {
	return []arrow.Field{
		{Name: FieldsColumn,
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The dotted path of the field")},
		{Name: ParentColumn,
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The top-level schema property the field belongs to"),
			Nullable: true},
		{Name: ParentWeightColumn,
			Type:     arrow.PrimitiveTypes.Float64,
			Metadata: Comment("The parent's schema weight plus its optionality weight"),
			Nullable: true},
		{Name: WeightColumn,
			Type:     arrow.PrimitiveTypes.Float64,
			Metadata: Comment("The field's ordering weight within its parent"),
			Nullable: true},
		{Name: OptionalWeightColumn,
			Type:     arrow.PrimitiveTypes.Float64,
			Metadata: Comment("0 if required, 50 if recommended, 100 if optional"),
			Nullable: true},
	}
}
