package tables

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/willbeason/state-of-the-data/pkg/flatten"
	"github.com/willbeason/state-of-the-data/pkg/frequency"
	"github.com/willbeason/state-of-the-data/pkg/metadata"
	"github.com/willbeason/state-of-the-data/pkg/schema"
)

// SchemaTable describes the fields derived from the schema, in report order.
func SchemaTable(run Run) *arrow.Schema {
	return arrow.NewSchema(weightFields(), run.metadata("Fields declared by the schema with their ordering weights"))
}

// MetadataTable describes the context attributes of each record document.
func MetadataTable(run Run) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: IdentifierColumn,
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The identifier of the record document")},
		{Name: "Publisher",
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The name of the publisher"),
			Nullable: true},
		{Name: "Downloaded",
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("When the document was downloaded"),
			Nullable: true},
		{Name: "License",
			Type:     arrow.FixedWidthTypes.Boolean,
			Metadata: Comment("Whether the document's license is acceptable"),
			Nullable: true},
		{Name: "Prefix",
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The publisher's identifier prefix"),
			Nullable: true},
		{Name: "Title",
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The title of the distribution"),
			Nullable: true},
		{Name: "Type",
			Type:     arrow.BinaryTypes.String,
			Metadata: Comment("The declared file type of the original download"),
			Nullable: true},
		{Name: "Valid",
			Type:     arrow.FixedWidthTypes.Boolean,
			Metadata: Comment("Whether the document validated against the schema"),
			Nullable: true},
	}, run.metadata("Context attributes of each record document"))
}

// SummaryTable describes the flattened corpus summary with one column per
// flattened path.
func SummaryTable(run Run, columns []string) *arrow.Schema {
	fields := []arrow.Field{{Name: IdentifierColumn, Type: arrow.BinaryTypes.String}}
	for _, column := range columns {
		fields = append(fields, arrow.Field{Name: column, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	return arrow.NewSchema(fields, run.metadata("The flattened corpus summary"))
}

// FrequencyTable describes the weighted frequency table with one count
// column per document.
func FrequencyTable(run Run, columns []string) *arrow.Schema {
	fields := weightFields()
	fields = append(fields, arrow.Field{Name: InSchemaColumn,
		Type:     arrow.FixedWidthTypes.Boolean,
		Metadata: Comment("Whether the schema declares the field")})
	for _, column := range columns {
		fields = append(fields, arrow.Field{Name: column,
			Type:     arrow.PrimitiveTypes.Int64,
			Metadata: Comment("Occurrences of the field in document " + column),
			Nullable: true})
	}
	return arrow.NewSchema(fields, run.metadata("Field occurrences per record document"))
}

// CheckDocumentColumns fails with frequency.ErrAggregation if a document
// identifier would collide with a fixed column of the frequency table.
func CheckDocumentColumns(ids []string) error {
	reserved := make(map[string]bool)
	for _, field := range FrequencyTable(Run{}, nil).Fields() {
		reserved[field.Name] = true
	}
	for _, id := range ids {
		if reserved[id] {
			return fmt.Errorf("%w: document %q collides with a frequency table column", frequency.ErrAggregation, id)
		}
	}
	return nil
}

func appendString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
	} else {
		b.Append(s)
	}
}

func appendBool(b *array.BooleanBuilder, v *bool) {
	if v == nil {
		b.AppendNull()
	} else {
		b.Append(*v)
	}
}

func appendWeights(fields []array.Builder, path string, row *schema.Row) {
	fields[0].(*array.StringBuilder).Append(path)
	if row == nil {
		for _, f := range fields[1:5] {
			f.AppendNull()
		}
		return
	}
	fields[1].(*array.StringBuilder).Append(row.Parent)
	fields[2].(*array.Float64Builder).Append(row.ParentWeight)
	fields[3].(*array.Float64Builder).Append(row.Weight)
	fields[4].(*array.Float64Builder).Append(row.OptionalWeight)
}

// SchemaRecord builds the schema table. The caller must release the record.
func SchemaRecord(allocator memory.Allocator, run Run, rows []schema.Row) arrow.Record {
	builder := array.NewRecordBuilder(allocator, SchemaTable(run))
	defer builder.Release()

	fields := builder.Fields()
	for _, row := range rows {
		appendWeights(fields, row.Path, &row)
	}
	return builder.NewRecord()
}

// MetadataRecord builds the metadata table. The caller must release the
// record.
func MetadataRecord(allocator memory.Allocator, run Run, rows []metadata.Row) arrow.Record {
	builder := array.NewRecordBuilder(allocator, MetadataTable(run))
	defer builder.Release()

	fields := builder.Fields()
	identifierField := fields[0].(*array.StringBuilder)
	publisherField := fields[1].(*array.StringBuilder)
	downloadedField := fields[2].(*array.StringBuilder)
	licenseField := fields[3].(*array.BooleanBuilder)
	prefixField := fields[4].(*array.StringBuilder)
	titleField := fields[5].(*array.StringBuilder)
	typeField := fields[6].(*array.StringBuilder)
	validField := fields[7].(*array.BooleanBuilder)

	for _, row := range rows {
		identifierField.Append(row.Identifier)
		appendString(publisherField, row.Publisher)
		appendString(downloadedField, row.Downloaded)
		appendBool(licenseField, row.License)
		appendString(prefixField, row.Prefix)
		appendString(titleField, row.Title)
		appendString(typeField, row.Type)
		appendBool(validField, row.Valid)
	}
	return builder.NewRecord()
}

// SummaryRecord builds the flattened summary table. The caller must release
// the record.
func SummaryRecord(allocator memory.Allocator, run Run, summary *metadata.Table) (arrow.Record, error) {
	columns := summary.Columns()
	builder := array.NewRecordBuilder(allocator, SummaryTable(run, columns))
	defer builder.Release()

	fields := builder.Fields()
	for _, id := range summary.Identifiers() {
		record, ok := summary.Record(id)
		if !ok {
			return nil, fmt.Errorf("summary has no entry for %q", id)
		}

		fields[0].(*array.StringBuilder).Append(id)
		for i, column := range columns {
			field := fields[i+1].(*array.StringBuilder)
			value, ok := flatten.String(record[column])
			if !ok {
				field.AppendNull()
				continue
			}
			field.Append(value)
		}
	}
	return builder.NewRecord(), nil
}

// FrequencyRecord builds the frequency table. The caller must release the
// record.
func FrequencyRecord(allocator memory.Allocator, run Run, table *frequency.Table) arrow.Record {
	builder := array.NewRecordBuilder(allocator, FrequencyTable(run, table.Columns))
	defer builder.Release()

	fields := builder.Fields()
	inSchemaField := fields[5].(*array.BooleanBuilder)
	countFields := fields[6:]

	for _, row := range table.Rows {
		appendWeights(fields, row.Path, row.Schema)
		inSchemaField.Append(row.InSchema())

		for j, field := range countFields {
			countField := field.(*array.Int64Builder)
			if row.Counts == nil {
				countField.AppendNull()
				continue
			}
			countField.Append(row.Counts[j])
		}
	}
	return builder.NewRecord()
}
