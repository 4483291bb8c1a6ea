package tables

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/klauspost/compress/gzip"
)

// Write writes a record to outDir/name with the format's extension and returns
// the path written.
func Write(outDir, name string, format Format, record arrow.Record) (string, error) {
	outPath := filepath.Join(outDir, name+format.Ext())

	var err error
	switch format {
	case Parquet:
		err = WriteParquet(outPath, record)
	case CSV:
		err = WriteCSV(outPath, record)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return outPath, nil
}

// WriteParquet writes a gzip-compressed Parquet file.
func WriteParquet(outPath string, record arrow.Record) error {
	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	// Don't close outFile; parquet handles closing it.
	writer, err := pqarrow.NewFileWriter(
		record.Schema(),
		outFile,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	)
	if err != nil {
		_ = outFile.Close()
		return err
	}

	err = writer.Write(record)
	if err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// WriteCSV writes a CSV file with a header row. Nulls are written as empty
// cells.
func WriteCSV(outPath string, record arrow.Record) error {
	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(outFile, record.Schema(),
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)

	err = writer.Write(record)
	if err == nil {
		err = writer.Flush()
	}

	closeErr := outFile.Close()
	if err != nil {
		return err
	}
	return closeErr
}
