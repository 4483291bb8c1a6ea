package report

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/willbeason/state-of-the-data/pkg/corpus"
	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
	"github.com/willbeason/state-of-the-data/pkg/frequency"
	"github.com/willbeason/state-of-the-data/pkg/metadata"
	"github.com/willbeason/state-of-the-data/pkg/schema"
	"github.com/willbeason/state-of-the-data/pkg/tables"
)

// Inputs configures one report run.
type Inputs struct {
	SchemaPath  string
	SummaryPath string
	Documents   []corpus.Document

	Recommended []string
	Wrapper     string
	Identifier  string

	// Workers bounds the number of documents counted at once.
	Workers int
	// SkipInvalid skips documents which are not valid JSON instead of failing
	// the run.
	SkipInvalid bool

	// Progress, if set, displays a bar of counted documents.
	Progress *mpb.Progress
}

// Result holds every table of a report run.
type Result struct {
	Run       tables.Run
	Schema    []schema.Row
	Summary   *metadata.Table
	Metadata  []metadata.Row
	Frequency *frequency.Table
	// Skipped lists the identifiers of invalid documents left out of the
	// report.
	Skipped []string
}

// Run computes the schema weights, the corpus summary and the weighted field
// frequencies of every document.
func Run(ctx context.Context, in Inputs) (*Result, error) {
	start := time.Now()

	schemaData, err := os.ReadFile(in.SchemaPath)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read schema %q", in.SchemaPath)
	}
	doc, err := schema.Parse(schemaData)
	if err != nil {
		return nil, eris.Wrap(err, "report: parse schema")
	}
	schemaRows, err := schema.Weights(doc, in.Recommended)
	if err != nil {
		return nil, eris.Wrap(err, "report: weigh schema")
	}
	zap.L().Info("weighed schema", zap.Int("fields", len(schemaRows)))

	summary, err := readSummary(in.SummaryPath, in.Identifier)
	if err != nil {
		return nil, err
	}
	zap.L().Info("read corpus summary", zap.Int("documents", len(summary.Identifiers())))

	counts, skipped, err := countDocuments(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := tables.CheckDocumentColumns(counts.Columns()); err != nil {
		return nil, eris.Wrap(err, "report: document columns")
	}

	metadataRows, err := frequency.MetadataRows(counts, summary)
	if err != nil {
		return nil, eris.Wrap(err, "report: join metadata")
	}

	result := &Result{
		Run: tables.Run{
			ID:           uuid.NewString(),
			SchemaDigest: schema.Digest(schemaData),
		},
		Schema:    schemaRows,
		Summary:   summary,
		Metadata:  metadataRows,
		Frequency: frequency.Join(counts, schemaRows),
		Skipped:   skipped,
	}

	zap.L().Info("computed field frequencies",
		zap.String("run_id", result.Run.ID),
		zap.Int("documents", len(result.Frequency.Columns)),
		zap.Int("skipped", len(skipped)),
		zap.Int("fields", len(result.Frequency.Rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func readSummary(summaryPath, identifier string) (*metadata.Table, error) {
	f, err := os.Open(summaryPath)
	if err != nil {
		return nil, eris.Wrapf(err, "report: open summary %q", summaryPath)
	}
	defer f.Close() //nolint:errcheck

	summary, err := metadata.Extract(f, identifier)
	if err != nil {
		return nil, eris.Wrapf(err, "report: extract summary %q", summaryPath)
	}
	return summary, nil
}

// countDocuments counts every document concurrently. The first failure
// cancels the remaining documents.
func countDocuments(ctx context.Context, in Inputs) (*frequency.Matrix, []string, error) {
	counter := fieldcount.Counter{Wrapper: in.Wrapper}
	acc := frequency.NewAccumulator()

	var bar *mpb.Bar
	if in.Progress != nil {
		bar = in.Progress.AddBar(int64(len(in.Documents)),
			mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
			mpb.PrependDecorators(decor.Name("documents")),
			mpb.PrependDecorators(decor.CountersNoUnit("%d/%d", decor.WCSyncSpace)),
			mpb.BarRemoveOnComplete())
	}
	start := time.Now()

	var mu sync.Mutex
	var skipped []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(in.Workers, 1))

	for _, doc := range in.Documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			v, err := countDocument(counter, doc)
			switch {
			case err == nil:
				acc.Add(doc.Identifier, v)
			case in.SkipInvalid && errors.Is(err, fieldcount.ErrParse):
				zap.L().Warn("skipping invalid document",
					zap.String("identifier", doc.Identifier),
					zap.Error(err),
				)
				mu.Lock()
				skipped = append(skipped, doc.Identifier)
				mu.Unlock()
			default:
				return eris.Wrapf(err, "report: count %q", doc.Identifier)
			}

			if bar != nil {
				bar.IncrBy(1, time.Since(start))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Strings(skipped)
	return acc.Matrix(), skipped, nil
}

func countDocument(counter fieldcount.Counter, doc corpus.Document) (fieldcount.Vector, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	reader := bondsmith.NewCountReader(f)
	v, err := counter.Count(reader)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("counted document",
		zap.String("identifier", doc.Identifier),
		zap.Int64("values", v.Total()),
		zap.Int("bytes", int(reader.Count())),
	)
	return v, nil
}

// Write writes the report tables to outDir and returns the paths written.
func (r *Result) Write(outDir string, format tables.Format) ([]string, error) {
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, eris.Wrapf(err, "report: create output directory %q", outDir)
	}

	allocator := memory.NewGoAllocator()

	summaryRecord, err := tables.SummaryRecord(allocator, r.Run, r.Summary)
	if err != nil {
		return nil, eris.Wrap(err, "report: build summary table")
	}

	records := []struct {
		name   string
		record arrow.Record
	}{
		{tables.SchemaName, tables.SchemaRecord(allocator, r.Run, r.Schema)},
		{tables.MetadataName, tables.MetadataRecord(allocator, r.Run, r.Metadata)},
		{tables.SummaryName, summaryRecord},
		{tables.FrequencyName, tables.FrequencyRecord(allocator, r.Run, r.Frequency)},
	}
	defer func() {
		for _, rec := range records {
			rec.record.Release()
		}
	}()

	paths := make([]string, 0, len(records))
	for _, rec := range records {
		outPath, err := tables.Write(outDir, rec.name, format, rec.record)
		if err != nil {
			return nil, eris.Wrap(err, "report: write table")
		}
		zap.L().Info("wrote table",
			zap.String("path", outPath),
			zap.Int64("rows", rec.record.NumRows()),
		)
		paths = append(paths, outPath)
	}
	return paths, nil
}
