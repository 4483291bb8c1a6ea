package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/willbeason/state-of-the-data/internal/config"
	"github.com/willbeason/state-of-the-data/pkg/corpus"
	"github.com/willbeason/state-of-the-data/pkg/report"
	"github.com/willbeason/state-of-the-data/pkg/tables"
)

const (
	FlagTar     = "tar"
	FlagSchema  = "schema"
	FlagOut     = "out"
	FlagFormat  = "format"
	FlagWorkers = "workers"
)

// archiveDownload is where a remote archive is cached between runs.
const archiveDownload = "data.tar.gz"

func init() {
	cmd.Flags().String(FlagTar, "", "path or URL of the data getter archive (.tar or .tar.gz)")
	cmd.Flags().String(FlagSchema, "", "path or URL of the grant schema (default: schema.url from config)")
	cmd.Flags().String(FlagOut, "", "output directory (default: output.dir from config)")
	cmd.Flags().String(FlagFormat, "", "output format, csv or parquet (default: output.format from config)")
	cmd.Flags().Int(FlagWorkers, 0, "documents counted at once (default: documents.workers from config)")
	_ = cmd.MarkFlagRequired(FlagTar)
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "state-of-data --tar PATH|URL",
	Short:   "Reports how often each grant schema field is used across a 360Giving corpus",
	Args:    cobra.NoArgs,
	Version: "0.1.0",
	RunE:    runE,
}

var ErrStateOfData = errors.New("reporting the state of the data")

func runE(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}

	tarLocation, err := applyFlags(cmd.Flags(), cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}

	err = config.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}
	defer zap.L().Sync() //nolint:errcheck

	format, err := tables.ParseFormat(cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second

	schemaPath := cfg.Schema.URL
	if corpus.IsURL(schemaPath) {
		err = corpus.Fetch(ctx, schemaPath, cfg.Schema.LocalPath, timeout)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStateOfData, err)
		}
		schemaPath = cfg.Schema.LocalPath
	}

	archivePath := tarLocation
	if corpus.IsURL(archivePath) {
		archivePath = archiveDownload
		err = corpus.Fetch(ctx, tarLocation, archivePath, timeout)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStateOfData, err)
		}
	}

	workDir, err := os.MkdirTemp("", "state-of-data-*")
	if err != nil {
		return fmt.Errorf("%w: creating working directory: %w", ErrStateOfData, err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	layout, err := corpus.ExtractArchive(archivePath, workDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}

	documents, err := corpus.Documents(layout.DocumentsDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}

	p := newProgress()

	result, err := report.Run(ctx, report.Inputs{
		SchemaPath:  schemaPath,
		SummaryPath: layout.SummaryPath,
		Documents:   documents,
		Recommended: cfg.Schema.Recommended,
		Wrapper:     cfg.Documents.Wrapper,
		Identifier:  cfg.Metadata.Identifier,
		Workers:     cfg.Documents.Workers,
		SkipInvalid: cfg.Documents.SkipInvalid,
		Progress:    p,
	})
	if err != nil {
		zap.L().Error("report failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}
	if p != nil {
		p.Wait()
	}

	paths, err := result.Write(cfg.Output.Dir, format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStateOfData, err)
	}

	for _, id := range result.Skipped {
		fmt.Printf("skipped invalid document %s\n", id)
	}
	for _, outPath := range paths {
		fmt.Println(outPath)
	}

	return nil
}

// applyFlags overrides configuration with the flags set on the command line
// and returns the archive location.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) (string, error) {
	var tarLocation string
	var err error

	flags.Visit(func(f *pflag.Flag) {
		value := f.Value.String()
		switch f.Name {
		case FlagTar:
			tarLocation = value
		case FlagSchema:
			cfg.Schema.URL = value
		case FlagOut:
			cfg.Output.Dir = value
		case FlagFormat:
			cfg.Output.Format = value
		case FlagWorkers:
			var workers int
			workers, err = strconv.Atoi(value)
			if err == nil && workers < 1 {
				err = eris.Errorf("--%s must be positive, got %d", FlagWorkers, workers)
			}
			cfg.Documents.Workers = workers
		}
	})
	if err != nil {
		return "", eris.Wrap(err, "parsing flags")
	}

	if tarLocation == "" {
		return "", eris.Errorf("--%s is required", FlagTar)
	}
	if !corpus.IsURL(tarLocation) {
		tarLocation = filepath.Clean(tarLocation)
	}
	return tarLocation, nil
}

// newProgress returns progress bars sized to the terminal, or nil when stdout
// is not a terminal.
func newProgress() *mpb.Progress {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	width, _, err := term.GetSize(fd)
	if err != nil {
		return nil
	}
	return mpb.New(mpb.WithWidth(width))
}
