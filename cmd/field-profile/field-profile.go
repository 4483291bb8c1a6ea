package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/willbeason/state-of-the-data/internal/config"
	"github.com/willbeason/state-of-the-data/pkg/corpus"
	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
	"github.com/willbeason/state-of-the-data/pkg/profile"
)

const FlagOut = "out"

func main() {
	cmd.Flags().String(FlagOut, "", "output file path (default: stdout)")

	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "field-profile ARCHIVE|DIR",
	Short:   "Profiles the types and values of every field in a corpus of grant documents",
	Args:    cobra.ExactArgs(1),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrFieldProfile = errors.New("profiling fields")

func runE(cmd *cobra.Command, args []string) error {
	inPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFieldProfile, err)
	}
	err = config.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFieldProfile, err)
	}
	defer zap.L().Sync() //nolint:errcheck

	docsDir, cleanup, err := documentsDir(inPath)
	if err != nil {
		return err
	}
	defer cleanup()

	documents, err := corpus.Documents(docsDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFieldProfile, err)
	}

	profiler := profile.NewProfiler(cfg.Documents.Wrapper)
	err = profileDocuments(profiler, documents, cfg.Documents.SkipInvalid)
	if err != nil {
		return err
	}

	outPath, err := cmd.Flags().GetString(FlagOut)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		outFile, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("%w: creating %q: %w", ErrFieldProfile, outPath, err)
		}
		defer outFile.Close() //nolint:errcheck
		out = outFile
	}

	_, err = profiler.WriteTo(out)
	if err != nil {
		return fmt.Errorf("%w: writing profile: %w", ErrFieldProfile, err)
	}
	return nil
}

// documentsDir returns the directory of record documents, extracting inPath
// first if it is an archive.
func documentsDir(inPath string) (string, func(), error) {
	noop := func() {}

	info, err := os.Stat(inPath)
	if err != nil {
		return "", noop, fmt.Errorf("%w: stat %q: %w", ErrFieldProfile, inPath, err)
	}
	if info.IsDir() {
		return inPath, noop, nil
	}

	workDir, err := os.MkdirTemp("", "field-profile-*")
	if err != nil {
		return "", noop, fmt.Errorf("%w: creating working directory: %w", ErrFieldProfile, err)
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	layout, err := corpus.ExtractArchive(inPath, workDir)
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("%w: %w", ErrFieldProfile, err)
	}
	return layout.DocumentsDir, cleanup, nil
}

func profileDocuments(profiler *profile.Profiler, documents []corpus.Document, skipInvalid bool) error {
	var bar *mpb.Bar
	var p *mpb.Progress
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		width, _, err := term.GetSize(fd)
		if err != nil {
			return fmt.Errorf("%w: getting terminal size: %w", ErrFieldProfile, err)
		}
		p = mpb.New(mpb.WithWidth(width), mpb.WithOutput(os.Stderr))
		bar = p.AddBar(int64(len(documents)),
			mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
			mpb.PrependDecorators(decor.Name("documents")),
			mpb.PrependDecorators(decor.CountersNoUnit("%d/%d", decor.WCSyncSpace)),
			mpb.BarRemoveOnComplete())
	}

	start := time.Now()
	for _, doc := range documents {
		err := profileDocument(profiler, doc, skipInvalid)
		if err != nil {
			return err
		}
		if bar != nil {
			bar.IncrBy(1, time.Since(start))
		}
	}
	if p != nil {
		p.Wait()
	}

	zap.L().Info("profiled documents",
		zap.Int("documents", len(documents)),
		zap.Int("fields", len(profiler.Paths())),
	)
	return nil
}

// profileDocument adds one document to the profile. Values read before an
// invalid document fails to parse stay in the profile.
func profileDocument(profiler *profile.Profiler, doc corpus.Document, skipInvalid bool) error {
	f, err := os.Open(doc.Path)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrFieldProfile, doc.Path, err)
	}
	defer f.Close() //nolint:errcheck

	err = profiler.Profile(f)
	if skipInvalid && errors.Is(err, fieldcount.ErrParse) {
		zap.L().Warn("skipping invalid document", zap.String("identifier", doc.Identifier), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrFieldProfile, doc.Identifier, err)
	}
	return nil
}
