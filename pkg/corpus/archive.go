package corpus

import (
	"archive/tar"
	"bufio"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Archive members produced by the data getter.
const (
	SummaryMember   = "data/data_all.json"
	DocumentsPrefix = "data/json_all/"

	SummaryFile  = "data_all.json"
	DocumentsDir = "json_all"
)

// Layout locates the extracted corpus.
type Layout struct {
	SummaryPath  string
	DocumentsDir string
}

// ExtractArchive extracts the corpus summary and the record documents from a
// tar archive, optionally gzip-compressed, into destDir.
func ExtractArchive(archivePath, destDir string) (*Layout, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, eris.Wrap(err, "archive: open")
	}
	defer f.Close() //nolint:errcheck

	layout := &Layout{
		SummaryPath:  filepath.Join(destDir, SummaryFile),
		DocumentsDir: filepath.Join(destDir, DocumentsDir),
	}
	if err := os.MkdirAll(layout.DocumentsDir, os.ModePerm); err != nil {
		return nil, eris.Wrap(err, "archive: create documents directory")
	}

	r, err := decompress(f)
	if err != nil {
		return nil, err
	}

	tr := tar.NewReader(r)
	foundSummary := false
	documents := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "archive: read entry")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		switch {
		case name == SummaryMember:
			if err := writeEntry(tr, layout.SummaryPath); err != nil {
				return nil, err
			}
			foundSummary = true
		case strings.HasPrefix(name, DocumentsPrefix):
			rel := strings.TrimPrefix(name, DocumentsPrefix)
			if !filepath.IsLocal(rel) {
				return nil, eris.Errorf("archive: illegal file path %q", header.Name)
			}
			if err := writeEntry(tr, filepath.Join(layout.DocumentsDir, rel)); err != nil {
				return nil, err
			}
			documents++
		}
	}

	if !foundSummary {
		return nil, eris.Errorf("archive: %s not found in %q", SummaryMember, archivePath)
	}

	zap.L().Info("extracted archive",
		zap.String("archive", archivePath),
		zap.Int("documents", documents),
	)
	return layout, nil
}

// decompress transparently handles gzip-compressed archives.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "archive: read header")
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, eris.Wrap(err, "archive: open gzip stream")
		}
		return gz, nil
	}
	return br, nil
}

func writeEntry(r io.Reader, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), os.ModePerm); err != nil {
		return eris.Wrap(err, "archive: create directory")
	}

	out, err := os.Create(outPath)
	if err != nil {
		return eris.Wrapf(err, "archive: create %q", outPath)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "archive: write %q", outPath)
	}
	return eris.Wrapf(out.Close(), "archive: close %q", outPath)
}
