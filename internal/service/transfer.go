package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"refman/internal/logger"
	"refman/internal/model"
)

// ImportMode selects how an import treats the records already stored.
type ImportMode string

const (
	// ImportMerge keeps existing records and skips incoming ids that are already present.
	ImportMerge ImportMode = "merge"
	// ImportOverwrite discards the existing records first.
	ImportOverwrite ImportMode = "overwrite"
)

// ParseImportMode accepts "merge" or "overwrite" in any case. Empty means merge.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportMerge:
		return ImportMerge, nil
	case ImportOverwrite:
		return ImportOverwrite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidImportMode, s)
	}
}

// ImportResult reports how many source entries were inserted and how many were skipped.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

func (s *referenceService) Import(ctx context.Context, src io.Reader, mode ImportMode) (ImportResult, error) {
	if mode != ImportMerge && mode != ImportOverwrite {
		return ImportResult{}, fmt.Errorf("%w: %q", ErrInvalidImportMode, mode)
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Import", trace.WithAttributes(attribute.String("refman.mode", string(mode))))
	defer span.End()

	entries, err := model.DecodeReferences(src)
	if err != nil {
		return ImportResult{}, fail(span, err)
	}

	inserted, err := s.repo.ImportBulk(ctx, entries, mode == ImportMerge)
	if err != nil {
		return ImportResult{}, fail(span, err)
	}

	res := ImportResult{Inserted: inserted, Skipped: len(entries) - inserted}
	span.SetAttributes(attribute.Int("refman.inserted", res.Inserted), attribute.Int("refman.skipped", res.Skipped))
	logger.WithOperation(s.log, "import").Info("import finished",
		slog.String("mode", string(mode)),
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (s *referenceService) ImportFile(ctx context.Context, path string, mode ImportMode) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, wrapf(err, "open import file")
	}
	defer f.Close()
	return s.Import(ctx, f, mode)
}

func (s *referenceService) Export(ctx context.Context, w io.Writer) (int, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.Export")
	defer span.End()

	n, err := s.repo.ExportAll(ctx, w)
	if err != nil {
		return 0, fail(span, err)
	}
	span.SetAttributes(attribute.Int("refman.count", n))
	return n, nil
}

func (s *referenceService) ExportFile(ctx context.Context, path string) (n int, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, wrapf(err, "create export dir")
	}
	// The export lands in a sibling temp file and is renamed over path only
	// once complete, so a failed export leaves the previous file intact.
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, wrapf(err, "create export file")
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	n, err = s.Export(ctx, f)
	if err != nil {
		return 0, err
	}
	if err = f.Sync(); err != nil {
		return 0, wrapf(err, "sync export file")
	}
	if err = f.Close(); err != nil {
		return 0, wrapf(err, "close export file")
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return 0, wrapf(err, "chmod export file")
	}
	if err = os.Rename(tmp, path); err != nil {
		return 0, wrapf(err, "replace export file")
	}
	logger.WithOperation(s.log, "export").Info("export written", slog.String("path", path), slog.Int("count", n))
	return n, nil
}
