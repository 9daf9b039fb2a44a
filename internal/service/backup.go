package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"refman/internal/logger"
	"refman/internal/storage"
)

const (
	backupPrefix  = "backups/"
	countMetaKey  = "reference-count"
	amzMetaPrefix = "x-amz-meta-"
)

var (
	ErrBackupsDisabled  = errors.New("backups are not configured")
	ErrInvalidBackupKey = errors.New("backup key must be a non-empty name without slashes")
	ErrBackupNotFound   = errors.New("backup not found")
)

// BackupInfo describes one stored export.
type BackupInfo struct {
	Key       string    `json:"key"`
	Object    string    `json:"object"`
	Size      int64     `json:"size"`
	Count     int       `json:"count,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func backupObject(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidBackupKey, key)
	}
	return backupPrefix + key + ".json", nil
}

func (s *referenceService) Backup(ctx context.Context, key string) (*BackupInfo, error) {
	if s.store == nil {
		return nil, ErrBackupsDisabled
	}
	object, err := backupObject(key)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Backup", trace.WithAttributes(attribute.String("refman.backup", object)))
	defer span.End()

	var buf bytes.Buffer
	n, err := s.repo.ExportAll(ctx, &buf)
	if err != nil {
		return nil, fail(span, err)
	}

	info, err := s.store.Put(ctx, object, &buf, storage.PutObjectOptions{
		Size:        int64(buf.Len()),
		ContentType: "application/json",
		Metadata:    map[string]string{countMetaKey: strconv.Itoa(n)},
	})
	if err != nil {
		return nil, fail(span, wrapf(err, "upload backup"))
	}

	logger.WithOperation(s.log, "backup").Info("backup stored", slog.String("object", info.Key), slog.Int("count", n))
	return &BackupInfo{Key: strings.TrimSpace(key), Object: info.Key, Size: info.Size, Count: n, CreatedAt: info.LastModified}, nil
}

func (s *referenceService) Restore(ctx context.Context, key string, mode ImportMode) (ImportResult, error) {
	if s.store == nil {
		return ImportResult{}, ErrBackupsDisabled
	}
	object, err := backupObject(key)
	if err != nil {
		return ImportResult{}, err
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Restore", trace.WithAttributes(attribute.String("refman.backup", object)))
	defer span.End()

	rc, _, err := s.store.Get(ctx, object)
	if errors.Is(err, storage.ErrNotFound) {
		return ImportResult{}, fail(span, fmt.Errorf("%w: %s", ErrBackupNotFound, key))
	}
	if err != nil {
		return ImportResult{}, fail(span, wrapf(err, "download backup"))
	}
	defer rc.Close()

	return s.Import(ctx, rc, mode)
}

func (s *referenceService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if s.store == nil {
		return nil, ErrBackupsDisabled
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.ListBackups")
	defer span.End()

	objs, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fail(span, err)
	}
	out := make([]BackupInfo, 0, len(objs))
	for _, o := range objs {
		name := path.Base(o.Key)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, BackupInfo{
			Key:       strings.TrimSuffix(name, ".json"),
			Object:    o.Key,
			Size:      o.Size,
			Count:     metadataInt(o.Metadata, countMetaKey),
			CreatedAt: o.LastModified,
		})
	}
	return out, nil
}

// metadataInt reads an integer user-metadata value. Stores canonicalise
// header names and listings may keep the x-amz-meta- prefix, so the lookup
// ignores both. Missing or malformed values read as 0.
func metadataInt(md map[string]string, key string) int {
	for k, v := range md {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, amzMetaPrefix)
		if k != key {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func (s *referenceService) DeleteBackup(ctx context.Context, key string) error {
	if s.store == nil {
		return ErrBackupsDisabled
	}
	object, err := backupObject(key)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.DeleteBackup", trace.WithAttributes(attribute.String("refman.backup", object)))
	defer span.End()

	if err := s.store.Delete(ctx, object); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(span, fmt.Errorf("%w: %s", ErrBackupNotFound, key))
		}
		return fail(span, wrapf(err, "delete backup"))
	}
	return nil
}
