package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

type Driver string

const (
	DriverLocal Driver = "local"
	DriverS3    Driver = "s3"
)

var ErrInvalidName = errors.New("invalid object name")

// IStorage persists annotated images and returns the URL they are served from.
type IStorage interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Sweep removes objects older than olderThan. Zero removes everything.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

type localStorage struct {
	dir       string
	urlPrefix string
}

// NewLocal stores files in dir and builds URLs as urlPrefix/name.
func NewLocal(dir, urlPrefix string) (IStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &localStorage{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// URLPrefix maps outputDir to its public path below staticDir mounted at mount.
func URLPrefix(staticDir, outputDir, mount string) (string, error) {
	rel, err := filepath.Rel(staticDir, outputDir)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output dir %q is not below static dir %q", outputDir, staticDir)
	}
	return path.Join(mount, filepath.ToSlash(rel)), nil
}

func (s *localStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	return s.urlPrefix + "/" + name, nil
}

func (s *localStorage) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if olderThan > 0 && info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}
