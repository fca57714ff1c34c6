// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Archive entry names.
const (
	manifestName = "backup-manifest.json"
	databasePfx  = "database"
	uploadsPfx   = "uploads"
	themesPfx    = "themes"
)

// archiveWriters holds the writer chain file -> gzip -> tar.
type archiveWriters struct {
	tw      *tar.Writer
	closers []io.Closer
}

// Close closes the writers in reverse order and returns the first error.
func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//nolint:gosec // G304: filePath is built from the backup directory
func setupArchiveWriters(filePath string) (*archiveWriters, error) {
	out, err := os.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		out.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)
	return &archiveWriters{tw: tw, closers: []io.Closer{out, gz, tw}}, nil
}

// writeArchive exports the database, adds the file trees a full backup
// carries and finishes with the manifest.
func (m *Manager) writeArchive(ctx context.Context, filePath string, manifest *Manifest) (err error) {
	tmp, err := os.MkdirTemp(m.opts.Dir, ".export-")
	if err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			logging.Warn().Err(rmErr).Str("dir", tmp).Msg("Failed to remove export directory")
		}
	}()

	files, err := m.db.ExportTables(ctx, tmp)
	if err != nil {
		return err
	}

	aw, err := setupArchiveWriters(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := aw.Close(); err == nil {
			err = closeErr
		}
	}()

	for _, f := range files {
		name := filepath.Base(f)
		entry, err := addFileToArchive(aw.tw, f, path.Join(databasePfx, name))
		if err != nil {
			return err
		}
		manifest.Tables = append(manifest.Tables, strings.TrimSuffix(name, filepath.Ext(name)))
		manifest.Files = append(manifest.Files, entry)
	}

	if manifest.Type == TypeFull {
		for _, tree := range []struct{ dir, prefix string }{
			{m.opts.UploadsDir, uploadsPfx},
			{m.opts.ThemesDir, themesPfx},
		} {
			entries, err := m.addDirToArchive(ctx, aw.tw, tree.dir, tree.prefix)
			if err != nil {
				return err
			}
			manifest.Files = append(manifest.Files, entries...)
		}
	}

	return addManifestToArchive(aw.tw, manifest)
}

// addDirToArchive adds every regular file under dir. A missing dir adds
// nothing. The backup directory itself is never archived.
func (m *Manager) addDirToArchive(ctx context.Context, tw *tar.Writer, dir, prefix string) ([]Entry, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	backupDir, _ := filepath.Abs(m.opts.Dir)

	var entries []Entry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(p); abs == backupDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		entry, err := addFileToArchive(tw, p, path.Join(prefix, filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return entries, fmt.Errorf("failed to archive %s: %w", prefix, err)
	}
	return entries, nil
}

func addManifestToArchive(tw *tar.Writer, manifest *Manifest) error {
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup manifest: %w", err)
	}
	header := &tar.Header{
		Name:    manifestName,
		Size:    int64(len(raw)),
		Mode:    0o640,
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(raw); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// addFileToArchive copies srcPath into the archive as destPath, hashing it
// on the way.
//
//nolint:gosec // G304: srcPath comes from a directory walk or the export dir
func addFileToArchive(tw *tar.Writer, srcPath, destPath string) (Entry, error) {
	file, err := os.Open(srcPath)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return Entry{}, fmt.Errorf("failed to create tar header for %s: %w", srcPath, err)
	}
	header.Name = destPath

	if err := tw.WriteHeader(header); err != nil {
		return Entry{}, fmt.Errorf("failed to write tar header for %s: %w", srcPath, err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, hasher), file); err != nil {
		return Entry{}, fmt.Errorf("failed to copy %s to archive: %w", srcPath, err)
	}
	return Entry{Path: destPath, Size: info.Size(), Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// calculateFileChecksum returns the hex SHA-256 of a file.
//
//nolint:gosec // G304: filePath is inside the backup or extraction directory
func calculateFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
