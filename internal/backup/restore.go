// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
)

// maxFileSize caps a single extracted entry.
const maxFileSize = 1 << 30

// ErrSchemaMismatch is returned when a backup was taken at another schema
// version than the running database.
var ErrSchemaMismatch = errors.New("backup schema version does not match the database")

// Restore replaces the database contents with the tables in a backup.
// backup_history is kept so the record of archives survives.
func (m *Manager) Restore(ctx context.Context, name string, opts RestoreOptions) (*RestoreResult, error) {
	p, err := m.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBackupNotFound
		}
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	if !m.run.TryLock() {
		return nil, ErrInProgress
	}
	defer m.run.Unlock()

	start := m.now()
	res := &RestoreResult{Backup: name, Tables: []string{}}

	recorded, err := m.verifyArchiveChecksum(ctx, name, p)
	if err != nil {
		return res, err
	}
	if !recorded {
		res.Warnings = append(res.Warnings, "no recorded checksum; verified file checksums only")
	}

	tmp, err := os.MkdirTemp(m.opts.Dir, ".restore-")
	if err != nil {
		return res, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			logging.Warn().Err(rmErr).Str("dir", tmp).Msg("Failed to remove extraction directory")
		}
	}()

	manifest, err := extractArchive(p, tmp)
	if err != nil {
		return res, err
	}
	if err := verifyEntries(tmp, manifest); err != nil {
		return res, err
	}
	res.Type, res.SourceCMSVersion = manifest.Type, manifest.CMSVersion

	current, err := m.db.SchemaVersion(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read schema version: %w", err)
	}
	if manifest.SchemaVersion != current {
		return res, fmt.Errorf("%w: backup %d, database %d", ErrSchemaMismatch, manifest.SchemaVersion, current)
	}

	if !opts.SkipSafetyBackup {
		safety, err := m.createLocked(ctx, TypeDatabase, TriggerPreRestore)
		if err != nil {
			return res, fmt.Errorf("pre-restore backup failed: %w", err)
		}
		res.SafetyBackup = safety.Filename
	}

	tables, err := m.db.ImportTables(ctx, filepath.Join(tmp, databasePfx), "backup_history")
	res.Tables = append(res.Tables, tables...)
	if err != nil {
		return res, fmt.Errorf("restore failed after %d tables: %w", len(tables), err)
	}

	if opts.Files && manifest.Type == TypeFull {
		for _, tree := range []struct{ prefix, dst string }{
			{uploadsPfx, m.opts.UploadsDir},
			{themesPfx, m.opts.ThemesDir},
		} {
			n, err := restoreEntries(tmp, manifest, tree.prefix, tree.dst)
			res.FilesRestored += n
			if err != nil {
				res.Warnings = append(res.Warnings, err.Error())
			}
		}
	}

	res.Duration = time.Since(start)
	logging.Ctx(ctx).Info().
		Str("backup", name).
		Int("tables", len(res.Tables)).
		Int("files", res.FilesRestored).
		Dur("duration", res.Duration).
		Msg("Backup restored")
	m.logActivity(ctx, logging.UserIDFromContext(ctx), "backup_restored", 0, name)
	if m.hooks != nil {
		m.hooks.DoAction(ctx, hooks.BackupRestored, res)
	}
	return res, nil
}

// Verify checks an archive against its recorded checksum and the per-file
// checksums in its manifest without restoring anything.
func (m *Manager) Verify(ctx context.Context, name string) (*Manifest, error) {
	p, err := m.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if _, err := m.verifyArchiveChecksum(ctx, name, p); err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(m.opts.Dir, ".verify-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck // Best effort cleanup

	manifest, err := extractArchive(p, tmp)
	if err != nil {
		return nil, err
	}
	return manifest, verifyEntries(tmp, manifest)
}

// verifyArchiveChecksum compares the archive with its backup_history
// checksum. It reports false when no checksum was recorded.
func (m *Manager) verifyArchiveChecksum(ctx context.Context, name, p string) (bool, error) {
	want, ok, err := m.completedChecksum(ctx, name)
	if err != nil {
		return false, err
	}
	got, err := calculateFileChecksum(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, ErrBackupNotFound
		}
		return false, fmt.Errorf("failed to checksum backup: %w", err)
	}
	if ok && got != want {
		return true, fmt.Errorf("%w: %s", ErrChecksum, name)
	}
	return ok, nil
}

// openArchiveReader opens a .tar.gz archive. The caller closes the returned
// closers in reverse order.
//
//nolint:gosec // G304: filePath is resolved inside the backup directory
func openArchiveReader(filePath string) (*tar.Reader, []io.Closer, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return tar.NewReader(gz), []io.Closer{file, gz}, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close() //nolint:errcheck // Best effort cleanup
	}
}

// extractArchive unpacks every regular file into dest and returns the
// decoded manifest.
func extractArchive(filePath, dest string) (*Manifest, error) {
	tr, closers, err := openArchiveReader(filePath)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)

	var manifest *Manifest
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxFileSize {
			return nil, fmt.Errorf("file too large: %s (%d bytes, max %d)", header.Name, header.Size, maxFileSize)
		}

		if header.Name == manifestName {
			raw, err := io.ReadAll(io.LimitReader(tr, header.Size))
			if err != nil {
				return nil, fmt.Errorf("failed to read manifest: %w", err)
			}
			manifest = &Manifest{}
			if err := json.Unmarshal(raw, manifest); err != nil {
				return nil, fmt.Errorf("invalid backup manifest: %w", err)
			}
			continue
		}

		destPath, err := validateAndBuildDestPath(dest, header.Name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", header.Name, err)
		}
		if err := extractFile(tr, destPath, header.Size); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", header.Name, err)
		}
	}
	if manifest == nil {
		return nil, errors.New("backup manifest missing")
	}
	return manifest, nil
}

// validateAndBuildDestPath rejects entries that would land outside dir.
func validateAndBuildDestPath(dir, name string) (string, error) {
	destPath := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(destPath, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return destPath, nil
}

//nolint:gosec // G304: destPath passed validateAndBuildDestPath
func extractFile(r io.Reader, destPath string, size int64) error {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(r, size+1))
	closeErr := out.Close()
	if err == nil && n > size {
		err = fmt.Errorf("entry larger than its header: %d > %d", n, size)
	}
	if err != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return closeErr
}

// verifyEntries checks every manifest entry against the extracted file.
func verifyEntries(dir string, manifest *Manifest) error {
	for _, e := range manifest.Files {
		p, err := validateAndBuildDestPath(dir, e.Path)
		if err != nil {
			return err
		}
		sum, err := calculateFileChecksum(p)
		if err != nil {
			return fmt.Errorf("backup entry %s unreadable: %w", e.Path, err)
		}
		if sum != e.Checksum {
			return fmt.Errorf("%w: %s", ErrChecksum, e.Path)
		}
	}
	return nil
}

// restoreEntries copies the manifest entries under prefix into dst.
func restoreEntries(src string, manifest *Manifest, prefix, dst string) (int, error) {
	if dst == "" {
		return 0, nil
	}
	n := 0
	for _, e := range manifest.Files {
		rel, ok := strings.CutPrefix(e.Path, prefix+"/")
		if !ok {
			continue
		}
		from := filepath.Join(src, filepath.FromSlash(e.Path))
		to, err := validateAndBuildDestPath(dst, rel)
		if err != nil {
			return n, err
		}
		if err := copyFile(from, to); err != nil {
			return n, fmt.Errorf("failed to restore %s: %w", e.Path, err)
		}
		n++
	}
	return n, nil
}

//nolint:gosec // G304: both paths are validated by the caller
func copyFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Read-only

	out, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // Already failing
		return err
	}
	return out.Close()
}
