package arbordb

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Backup streams a zstd-compressed, transactionally consistent copy of
// the whole store to w and returns the uncompressed size. Writers are
// not blocked while the backup runs.
func (s *Store) Backup(w io.Writer) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}

	n, err := s.engine.Snapshot(zw)
	if err != nil {
		_ = zw.Close()
		s.logger.LogBackup(context.Background(), n, err)
		return n, err
	}
	if err := zw.Close(); err != nil {
		err = fmt.Errorf("backup: flush: %w", err)
		s.logger.LogBackup(context.Background(), n, err)
		return n, err
	}
	s.logger.LogBackup(context.Background(), n, nil)
	return n, nil
}

// Restore writes a backup stream produced by Backup to a new store file
// at path. The file must not already exist; open the restored store
// with Open afterwards.
func Restore(r io.Reader, path string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer zr.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if _, err := io.Copy(f, zr); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("restore: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}
