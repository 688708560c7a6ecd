package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const backupStampLayout = "20060102_150405"

// Mirror receives a copy of every backup, e.g. a cloud bucket.
type Mirror interface {
	Upload(ctx context.Context, localPath, objectName string) error
}

// Backupper copies the workbook into a backup directory before each mutating pass.
type Backupper struct {
	dir    string
	keep   int
	mirror Mirror
	logger *logrus.Entry
	now    func() time.Time
}

// NewBackupper keeps the newest keep copies in dir (0 keeps all). mirror may be nil.
func NewBackupper(dir string, keep int, mirror Mirror, logger *logrus.Entry) *Backupper {
	return &Backupper{dir: dir, keep: keep, mirror: mirror, logger: logger, now: time.Now}
}

// Backup writes <dir>/<base>_backup_<YYYYmmdd_HHMMSS><ext> and returns its path.
func (b *Backupper) Backup(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base, ext := splitName(path)
	dst := filepath.Join(b.dir, fmt.Sprintf("%s_backup_%s%s", base, b.now().Format(backupStampLayout), ext))
	if err := copyFile(path, dst); err != nil {
		return "", err
	}
	b.logger.WithField("backup", dst).Info("Backup created")

	if err := b.prune(base, ext); err != nil {
		b.logger.WithError(err).Warn("Failed to prune old backups")
	}

	if b.mirror != nil {
		if err := b.mirror.Upload(ctx, dst, filepath.Base(dst)); err != nil {
			b.logger.WithError(err).WithField("backup", dst).Warn("Failed to mirror backup")
		}
	}
	return dst, nil
}

// prune removes the oldest backups of base beyond the keep limit. The timestamp layout sorts lexically.
func (b *Backupper) prune(base, ext string) error {
	if b.keep <= 0 {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(b.dir, base+"_backup_*"+ext))
	if err != nil {
		return err
	}
	if len(matches) <= b.keep {
		return nil
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-b.keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
		b.logger.WithField("backup", old).Debug("Old backup removed")
	}
	return nil
}

func splitName(path string) (string, string) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
