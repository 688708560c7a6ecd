package spreadsheet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	uploads []string
	err     error
}

func (m *recordingMirror) Upload(_ context.Context, localPath, objectName string) error {
	m.uploads = append(m.uploads, objectName)
	return m.err
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func TestBackupCopiesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "yxc.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook"), 0o644))

	backupDir := filepath.Join(dir, "backups")
	mirror := &recordingMirror{}
	b := NewBackupper(backupDir, 2, mirror, nullEntry())
	b.now = steppingClock(time.Date(2025, time.January, 2, 7, 0, 0, 0, time.UTC))

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := b.Backup(context.Background(), src)
		require.NoError(t, err)
		paths = append(paths, p)
	}

	assert.Equal(t, filepath.Join(backupDir, "yxc_backup_20250102_070000.xlsx"), paths[0])
	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	remaining, err := filepath.Glob(filepath.Join(backupDir, "*"))
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[1:], remaining)
	assert.Equal(t, []string{
		"yxc_backup_20250102_070000.xlsx",
		"yxc_backup_20250102_070001.xlsx",
		"yxc_backup_20250102_070002.xlsx",
	}, mirror.uploads)
}

func TestBackupMirrorFailureIsAWarning(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "yxc.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook"), 0o644))

	l, hook := test.NewNullLogger()
	b := NewBackupper(dir, 0, &recordingMirror{err: errors.New("bucket gone")}, logrus.NewEntry(l))

	p, err := b.Backup(context.Background(), src)
	require.NoError(t, err)
	assert.FileExists(t, p)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBackupMissingSource(t *testing.T) {
	b := NewBackupper(t.TempDir(), 0, nil, nullEntry())
	_, err := b.Backup(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
