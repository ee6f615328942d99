package stage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superfly/fsm"

	"github.com/drc-tools/drcflash/pkg/update"
)

func newTestStager(t *testing.T, f *fixture, source string) *Stager {
	t.Helper()
	ctx := context.Background()

	manager, err := fsm.New(fsm.Config{DBPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Shutdown(10 * time.Second) })

	s, err := NewStager(ctx, manager, f.machine, f.repo, f.sourceDir, source)
	require.NoError(t, err)
	return s
}

func TestStagerSourceFor(t *testing.T) {
	s := &Stager{sourceDir: "/srv/images"}
	assert.Equal(t, "/srv/images/lang.bin", s.SourceFor(update.Language))
	assert.Equal(t, "/srv/images/firmware.bin", s.SourceFor(update.Firmware))

	s.source = "s3://drc-images/lang-eu.bin"
	assert.Equal(t, "s3://drc-images/lang-eu.bin", s.SourceFor(update.Language))

	s.source = "/media/sd/firmware-backup.bin"
	assert.Equal(t, "/media/sd/firmware-backup.bin", s.SourceFor(update.Firmware))
}

func TestStagerStage(t *testing.T) {
	f := newFixture(t)
	f.writeSource(t, "lang.bin", []byte("language pack"))
	s := newTestStager(t, f, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path, err := s.Stage(ctx, "run-1", update.Language)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "language pack", string(got))
}

func TestStagerClassifiesMissingSource(t *testing.T) {
	f := newFixture(t)
	s := newTestStager(t, f, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.Stage(ctx, "run-2", update.Language)
	require.Error(t, err)
	assert.True(t, errors.Is(err, update.ErrImageUnavailable), "got %v", err)
}
