package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidgr87/whats-that-sound/internal/domain"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	p := &domain.Proposal{Artist: "Weezer", Album: "Pinkerton", Year: "1996", ReleaseType: "Album"}
	require.NoError(t, Write(dir, p))
	assert.True(t, Exists(dir))

	mark, err := Read(dir)
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.False(t, mark.IsCollection())
	assert.Equal(t, filepath.Base(dir), mark.FolderName)
	require.NotNil(t, mark.Proposal)
	assert.Equal(t, "Pinkerton", mark.Proposal.Album)

	// OrganizedAt is a parseable UTC timestamp.
	ts, err := time.Parse(time.RFC3339, mark.OrganizedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestReadMissingMark(t *testing.T) {
	mark, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, mark)
}

func TestReadCorruptMark(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".whats-that-sound"), []byte("{broken"), 0o644))
	_, err := Read(dir)
	assert.Error(t, err)
}

func TestWriteCollection(t *testing.T) {
	dir := t.TempDir()
	albums := []domain.Proposal{
		{Artist: "Weezer", Album: "Pinkerton", Year: "1996", ReleaseType: "Album"},
		{Artist: "Weezer", Album: "Maladroit", Year: "2002", ReleaseType: "Album"},
	}
	require.NoError(t, WriteCollection(dir, albums))

	mark, err := Read(dir)
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.True(t, mark.IsCollection())
	assert.Nil(t, mark.Proposal)
	assert.Len(t, mark.Albums, 2)
}
