package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidgr87/whats-that-sound/internal/logger"
)

func TestIsAudioPath(t *testing.T) {
	assert.True(t, IsAudioPath("track.mp3"))
	assert.True(t, IsAudioPath("TRACK.FLAC"))
	assert.True(t, IsAudioPath("song.M4a"))
	assert.False(t, IsAudioPath("cover.jpg"))
	assert.False(t, IsAudioPath("notes.txt"))
	assert.False(t, IsAudioPath("mp3"))
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0o644))

	r := NewReader(logger.Default())
	_, err := r.ReadFile(path)
	assert.Error(t, err)
}

func TestAggregateFolderToleratesUnreadableTags(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"01.mp3", "02.mp3", filepath.Join("CD2", "01.flac")} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "cover.jpg"), []byte("x"), 0o644))

	r := NewReader(logger.Default())
	agg, err := r.AggregateFolder(root)
	require.NoError(t, err)

	assert.Equal(t, 0, agg.FilesRead)
	assert.Equal(t, 3, agg.FilesFailed)
	assert.Equal(t, 2, agg.ExtensionCounts[".mp3"])
	assert.Equal(t, 1, agg.ExtensionCounts[".flac"])
	assert.Empty(t, agg.Artist)
}

func TestDominant(t *testing.T) {
	votes := map[string]int{"Weezer": 5, "weezer": 2, "Various": 1}
	assert.Equal(t, "Weezer", dominant(votes))

	assert.Empty(t, dominant(map[string]int{}))

	// Ties break lexically for determinism.
	assert.Equal(t, "A", dominant(map[string]int{"B": 3, "A": 3}))
}

func TestSampleLine(t *testing.T) {
	line := sampleLine(&FileTags{
		Path: "/x/03 song.mp3", Track: 3, Title: "El Scorcho",
		Artist: "Weezer", Album: "Pinkerton", Year: 1996,
	})
	assert.Equal(t, "03. El Scorcho - Weezer [Pinkerton] (1996)", line)

	// Falls back to the file name when untitled.
	line = sampleLine(&FileTags{Path: "/x/unknown.mp3"})
	assert.Equal(t, "unknown.mp3", line)
}
