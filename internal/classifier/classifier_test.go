package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/oracle"
)

func shapeWithSubdirs(direct int, names ...string) *domain.FolderShape {
	subdirs := make([]domain.SubdirInfo, 0, len(names))
	for _, n := range names {
		subdirs = append(subdirs, domain.SubdirInfo{Name: n, MusicFiles: 10})
	}
	return &domain.FolderShape{
		Name:             "Test Folder",
		DirectMusicFiles: direct,
		TotalMusicFiles:  direct + 10*len(names),
		Subdirectories:   subdirs,
	}
}

func TestHeuristicSingleAlbum(t *testing.T) {
	assert.Equal(t, domain.ClassSingleAlbum, Heuristic(shapeWithSubdirs(12)))
	// One stray subdir does not change the verdict.
	assert.Equal(t, domain.ClassSingleAlbum, Heuristic(shapeWithSubdirs(12, "Bonus")))
}

func TestHeuristicDiscTokens(t *testing.T) {
	for _, names := range [][]string{
		{"CD1", "CD2"},
		{"Disc 1", "Disc 2"},
		{"disk1", "disk2"},
		{"Vol 1", "Vol 2"},
	} {
		assert.Equal(t, domain.ClassMultiDiscAlbum, Heuristic(shapeWithSubdirs(0, names...)), "%v", names)
	}
}

func TestHeuristicNumberedDiscSequence(t *testing.T) {
	// "1 - Overture", "2 - ..." style disc sets.
	assert.Equal(t, domain.ClassMultiDiscAlbum,
		Heuristic(shapeWithSubdirs(0, "1 - First Set", "2 - Second Set", "3 - Third Set", "4 - Encore")))

	// Year prefixes look numeric but exceed the disc cap, so discographies
	// stay collections.
	assert.Equal(t, domain.ClassArtistCollection,
		Heuristic(shapeWithSubdirs(0, "1994 - Debut", "1996 - Follow-up")))

	// A gap in the run breaks the sequence.
	assert.Equal(t, domain.ClassArtistCollection,
		Heuristic(shapeWithSubdirs(0, "1 - First", "3 - Third")))
}

func TestHeuristicArtistCollection(t *testing.T) {
	assert.Equal(t, domain.ClassArtistCollection,
		Heuristic(shapeWithSubdirs(0, "Debut Album", "Sophomore Slump", "Greatest Hits")))
}

func TestHeuristicUnknown(t *testing.T) {
	assert.Equal(t, domain.ClassUnknown, Heuristic(shapeWithSubdirs(0)))
	assert.Equal(t, domain.ClassUnknown, Heuristic(shapeWithSubdirs(0, "Artwork Only")))
}

func TestClassifyPrefersOracle(t *testing.T) {
	shape := shapeWithSubdirs(0, "Debut Album", "Greatest Hits")

	o := oracle.Func(func(ctx context.Context, prompt string) (string, error) {
		return "multi_disc_album", nil
	})
	assert.Equal(t, domain.ClassMultiDiscAlbum, Classify(context.Background(), shape, o))
}

func TestClassifyFallsBackOnOracleError(t *testing.T) {
	shape := shapeWithSubdirs(0, "CD1", "CD2")

	o := oracle.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("timeout")
	})
	assert.Equal(t, domain.ClassMultiDiscAlbum, Classify(context.Background(), shape, o))
}

func TestClassifyFallsBackOnGibberish(t *testing.T) {
	shape := shapeWithSubdirs(8)

	o := oracle.Func(func(ctx context.Context, prompt string) (string, error) {
		return "I am not sure what this is.", nil
	})
	assert.Equal(t, domain.ClassSingleAlbum, Classify(context.Background(), shape, o))
}

func TestClassifyWithoutOracle(t *testing.T) {
	shape := shapeWithSubdirs(8)
	assert.Equal(t, domain.ClassSingleAlbum, Classify(context.Background(), shape, nil))
}

func TestClassificationPromptMentionsSubdirs(t *testing.T) {
	shape := shapeWithSubdirs(0, "CD1", "CD2")
	prompt := classificationPrompt(shape)
	assert.Contains(t, prompt, "CD1")
	assert.Contains(t, prompt, fmt.Sprintf("total below: %d", shape.TotalMusicFiles))
}
