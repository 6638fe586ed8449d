// Package classifier decides the shape of a candidate folder: one album,
// a multi-disc album, or an artist's collection of albums.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/oracle"
)

// discTokens mark a subdir name as belonging to one disc of a set, after
// whitespace removal ("Disc 1" -> "disc1").
var discTokens = []string{
	"cd1", "cd2", "disc1", "disc2", "disk1", "disk2",
	"vol1", "vol2", "volume1", "volume2",
	"part1", "part2", "set1", "set2",
}

// Classify determines the folder shape. The oracle is consulted first; any
// answer outside the three known classes (including errors and timeouts)
// falls through to deterministic heuristics. The shape is never mutated.
func Classify(ctx context.Context, shape *domain.FolderShape, o oracle.Oracle) domain.Classification {
	if o != nil {
		if c, ok := askOracle(ctx, shape, o); ok {
			return c
		}
	}
	return Heuristic(shape)
}

func askOracle(ctx context.Context, shape *domain.FolderShape, o oracle.Oracle) (domain.Classification, bool) {
	out, err := o.Generate(ctx, classificationPrompt(shape))
	if err != nil {
		return domain.ClassUnknown, false
	}
	answer := strings.ToLower(strings.TrimSpace(out))
	for _, c := range []domain.Classification{
		domain.ClassSingleAlbum,
		domain.ClassMultiDiscAlbum,
		domain.ClassArtistCollection,
	} {
		if strings.Contains(answer, string(c)) {
			return c, true
		}
	}
	return domain.ClassUnknown, false
}

func classificationPrompt(shape *domain.FolderShape) string {
	var b strings.Builder
	b.WriteString("Classify this music folder as exactly one of: single_album, multi_disc_album, artist_collection.\n")
	b.WriteString("Answer with only the class name.\n\n")
	fmt.Fprintf(&b, "Folder: %s\n", shape.Name)
	fmt.Fprintf(&b, "Audio files directly inside: %d (total below: %d)\n", shape.DirectMusicFiles, shape.TotalMusicFiles)
	if len(shape.Subdirectories) > 0 {
		b.WriteString("Subdirectories:\n")
		for _, sd := range shape.Subdirectories {
			fmt.Fprintf(&b, "  - %s (%d audio files)\n", sd.Name, sd.MusicFiles)
		}
	}
	if shape.TreeText != "" {
		b.WriteString("\nTree:\n")
		b.WriteString(shape.TreeText)
	}
	return b.String()
}

// Heuristic classifies without the oracle. It is pure and deterministic.
func Heuristic(shape *domain.FolderShape) domain.Classification {
	if shape.DirectMusicFiles > 0 && len(shape.Subdirectories) <= 1 {
		return domain.ClassSingleAlbum
	}
	if hasDiscToken(shape.Subdirectories) {
		return domain.ClassMultiDiscAlbum
	}
	if isNumberedDiscSequence(shape.Subdirectories) {
		return domain.ClassMultiDiscAlbum
	}
	if len(shape.Subdirectories) >= 2 {
		return domain.ClassArtistCollection
	}
	return domain.ClassUnknown
}

func hasDiscToken(subdirs []domain.SubdirInfo) bool {
	for _, sd := range subdirs {
		name := strings.ToLower(strings.Join(strings.Fields(sd.Name), ""))
		for _, token := range discTokens {
			if strings.Contains(name, token) {
				return true
			}
		}
	}
	return false
}

// isNumberedDiscSequence recognizes disc sets named "1 - ...", "2 - ...":
// every subdir starts with a small integer and together they form the
// contiguous run 1..N. Year prefixes ("1994 - Album") stay excluded by the
// size cap.
func isNumberedDiscSequence(subdirs []domain.SubdirInfo) bool {
	const maxDiscs = 20
	if len(subdirs) < 2 || len(subdirs) > maxDiscs {
		return false
	}
	seen := make(map[int]bool, len(subdirs))
	for _, sd := range subdirs {
		n, ok := leadingInt(sd.Name)
		if !ok || n < 1 || n > maxDiscs || seen[n] {
			return false
		}
		seen[n] = true
	}
	for i := 1; i <= len(subdirs); i++ {
		if !seen[i] {
			return false
		}
	}
	return true
}

func leadingInt(name string) (int, bool) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}
