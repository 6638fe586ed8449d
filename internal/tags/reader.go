// Package tags reads embedded audio metadata and aggregates it per folder.
package tags

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"

	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
)

// IsAudioPath reports whether the file name carries a supported audio
// extension. Matching is case-insensitive on the suffix.
func IsAudioPath(name string) bool {
	return constants.SupportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// FileTags is the fixed per-file record extracted from embedded metadata.
type FileTags struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Year        int
	Track       int
	Disc        int
	Duration    float64 // seconds; currently FLAC only
}

// Reader extracts per-file tags and per-folder statistics.
type Reader struct {
	log *logger.Logger
}

func NewReader(log *logger.Logger) *Reader {
	return &Reader{log: log.WithComponent("tags")}
}

// ReadFile reads the embedded tags of one audio file.
func (r *Reader) ReadFile(path string) (*FileTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	trackNum, _ := meta.Track()
	discNum, _ := meta.Disc()

	albumArtist := meta.AlbumArtist()
	if albumArtist == "" {
		albumArtist = meta.Artist()
	}

	ft := &FileTags{
		Path:        path,
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		AlbumArtist: albumArtist,
		Album:       meta.Album(),
		Genre:       meta.Genre(),
		Year:        meta.Year(),
		Track:       trackNum,
		Disc:        discNum,
	}

	if strings.EqualFold(filepath.Ext(path), ".flac") {
		if d, err := flacDuration(path); err == nil {
			ft.Duration = d
		}
	}

	return ft, nil
}

// flacDuration computes the track length from the STREAMINFO block without
// decoding audio frames.
func flacDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	stream, err := flac.ParseMetadata(f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse flac metadata: %w", err)
	}
	info, err := stream.GetStreamInfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read streaminfo: %w", err)
	}
	if info.SampleRate == 0 {
		return 0, fmt.Errorf("streaminfo has zero sample rate")
	}
	return float64(info.SampleCount) / float64(info.SampleRate), nil
}

const (
	maxAggregateFiles = 200
	maxSampleTags     = 12
)

// AggregateFolder walks a folder recursively and summarizes the tags of
// every supported audio file. Unreadable files are counted, not fatal.
func (r *Reader) AggregateFolder(root string) (*domain.TagAggregate, error) {
	agg := &domain.TagAggregate{
		ExtensionCounts: make(map[string]int),
	}

	artistVotes := make(map[string]int)
	albumArtistVotes := make(map[string]int)
	albumVotes := make(map[string]int)
	genreVotes := make(map[string]int)

	var audioPaths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, keep aggregating the rest.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioPath(d.Name()) {
			return nil
		}
		audioPaths = append(audioPaths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(audioPaths)

	for _, path := range audioPaths {
		agg.ExtensionCounts[strings.ToLower(filepath.Ext(path))]++

		if agg.FilesRead >= maxAggregateFiles {
			continue
		}

		ft, err := r.ReadFile(path)
		if err != nil {
			agg.FilesFailed++
			r.log.Debug("Unreadable tags", "file", path, "error", err)
			continue
		}
		agg.FilesRead++

		vote(artistVotes, ft.Artist)
		vote(albumArtistVotes, ft.AlbumArtist)
		vote(albumVotes, ft.Album)
		vote(genreVotes, ft.Genre)
		agg.TotalDuration += ft.Duration

		if ft.Year > 0 {
			if agg.YearMin == 0 || ft.Year < agg.YearMin {
				agg.YearMin = ft.Year
			}
			if ft.Year > agg.YearMax {
				agg.YearMax = ft.Year
			}
		}

		if len(agg.SampleTags) < maxSampleTags {
			agg.SampleTags = append(agg.SampleTags, sampleLine(ft))
		}
	}

	agg.Artist = dominant(artistVotes)
	agg.AlbumArtist = dominant(albumArtistVotes)
	agg.Album = dominant(albumVotes)
	agg.Genre = dominant(genreVotes)
	return agg, nil
}

func vote(votes map[string]int, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		votes[value]++
	}
}

// dominant returns the most frequent value, ties broken lexically so the
// aggregate is deterministic.
func dominant(votes map[string]int) string {
	best := ""
	bestN := 0
	for value, n := range votes {
		if n > bestN || (n == bestN && best != "" && value < best) {
			best = value
			bestN = n
		}
	}
	return best
}

func sampleLine(ft *FileTags) string {
	var b strings.Builder
	if ft.Track > 0 {
		fmt.Fprintf(&b, "%02d. ", ft.Track)
	}
	if ft.Title != "" {
		b.WriteString(ft.Title)
	} else {
		b.WriteString(filepath.Base(ft.Path))
	}
	if ft.Artist != "" {
		b.WriteString(" - ")
		b.WriteString(ft.Artist)
	}
	if ft.Album != "" {
		fmt.Fprintf(&b, " [%s]", ft.Album)
	}
	if ft.Year > 0 {
		fmt.Fprintf(&b, " (%d)", ft.Year)
	}
	return b.String()
}
