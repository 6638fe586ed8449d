// Package scanner walks a source root, classifies the shape of each
// candidate folder and enqueues analyze jobs.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidgr87/whats-that-sound/internal/classifier"
	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/store"
	"github.com/davidgr87/whats-that-sound/internal/tags"
	"github.com/davidgr87/whats-that-sound/internal/tracker"
)

// Scanner emits analyze jobs for the album-like folders under a root.
type Scanner struct {
	store *store.Store
	tags  *tags.Reader
	log   *logger.Logger
}

func New(st *store.Store, reader *tags.Reader, log *logger.Logger) *Scanner {
	return &Scanner{
		store: st,
		tags:  reader,
		log:   log.WithComponent("scanner"),
	}
}

// Scan inspects every immediate child of root and enqueues analyze jobs.
// Unreadable subtrees are skipped; the scan itself only fails when the root
// cannot be listed. Returns the number of jobs enqueued.
func (s *Scanner) Scan(ctx context.Context, root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("failed to list scan root %s: %w", root, err)
	}

	enqueued := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return enqueued, ctx.Err()
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		child := filepath.Join(root, entry.Name())
		n, err := s.scanChild(ctx, child)
		if err != nil {
			s.log.Warn("Skipping unreadable subtree", "folder", child, "error", err)
			continue
		}
		enqueued += n
	}
	s.log.Info("Scan complete", "root", root, "enqueued", enqueued)
	return enqueued, nil
}

// scanChild decides the enqueue shape for one immediate child of the root.
func (s *Scanner) scanChild(ctx context.Context, child string) (int, error) {
	skip, err := s.shouldSkip(child)
	if err != nil || skip {
		return 0, err
	}

	directMusic, err := countDirectAudio(child)
	if err != nil {
		return 0, err
	}
	subdirs, err := listCandidateSubdirs(child)
	if err != nil {
		return 0, err
	}
	discLike := filterDiscLike(subdirs)

	// Disc-dominance threshold: at least two disc-like subdirs, and they
	// make up at least half of all candidate subdirs.
	discQuorum := len(discLike) >= 2 && len(discLike) >= max(2, (len(subdirs)+1)/2)

	switch {
	case directMusic > 0 && len(discLike) > 0:
		// A parent that holds both loose tracks and "CD1"-style folders.
		// Track counts decide: CD folders holding only cover art must not
		// split the album.
		discTotal := 0
		for _, d := range discLike {
			n, err := countAudioRecursive(d)
			if err != nil {
				return 0, err
			}
			discTotal += n
		}
		if discQuorum && discTotal > directMusic {
			enqueued := 0
			for _, d := range discLike {
				n, err := s.enqueueAnalyze(ctx, d, filepath.Base(child))
				if err != nil {
					return enqueued, err
				}
				enqueued += n
			}
			return enqueued, nil
		}
		return s.enqueueAnalyze(ctx, child, "")

	case directMusic == 0 && discQuorum:
		// Multi-disc album, treated atomically.
		return s.enqueueAnalyze(ctx, child, "")

	case directMusic > 0:
		return s.enqueueAnalyze(ctx, child, "")

	default:
		return s.enqueueCollection(ctx, child, subdirs)
	}
}

// enqueueCollection treats child as an artist collection: one analyze job
// per music-bearing subdir, hinted with the collection name.
func (s *Scanner) enqueueCollection(ctx context.Context, child string, subdirs []string) (int, error) {
	hint := filepath.Base(child)
	enqueued := 0
	anyAudio := false
	for _, sd := range subdirs {
		n, err := countAudioRecursive(sd)
		if err != nil {
			s.log.Warn("Skipping unreadable subtree", "folder", sd, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		anyAudio = true
		added, err := s.enqueueAnalyze(ctx, sd, hint)
		if err != nil {
			return enqueued, err
		}
		enqueued += added
	}
	if enqueued > 0 || anyAudio {
		return enqueued, nil
	}

	// Nothing qualified directly, but audio deeper down still deserves a
	// job for the child itself.
	total, err := countAudioRecursive(child)
	if err != nil || total == 0 {
		return 0, err
	}
	return s.enqueueAnalyze(ctx, child, "")
}

func (s *Scanner) shouldSkip(folder string) (bool, error) {
	if tracker.Exists(folder) {
		s.log.Debug("Folder already organized", "folder", folder)
		return true, nil
	}
	exists, err := s.store.HasAnyForFolder(folder)
	if err != nil {
		return false, err
	}
	if exists {
		s.log.Debug("Folder already enqueued", "folder", folder)
		return true, nil
	}
	return false, nil
}

// enqueueAnalyze computes metadata for one album-like folder and inserts
// the job. Returns 1 on insert, 0 on skip.
func (s *Scanner) enqueueAnalyze(ctx context.Context, folder, artistHint string) (int, error) {
	skip, err := s.shouldSkip(folder)
	if err != nil || skip {
		return 0, err
	}

	meta, err := s.BuildMetadata(folder, artistHint)
	if err != nil {
		return 0, err
	}
	metaJSON, err := domain.EncodeAnalyzeMetadata(meta)
	if err != nil {
		return 0, err
	}

	job := &domain.Job{
		FolderPath:   folder,
		Type:         domain.JobTypeAnalyze,
		MetadataJSON: metaJSON,
		ArtistHint:   artistHint,
	}
	if _, err := s.store.Enqueue(job); err != nil {
		return 0, err
	}
	s.log.Info("Enqueued analyze job", "folder", folder, "artist_hint", artistHint, "classification", meta.Classification)
	return 1, nil
}

// BuildMetadata assembles the analyze payload: folder shape, aggregated
// tags and a heuristic classification hint. The oracle-backed classifier
// runs later, in the worker, so scans stay fast.
func (s *Scanner) BuildMetadata(folder, artistHint string) (*domain.AnalyzeMetadata, error) {
	shape, err := s.BuildShape(folder)
	if err != nil {
		return nil, err
	}
	agg, err := s.tags.AggregateFolder(folder)
	if err != nil {
		return nil, err
	}
	return &domain.AnalyzeMetadata{
		Shape:          *shape,
		Tags:           *agg,
		Classification: classifier.Heuristic(shape),
		ArtistHint:     artistHint,
	}, nil
}

// BuildShape computes the in-memory folder summary.
func (s *Scanner) BuildShape(folder string) (*domain.FolderShape, error) {
	direct, err := countDirectAudio(folder)
	if err != nil {
		return nil, err
	}
	total, err := countAudioRecursive(folder)
	if err != nil {
		return nil, err
	}

	subdirPaths, err := listCandidateSubdirs(folder)
	if err != nil {
		return nil, err
	}
	subdirs := make([]domain.SubdirInfo, 0, len(subdirPaths))
	for _, sd := range subdirPaths {
		n, err := countAudioRecursive(sd)
		if err != nil {
			continue
		}
		subdirs = append(subdirs, domain.SubdirInfo{
			Name:           filepath.Base(sd),
			Path:           sd,
			MusicFiles:     n,
			MusicBasenames: directAudioBasenames(sd, 10),
		})
	}

	treeText, maxDepth := renderTree(folder)

	return &domain.FolderShape{
		Name:             filepath.Base(folder),
		Path:             folder,
		TotalMusicFiles:  total,
		DirectMusicFiles: direct,
		Subdirectories:   subdirs,
		MaxDepth:         maxDepth,
		TreeText:         treeText,
	}, nil
}

// listCandidateSubdirs returns the immediate subdirectories minus the
// artwork/scan ignore set, sorted by name.
func listCandidateSubdirs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if constants.IgnoredSubdirNames[strings.ToLower(e.Name())] {
			continue
		}
		out = append(out, filepath.Join(folder, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// filterDiscLike keeps subdirs whose lowercased name starts with a disc
// prefix (cd, disc, disk, vol, volume).
func filterDiscLike(subdirs []string) []string {
	var out []string
	for _, sd := range subdirs {
		name := strings.ToLower(filepath.Base(sd))
		for _, prefix := range constants.DiscPrefixes {
			if strings.HasPrefix(name, prefix) {
				out = append(out, sd)
				break
			}
		}
	}
	return out
}

func countDirectAudio(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && tags.IsAudioPath(e.Name()) {
			n++
		}
	}
	return n, nil
}

func countAudioRecursive(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			sub, err := countAudioRecursive(filepath.Join(folder, e.Name()))
			if err != nil {
				// Unreadable branch: count what we can see.
				continue
			}
			n += sub
		} else if tags.IsAudioPath(e.Name()) {
			n++
		}
	}
	return n, nil
}

func directAudioBasenames(folder string, limit int) []string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && tags.IsAudioPath(e.Name()) {
			names = append(names, e.Name())
			if len(names) >= limit {
				break
			}
		}
	}
	return names
}

const (
	treeMaxDepth = 3
	treeMaxLines = 60
)

// renderTree produces a compact textual tree for prompts plus the deepest
// directory level observed.
func renderTree(folder string) (string, int) {
	var b strings.Builder
	lines := 0
	maxDepth := 0
	b.WriteString(filepath.Base(folder) + "/\n")

	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > treeMaxDepth || lines >= treeMaxLines {
			return
		}
		if depth > maxDepth {
			maxDepth = depth
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		indent := strings.Repeat("  ", depth)
		audioShown := 0
		for _, e := range entries {
			if lines >= treeMaxLines {
				return
			}
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if e.IsDir() {
				fmt.Fprintf(&b, "%s%s/\n", indent, e.Name())
				lines++
				walk(filepath.Join(dir, e.Name()), depth+1)
			} else if tags.IsAudioPath(e.Name()) {
				if audioShown < 8 {
					fmt.Fprintf(&b, "%s%s\n", indent, e.Name())
					lines++
					audioShown++
				}
			}
		}
	}
	walk(folder, 1)
	return b.String(), maxDepth
}
