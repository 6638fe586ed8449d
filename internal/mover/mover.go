// Package mover copies accepted folders into the canonical
// Artist/Album (Year) layout.
package mover

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/tags"
	"github.com/davidgr87/whats-that-sound/internal/tracker"
)

// Mover places the audio files of a source folder under the target root.
type Mover struct {
	targetRoot string
	log        *logger.Logger
}

func New(targetRoot string, log *logger.Logger) *Mover {
	return &Mover{
		targetRoot: targetRoot,
		log:        log.WithComponent("mover"),
	}
}

// TargetDir computes the destination directory for a proposal.
func (m *Mover) TargetDir(p *domain.Proposal) string {
	year := strings.TrimSpace(p.Year)
	if year == "" {
		year = "Unknown"
	}
	artist := SanitizeComponent(p.Artist)
	album := fmt.Sprintf("%s (%s)", SanitizeComponent(p.Album), year)
	return filepath.Join(m.targetRoot, artist, album)
}

// Move copies every supported audio file under src into the canonical
// target directory, preserving the relative path below src (disc subfolders
// survive). Individual file errors are logged, not fatal; existing
// destination files are overwritten so a repeated move is safe. On success
// the tracker mark is written into src. Returns the number of files copied.
func (m *Mover) Move(src string, p *domain.Proposal) (int, error) {
	destDir := m.TargetDir(p)
	if err := os.MkdirAll(destDir, constants.DirPermissions); err != nil {
		return 0, fmt.Errorf("failed to create target directory: %w", err)
	}

	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				m.log.Warn("Skipping unreadable directory", "dir", path, "error", err)
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !tags.IsAudioPath(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, rel)
		if err := copyFile(path, dest); err != nil {
			m.log.Warn("Failed to copy file", "file", path, "error", err)
			return nil
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to walk source folder: %w", err)
	}

	if err := tracker.Write(src, p); err != nil {
		return copied, err
	}
	m.log.Info("Folder organized", "source", src, "target", destDir, "files", copied)
	return copied, nil
}

// FinalizeCollection writes the artist-collection mark at parent once every
// music-bearing immediate subdir carries its own mark. Called after each
// accepted move that was hinted with the parent's name; it is a no-op until
// the last album lands.
func (m *Mover) FinalizeCollection(parent string) error {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return fmt.Errorf("failed to list collection folder: %w", err)
	}

	var albums []domain.Proposal
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sub := filepath.Join(parent, e.Name())
		if !hasAudioBelow(sub) {
			continue
		}
		mark, err := tracker.Read(sub)
		if err != nil {
			return err
		}
		if mark == nil || mark.Proposal == nil {
			// Not every album is organized yet.
			return nil
		}
		albums = append(albums, *mark.Proposal)
	}
	if len(albums) == 0 {
		return nil
	}

	if err := tracker.WriteCollection(parent, albums); err != nil {
		return err
	}
	m.log.Info("Collection organized", "folder", parent, "albums", len(albums))
	return nil
}

func hasAudioBelow(folder string) bool {
	found := false
	filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && tags.IsAudioPath(d.Name()) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// SanitizeComponent makes a proposal field safe as one path component:
// filesystem-hostile characters become underscores and the result is
// trimmed and capped.
func SanitizeComponent(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidPathChars, r) {
			return '_'
		}
		return r
	}, s)
	mapped = strings.TrimSpace(mapped)
	runes := []rune(mapped)
	if len(runes) > constants.MaxPathComponentLen {
		mapped = strings.TrimSpace(string(runes[:constants.MaxPathComponentLen]))
	}
	if mapped == "" {
		mapped = "_"
	}
	return mapped
}

// copyFile copies src to dest, preserving mode and mtime where the host OS
// allows it.
func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), constants.DirPermissions); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(src); err == nil {
		_ = os.Chmod(dest, info.Mode())
		_ = os.Chtimes(dest, info.ModTime(), info.ModTime())
	}
	return nil
}
