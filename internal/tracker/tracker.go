// Package tracker reads and writes the hidden per-folder marker that
// records a source folder as organized.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
)

// Mark is the on-disk JSON of a tracker file. Single-album marks carry
// Proposal; artist-collection marks carry CollectionType and Albums.
type Mark struct {
	Proposal       *domain.Proposal  `json:"proposal,omitempty"`
	CollectionType string            `json:"collection_type,omitempty"`
	Albums         []domain.Proposal `json:"albums,omitempty"`
	FolderName     string            `json:"folder_name"`
	OrganizedAt    string            `json:"organized_timestamp"`
}

const collectionType = "artist_collection"

func markPath(folder string) string {
	return filepath.Join(folder, constants.TrackerFileName)
}

// Exists reports whether the folder carries a tracker mark. Its presence is
// a hard skip signal for the scanner and control plane.
func Exists(folder string) bool {
	info, err := os.Stat(markPath(folder))
	return err == nil && !info.IsDir()
}

// Read loads a tracker mark, returning nil without error when none exists.
func Read(folder string) (*Mark, error) {
	data, err := os.ReadFile(markPath(folder))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker mark: %w", err)
	}
	var m Mark
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse tracker mark in %s: %w", folder, err)
	}
	return &m, nil
}

// Write records an accepted single-album proposal in the source folder.
func Write(folder string, proposal *domain.Proposal) error {
	m := Mark{
		Proposal:    proposal,
		FolderName:  filepath.Base(folder),
		OrganizedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return write(folder, &m)
}

// WriteCollection records the accepted albums of an artist collection at
// the collection root.
func WriteCollection(folder string, albums []domain.Proposal) error {
	m := Mark{
		CollectionType: collectionType,
		Albums:         albums,
		FolderName:     filepath.Base(folder),
		OrganizedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	return write(folder, &m)
}

// IsCollection reports whether a mark is an artist-collection mark.
func (m *Mark) IsCollection() bool {
	return m != nil && m.CollectionType == collectionType
}

func write(folder string, m *Mark) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracker mark: %w", err)
	}
	if err := os.WriteFile(markPath(folder), data, constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to write tracker mark: %w", err)
	}
	return nil
}
