package domain

import (
	"encoding/json"
	"fmt"
)

// Classification is the classifier's verdict on a folder shape.
type Classification string

const (
	ClassSingleAlbum      Classification = "single_album"
	ClassMultiDiscAlbum   Classification = "multi_disc_album"
	ClassArtistCollection Classification = "artist_collection"
	ClassUnknown          Classification = "unknown"
)

// SubdirInfo describes one immediate subdirectory of a scanned folder.
type SubdirInfo struct {
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	MusicFiles     int      `json:"music_files"`
	MusicBasenames []string `json:"music_basenames,omitempty"`
}

// FolderShape is the in-memory summary of a candidate folder. It is never
// persisted as a first-class entity; analyze jobs carry a serialized
// AnalyzeMetadata derived from it.
type FolderShape struct {
	Name             string       `json:"name"`
	Path             string       `json:"path"`
	TotalMusicFiles  int          `json:"total_music_files"`
	DirectMusicFiles int          `json:"direct_music_files"`
	Subdirectories   []SubdirInfo `json:"subdirectories"`
	MaxDepth         int          `json:"max_depth"`
	TreeText         string       `json:"tree_text,omitempty"`
}

// TagAggregate summarizes the embedded tags of every audio file under a
// folder. Dominant values are the most frequent non-empty ones.
type TagAggregate struct {
	Artist          string         `json:"artist,omitempty"`
	AlbumArtist     string         `json:"album_artist,omitempty"`
	Album           string         `json:"album,omitempty"`
	YearMin         int            `json:"year_min,omitempty"`
	YearMax         int            `json:"year_max,omitempty"`
	Genre           string         `json:"genre,omitempty"`
	FilesRead       int            `json:"files_read"`
	FilesFailed     int            `json:"files_failed"`
	ExtensionCounts map[string]int `json:"extension_counts,omitempty"`
	TotalDuration   float64        `json:"total_duration_seconds,omitempty"`
	SampleTags      []string       `json:"sample_tags,omitempty"`
}

// AnalyzeMetadata is the metadata_json payload of an analyze job: everything
// the worker needs to build a prompt without re-walking the tree.
type AnalyzeMetadata struct {
	Shape          FolderShape    `json:"shape"`
	Tags           TagAggregate   `json:"tags"`
	Classification Classification `json:"classification,omitempty"`
	ArtistHint     string         `json:"artist_hint,omitempty"`
}

// EncodeAnalyzeMetadata serializes the metadata_json payload.
func EncodeAnalyzeMetadata(m *AnalyzeMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode analyze metadata: %w", err)
	}
	return string(data), nil
}

// DecodeAnalyzeMetadata parses a metadata_json payload.
func DecodeAnalyzeMetadata(data string) (*AnalyzeMetadata, error) {
	var m AnalyzeMetadata
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse analyze metadata: %w", err)
	}
	return &m, nil
}
