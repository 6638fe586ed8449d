// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort          = "8080"
	DefaultDBPath        = "whats-that-sound.db"
	DefaultLlamaBaseURL  = "http://localhost:11434/v1"
	DefaultWorkers       = 4
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultStaleMaxAge   = 300 * time.Second
	DefaultStaleSweep    = 60 * time.Second
	DefaultOracleTimeout = 120 * time.Second
	StreamOracleTimeout  = 300 * time.Second
	SSEInterval          = 1 * time.Second
)

// Inference providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLlama  = "llama"
)

// TrackerFileName marks a source folder as already organized.
const TrackerFileName = ".whats-that-sound"

// SupportedExtensions are the audio suffixes the pipeline recognizes,
// matched case-insensitively.
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// IgnoredSubdirNames are artwork/scan directories the scanner never treats
// as album candidates.
var IgnoredSubdirNames = map[string]bool{
	"scans":   true,
	"scan":    true,
	"artwork": true,
	"covers":  true,
	"cover":   true,
	"booklet": true,
	"extras":  true,
	"logs":    true,
	"log":     true,
}

// DiscPrefixes identify disc-like subfolders ("CD1", "Disc 2", "vol. 3").
var DiscPrefixes = []string{"cd", "disc", "disk", "vol", "volume"}

// File permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Characters to sanitize from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"

// MaxPathComponentLen caps sanitized artist/album directory names.
const MaxPathComponentLen = 120
