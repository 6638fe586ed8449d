// Package proposal turns folder metadata into an organization proposal by
// consulting the oracle and parsing its answer.
package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/oracle"
)

// Generator asks the oracle for a structured proposal for one album folder.
type Generator struct {
	oracle oracle.Oracle
	log    *logger.Logger
}

func NewGenerator(o oracle.Oracle, log *logger.Logger) *Generator {
	return &Generator{
		oracle: o,
		log:    log.WithComponent("proposal"),
	}
}

// Generate builds a prompt from the job metadata, calls the oracle and
// parses the proposal. When the oracle's answer cannot be parsed but the
// embedded tags identify the record, a low-confidence metadata-only
// proposal is returned instead so a human can still adjudicate.
func (g *Generator) Generate(ctx context.Context, meta *domain.AnalyzeMetadata, feedback string) (*domain.Proposal, error) {
	prompt := BuildPrompt(meta, feedback)

	out, err := g.oracle.Generate(ctx, prompt)
	if err != nil {
		if fb := fallbackFromTags(meta); fb != nil {
			g.log.Warn("Oracle call failed, falling back to embedded tags", "folder", meta.Shape.Path, "error", err)
			return fb, nil
		}
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}

	p, perr := Parse(out)
	if perr == nil {
		// A hinted artist fills a blank the oracle left; a non-empty oracle
		// answer wins.
		if meta.ArtistHint != "" && strings.TrimSpace(p.Artist) == "" {
			p.Artist = meta.ArtistHint
			p.Normalize()
		}
		perr = p.Validate()
	}
	if perr != nil {
		if fb := fallbackFromTags(meta); fb != nil {
			g.log.Warn("Unusable oracle response, falling back to embedded tags", "folder", meta.Shape.Path, "error", perr)
			return fb, nil
		}
		return nil, fmt.Errorf("unusable oracle response: %w", perr)
	}
	return p, nil
}

// Parse extracts and normalizes the first JSON object in the oracle output.
// Oracles wrap answers in prose and code fences; only the balanced object
// matters. Field validation is the caller's job so hints can fill blanks
// first.
func Parse(out string) (*domain.Proposal, error) {
	raw, err := extractJSONObject(out)
	if err != nil {
		return nil, err
	}
	var p domain.Proposal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %w", err)
	}
	p.Normalize()
	return &p, nil
}

// extractJSONObject returns the first balanced top-level {...} in s.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// fallbackFromTags derives a low-confidence proposal from aggregated tags.
// Returns nil when the tags do not identify the record.
func fallbackFromTags(meta *domain.AnalyzeMetadata) *domain.Proposal {
	artist := meta.Tags.AlbumArtist
	if artist == "" {
		artist = meta.Tags.Artist
	}
	if artist == "" {
		artist = meta.ArtistHint
	}
	album := meta.Tags.Album
	if artist == "" || album == "" {
		return nil
	}

	year := "Unknown"
	if meta.Tags.YearMin > 0 {
		year = fmt.Sprintf("%d", meta.Tags.YearMin)
	}

	p := &domain.Proposal{
		Artist:      artist,
		Album:       album,
		Year:        year,
		ReleaseType: "Album",
		Confidence:  domain.ConfidenceLow,
		Reasoning:   "Derived from embedded file tags; the model produced no usable answer.",
	}
	p.Normalize()
	return p
}

// BuildPrompt renders the analyze prompt for one folder.
func BuildPrompt(meta *domain.AnalyzeMetadata, feedback string) string {
	var b strings.Builder

	b.WriteString("You identify music releases from folder contents and file tags.\n")
	b.WriteString("Respond with a single JSON object and nothing else, shaped as:\n")
	b.WriteString(`{"artist": "...", "album": "...", "year": "...", "release_type": "Album|EP|Single|Compilation|Live|Remix|Bootleg", "confidence": "low|medium|high", "reasoning": "..."}`)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Folder name: %s\n", meta.Shape.Name)
	if meta.Classification != "" {
		fmt.Fprintf(&b, "Folder shape: %s\n", meta.Classification)
	}
	fmt.Fprintf(&b, "Audio files: %d total, %d directly in the folder\n",
		meta.Shape.TotalMusicFiles, meta.Shape.DirectMusicFiles)

	if meta.ArtistHint != "" {
		fmt.Fprintf(&b, "The artist is almost certainly %q (parent folder); honor this unless the contents clearly contradict it.\n", meta.ArtistHint)
	}

	if t := &meta.Tags; t.FilesRead > 0 {
		b.WriteString("\nAggregated embedded tags:\n")
		if t.AlbumArtist != "" {
			fmt.Fprintf(&b, "  album artist: %s\n", t.AlbumArtist)
		}
		if t.Artist != "" && t.Artist != t.AlbumArtist {
			fmt.Fprintf(&b, "  track artist: %s\n", t.Artist)
		}
		if t.Album != "" {
			fmt.Fprintf(&b, "  album: %s\n", t.Album)
		}
		if t.YearMin > 0 {
			if t.YearMax > t.YearMin {
				fmt.Fprintf(&b, "  years: %d-%d\n", t.YearMin, t.YearMax)
			} else {
				fmt.Fprintf(&b, "  year: %d\n", t.YearMin)
			}
		}
		if t.Genre != "" {
			fmt.Fprintf(&b, "  genre: %s\n", t.Genre)
		}
		if t.TotalDuration > 0 {
			fmt.Fprintf(&b, "  total duration: %.0f seconds\n", t.TotalDuration)
		}
		if len(t.SampleTags) > 0 {
			b.WriteString("  sample tracks:\n")
			for _, line := range t.SampleTags {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}

	if meta.Shape.TreeText != "" {
		b.WriteString("\nFolder tree:\n")
		b.WriteString(meta.Shape.TreeText)
		b.WriteString("\n")
	}

	if feedback != "" {
		fmt.Fprintf(&b, "\nUser feedback on a previous attempt (must be taken into account):\n%s\n", feedback)
	}

	return b.String()
}
