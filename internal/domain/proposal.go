package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Proposal is the structured answer the oracle produces for one album
// folder. All fields are strings; Year stays textual because sources
// disagree ("1994", "1994-06-01", "Unknown").
type Proposal struct {
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Year        string `json:"year"`
	ReleaseType string `json:"release_type"`
	Confidence  string `json:"confidence,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
}

var releaseTypes = []string{"Album", "EP", "Single", "Compilation", "Live", "Remix", "Bootleg"}

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Validate checks the fields a ready job must carry.
func (p *Proposal) Validate() error {
	if strings.TrimSpace(p.Artist) == "" {
		return fmt.Errorf("proposal missing artist")
	}
	if strings.TrimSpace(p.Album) == "" {
		return fmt.Errorf("proposal missing album")
	}
	if strings.TrimSpace(p.Year) == "" {
		return fmt.Errorf("proposal missing year")
	}
	if strings.TrimSpace(p.ReleaseType) == "" {
		return fmt.Errorf("proposal missing release_type")
	}
	return nil
}

// Normalize folds release type and confidence into their closed sets,
// keeping whatever the oracle said when it cannot be matched.
func (p *Proposal) Normalize() {
	p.Artist = strings.TrimSpace(p.Artist)
	p.Album = strings.TrimSpace(p.Album)
	p.Year = strings.TrimSpace(p.Year)

	rt := strings.TrimSpace(p.ReleaseType)
	for _, known := range releaseTypes {
		if strings.EqualFold(rt, known) {
			rt = known
			break
		}
	}
	if rt == "" {
		rt = "Album"
	}
	p.ReleaseType = rt

	switch strings.ToLower(strings.TrimSpace(p.Confidence)) {
	case ConfidenceHigh:
		p.Confidence = ConfidenceHigh
	case ConfidenceMedium:
		p.Confidence = ConfidenceMedium
	default:
		p.Confidence = ConfidenceLow
	}
}

// ParseProposal decodes a result_json payload.
func ParseProposal(data string) (*Proposal, error) {
	var p Proposal
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Proposal) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode proposal: %w", err)
	}
	return string(data), nil
}
