package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProposal(t *testing.T) {
	p, err := ParseProposal(`{"artist":"Weezer","album":"Pinkerton","year":"1996","release_type":"Album"}`)
	require.NoError(t, err)
	assert.Equal(t, "Weezer", p.Artist)
	assert.Equal(t, "1996", p.Year)
}

func TestParseProposalRejectsIncomplete(t *testing.T) {
	_, err := ParseProposal(`{"artist":"Weezer","year":"1996","release_type":"Album"}`)
	assert.Error(t, err)

	_, err = ParseProposal(`not json`)
	assert.Error(t, err)
}

func TestNormalizeFoldsClosedSets(t *testing.T) {
	p := &Proposal{
		Artist:      "  Weezer ",
		Album:       "Pinkerton",
		Year:        " 1996",
		ReleaseType: "album",
		Confidence:  "HIGH",
	}
	p.Normalize()
	assert.Equal(t, "Weezer", p.Artist)
	assert.Equal(t, "1996", p.Year)
	assert.Equal(t, "Album", p.ReleaseType)
	assert.Equal(t, ConfidenceHigh, p.Confidence)

	// Unknown confidence degrades to low; empty release type defaults.
	q := &Proposal{Artist: "A", Album: "B", Year: "2000", Confidence: "certain"}
	q.Normalize()
	assert.Equal(t, "Album", q.ReleaseType)
	assert.Equal(t, ConfidenceLow, q.Confidence)
}
