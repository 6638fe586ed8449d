package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusAnalyzing, true},
		{JobStatusAnalyzing, JobStatusReady, true},
		{JobStatusAnalyzing, JobStatusError, true},
		{JobStatusAnalyzing, JobStatusQueued, true},
		{JobStatusReady, JobStatusAccepted, true},
		{JobStatusReady, JobStatusSkipped, true},
		{JobStatusReady, JobStatusQueued, true},
		{JobStatusAccepted, JobStatusMoving, true},
		{JobStatusMoving, JobStatusCompleted, true},
		{JobStatusMoving, JobStatusError, true},
		{JobStatusError, JobStatusQueued, true},

		{JobStatusQueued, JobStatusReady, false},
		{JobStatusQueued, JobStatusCompleted, false},
		{JobStatusReady, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusQueued, false},
		{JobStatusSkipped, JobStatusQueued, false},
		{JobStatusMoving, JobStatusQueued, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, JobStatusSkipped.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusError.Terminal())
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusReady.Terminal())
	assert.False(t, JobStatusMoving.Terminal())
}

func TestStatusValid(t *testing.T) {
	for _, st := range AllStatuses {
		assert.True(t, st.Valid(), string(st))
	}
	assert.False(t, JobStatus("in_progress").Valid())
	assert.False(t, JobStatus("").Valid())
}
