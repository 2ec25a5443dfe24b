package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallPercent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		progress Progress
		expected float64
	}{
		{
			name:     "single file uses file percent",
			progress: Progress{FilePercent: 42.5},
			expected: 42.5,
		},
		{
			name:     "first playlist entry halfway",
			progress: Progress{FilePercent: 50, PlaylistIndex: 1, PlaylistCount: 4},
			expected: 12.5,
		},
		{
			name:     "third of four entries complete",
			progress: Progress{FilePercent: 100, PlaylistIndex: 3, PlaylistCount: 4},
			expected: 75,
		},
		{
			name:     "last entry finishing",
			progress: Progress{FilePercent: 100, PlaylistIndex: 4, PlaylistCount: 4},
			expected: 100,
		},
		{
			name:     "playlist info absent falls back to file percent",
			progress: Progress{FilePercent: 80, PlaylistIndex: 0, PlaylistCount: 0},
			expected: 80,
		},
		{
			name:     "clamped above",
			progress: Progress{FilePercent: 130},
			expected: 100,
		},
		{
			name:     "clamped below",
			progress: Progress{FilePercent: -5},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.expected, tc.progress.OverallPercent(), 0.0001)
		})
	}
}
