package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	min, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, min)

	min, err = ParseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, min)

	for _, bad := range []string{"", "24:00", "09:60", "late", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestShiftOvernight(t *testing.T) {
	assert.True(t, Shift{Start: "22:00", End: "06:00"}.Overnight())
	assert.False(t, Shift{Start: "09:00", End: "18:00"}.Overnight())
	// A zero-length window rolls to the next day rather than being empty.
	assert.True(t, Shift{Start: "08:00", End: "08:00"}.Overnight())
}
