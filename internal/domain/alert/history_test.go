package alert

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	const capacity = 50
	h := NewHistory(capacity)

	for i := 1; i <= capacity+1; i++ {
		h.Append(New(LevelInfo, fmt.Sprintf("alert %d", i), time.Now(), false))
	}

	assert.Equal(t, capacity, h.Len())

	alerts := h.Alerts()
	require.Len(t, alerts, capacity)
	assert.Equal(t, "alert 2", alerts[0].Message)
	assert.Equal(t, fmt.Sprintf("alert %d", capacity+1), alerts[capacity-1].Message)
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := NewHistory(10)
	for i := 1; i <= 5; i++ {
		h.Append(New(LevelWarning, fmt.Sprintf("alert %d", i), time.Now(), false))
	}

	recent := h.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "alert 5", recent[0].Message)
	assert.Equal(t, "alert 4", recent[1].Message)
	assert.Equal(t, "alert 3", recent[2].Message)
}

func TestHistory_RecentBounds(t *testing.T) {
	h := NewHistory(10)
	h.Append(New(LevelInfo, "only", time.Now(), false))

	assert.Len(t, h.Recent(5), 1)
	assert.Nil(t, h.Recent(0))
	assert.Nil(t, NewHistory(10).Recent(3))
}

func TestNew_AssignsID(t *testing.T) {
	a := New(LevelCritical, "boom", time.Now(), true)
	b := New(LevelCritical, "boom", time.Now(), true)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.ActionRequired)
}

func TestLevel_Valid(t *testing.T) {
	assert.True(t, LevelInfo.Valid())
	assert.True(t, LevelWarning.Valid())
	assert.True(t, LevelCritical.Valid())
	assert.False(t, Level("NOTICE").Valid())
}
