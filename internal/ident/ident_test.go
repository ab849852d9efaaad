package ident

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDPrefixAndUniqueness(t *testing.T) {
	var g UUID
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.New(Attendance)
		require.True(t, strings.HasPrefix(id, "att_"))
		_, err := uuid.Parse(strings.TrimPrefix(id, "att_"))
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequence(t *testing.T) {
	var s Sequence
	assert.Equal(t, "grade_1", s.New(Grade))
	assert.Equal(t, "grade_2", s.New(Grade))
	assert.Equal(t, "notif_1", s.New(Notification))
}
