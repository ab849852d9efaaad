package notify

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/store"
)

func newSink(t *testing.T) (*Sink, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewSink(store.NewMemory(), &ident.Sequence{}, clk), clk
}

func TestCreateDefaultsAndOrdering(t *testing.T) {
	ctx := context.Background()
	s, clk := newSink(t)

	first, err := s.Create(ctx, "21K-1234", model.SeverityInfo, "New Grade Posted", "Quiz 1 marks for Database Systems have been posted.")
	require.NoError(t, err)
	assert.False(t, first.Read)
	assert.Equal(t, "notif_1", first.ID)

	clk.Advance(time.Minute)
	_, err = s.Create(ctx, "21K-1234", model.SeverityWarning, "Attendance Reminder", "...")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = s.Create(ctx, "T-5679", model.SeverityWarning, "Student At Risk", "...")
	require.NoError(t, err)

	notes, err := s.ByUser(ctx, "21K-1234")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Attendance Reminder", notes[0].Title)
	assert.Equal(t, "New Grade Posted", notes[1].Title)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "T-5679", all[0].UserID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newSink(t)
	_, err := s.Create(ctx, "", model.SeverityInfo, "t", "m")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = s.Create(ctx, "u", model.Severity(9), "t", "m")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestByUserIsolatesSeparatorInID(t *testing.T) {
	ctx := context.Background()
	s, _ := newSink(t)

	_, err := s.Create(ctx, "21K", model.SeverityInfo, "Mine", "m")
	require.NoError(t, err)
	_, err = s.Create(ctx, "21K|X", model.SeverityInfo, "Theirs", "m")
	require.NoError(t, err)

	notes, err := s.ByUser(ctx, "21K")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Mine", notes[0].Title)

	n, err := s.UnreadCount(ctx, "21K")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.MarkAllAsRead(ctx, "21K"))
	theirs, err := s.ByUser(ctx, "21K|X")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].Read)
}

func TestReadFlags(t *testing.T) {
	ctx := context.Background()
	s, _ := newSink(t)
	a, err := s.Create(ctx, "u1", model.SeverityInfo, "a", "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "u1", model.SeverityDanger, "b", "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "u2", model.SeverityInfo, "c", "")
	require.NoError(t, err)

	count, err := s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkAsRead(ctx, a.ID))
	require.NoError(t, s.MarkAsRead(ctx, "notif_missing"))
	count, err = s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.MarkAllAsRead(ctx, "u1"))
	count, err = s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	other, err := s.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, other)

	require.NoError(t, s.Delete(ctx, a.ID))
	notes, err := s.ByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
