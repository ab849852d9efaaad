package backup

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amalnama/internal/audit"
	"amalnama/internal/directory"
	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/notify"
	"amalnama/internal/store"
)

type stack struct {
	backend store.Backend
	dir     *directory.Service
	notes   *notify.Sink
	log     *audit.Log
	backup  *Service
}

func newStack(t *testing.T, b store.Backend) *stack {
	t.Helper()
	clk := testclock.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	ids := &ident.Sequence{}
	log := audit.New(b, ids, clk)
	dir := directory.NewService(b, log, clk)
	notes := notify.NewSink(b, ids, clk)
	return &stack{
		backend: b,
		dir:     dir,
		notes:   notes,
		log:     log,
		backup:  New(b, clk, dir.Users(), dir.CoursesCollection(), notes.Collection(), log.Collection()),
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	bolt, err := store.OpenBolt(filepath.Join(t.TempDir(), "amalnama.db"))
	require.NoError(t, err)
	defer bolt.Close()

	src := newStack(t, bolt)
	require.NoError(t, src.dir.Users().Put(ctx, model.User{ID: "T-5678", Name: "Prof. Sarah Ahmed", Role: model.RoleTeacher}))
	require.NoError(t, src.dir.Users().Put(ctx, model.User{ID: "21K-1234", Name: "Ali Ibrahim", Role: model.RoleStudent}))
	_, err = src.notes.Create(ctx, "21K-1234", model.SeverityWarning, "Attendance Reminder", "...")
	require.NoError(t, err)
	require.NoError(t, store.SetFlag(ctx, bolt, store.SeededKey, true))

	doc, err := src.backup.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), doc.Timestamp)
	assert.Contains(t, doc.Data, store.UsersKey)
	assert.Contains(t, doc.Data, store.NotificationsKey)
	assert.NotContains(t, doc.Data, store.CoursesKey, "empty collections are skipped")
	assert.NotContains(t, doc.Data, store.AuditLogKey)
	assert.Equal(t, "true", doc.Data[store.SeededKey])

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))
	decoded, err := Read(&buf)
	require.NoError(t, err)

	dst := newStack(t, store.NewMemory())
	require.NoError(t, dst.dir.Users().Put(ctx, model.User{ID: "X-1", Name: "Stale", Role: model.RoleAdmin}))
	decoded.Data[store.CurrentUserKey] = `{"id":"A-0001"}`

	res, err := dst.backup.Import(ctx, decoded)
	require.NoError(t, err)
	assert.Equal(t, []string{store.NotificationsKey, store.SeededKey, store.UsersKey}, res.Restored)
	assert.Equal(t, []string{store.CurrentUserKey}, res.Ignored)

	users, err := dst.dir.All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2, "import replaces the collection wholesale")
	teachers, err := dst.dir.ByRole(ctx, model.RoleTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "T-5678", teachers[0].ID)

	unread, err := dst.notes.UnreadCount(ctx, "21K-1234")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	seeded, err := store.Flag(ctx, dst.backend, store.SeededKey)
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestImportBrowserExport(t *testing.T) {
	ctx := context.Background()
	raw := `{
  "timestamp": "2024-02-10T08:30:00.000Z",
  "data": {
    "amal_users": "[{\"id\":\"21K-1235\",\"name\":\"Azka Faisal\",\"role\":\"student\",\"password\":\"student123\",\"email\":\"azka@student.edu\"}]",
    "amal_audit_log": "[{\"id\":\"audit_1\",\"action\":\"USER_LOGIN\",\"userId\":\"21K-1235\",\"userName\":\"Azka Faisal\",\"details\":\"student logged in\",\"timestamp\":\"2024-02-10T08:00:00.000Z\"}]",
    "amal_seeded": "true"
  }
}`
	doc, err := Read(bytes.NewBufferString(raw))
	require.NoError(t, err)

	s := newStack(t, store.NewMemory())
	_, err = s.backup.Import(ctx, doc)
	require.NoError(t, err)

	u, err := s.dir.Authenticate(ctx, "21K-1235", "student123")
	require.NoError(t, err)
	assert.Equal(t, "Azka Faisal", u.Name)

	entries, err := s.log.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.UserLogin, entries[0].Action)
}

func TestImportRejectsBadPayloadBeforeWriting(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, store.NewMemory())
	require.NoError(t, s.dir.Users().Put(ctx, model.User{ID: "A-0001", Name: "Dr. Ahmed Khan", Role: model.RoleAdmin}))

	_, err := s.backup.Import(ctx, Document{Data: map[string]string{
		store.AuditLogKey: "[]",
		store.UsersKey:    "{not json",
	}})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = s.backup.Import(ctx, Document{Data: map[string]string{store.SeededKey: "maybe"}})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = s.backup.Import(ctx, Document{})
	assert.True(t, errors.Is(err, errors.NotValid))

	users, err := s.dir.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = Read(bytes.NewBufferString("nope"))
	assert.True(t, errors.Is(err, errors.NotValid))
}
