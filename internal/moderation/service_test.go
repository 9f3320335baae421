package moderation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sujalbistaa/slidont/internal/db"
	"github.com/sujalbistaa/slidont/internal/models"
)

const (
	testSlug   = "test-event"
	testSecret = "presenter-secret"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) Notify(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

type fixture struct {
	svc     *Service
	clock   *fakeClock
	changes *changeRecorder
	event   *models.Event
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "moderation.db")
	database, err := db.Init(context.Background(), url, db.Options{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	t.Cleanup(func() { _ = db.Close(database) })
	return database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	changes := &changeRecorder{}
	svc := NewService(openDB(t), Options{
		Seed:     SeedConfig{Slug: testSlug, Title: "Test Event", Secret: testSecret},
		Notifier: changes,
		Now:      clock.Now,
	})
	event, err := svc.Events.EnsureSeed(context.Background())
	require.NoError(t, err)
	return &fixture{svc: svc, clock: clock, changes: changes, event: event}
}

func (f *fixture) question(t *testing.T, content string) *models.Question {
	t.Helper()
	q, err := f.svc.Questions.Create(context.Background(), CreateInput{
		EventSlug:   testSlug,
		Content:     content,
		AuthorName:  "Ryo",
		AuthorColor: "#ff8800",
		SessionID:   "author-session",
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) buzz(t *testing.T, content string) *models.Buzz {
	t.Helper()
	b, err := f.svc.Buzz.Create(context.Background(), CreateInput{
		EventSlug:   testSlug,
		Content:     content,
		AuthorName:  "Anonymous",
		IsAnonymous: true,
		AuthorColor: "#00aaff",
		SessionID:   "author-session",
	})
	require.NoError(t, err)
	return b
}

func sessions(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("session-%d", i)
	}
	return out
}

func TestNewService_DefaultsClock(t *testing.T) {
	svc := NewService(openDB(t), Options{})
	before := time.Now().UnixMilli()
	assert.GreaterOrEqual(t, svc.core.millis(), before)
	assert.NotNil(t, svc.DB())
}

func TestNewID_MonotonicWithinMillisecond(t *testing.T) {
	f := newFixture(t)
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := f.svc.core.newID()
		require.NoError(t, err)
		assert.Len(t, id, 26)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNotifiers_FanOut(t *testing.T) {
	var got []string
	ns := Notifiers{
		NotifierFunc(func(_ context.Context, c Change) { got = append(got, "a:"+c.ItemID) }),
		nil,
		NotifierFunc(func(_ context.Context, c Change) { got = append(got, "b:"+c.ItemID) }),
	}
	ns.Notify(context.Background(), Change{ItemID: "x"})
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestChanges_EmittedAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.question(t, "Why Go?")
	_, err := f.svc.Questions.ToggleVote(ctx, q.ID, "s1")
	require.NoError(t, err)
	_, err = f.svc.Questions.ToggleFlag(ctx, q.ID, "s1")
	require.NoError(t, err)
	_, err = f.svc.MarkDone(ctx, q.ID, testSlug, testSecret)
	require.NoError(t, err)

	changes := f.changes.all()
	require.Len(t, changes, 4)
	types := []ChangeType{changes[0].Type, changes[1].Type, changes[2].Type, changes[3].Type}
	assert.Equal(t, []ChangeType{ChangeItemCreated, ChangeVoteToggled, ChangeFlagToggled, ChangeItemDone}, types)
	for _, c := range changes {
		assert.Equal(t, "question", c.Kind)
		assert.Equal(t, f.event.ID, c.EventID)
		assert.Equal(t, q.ID, c.ItemID)
		assert.Equal(t, f.clock.Now().UnixMilli(), c.At)
	}
}

func TestChanges_NotEmittedOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Questions.ToggleVote(ctx, "missing", "s1")
	require.Error(t, err)
	_, err = f.svc.MarkDone(ctx, "missing", testSlug, "wrong")
	require.Error(t, err)

	assert.Empty(t, f.changes.all())
}
