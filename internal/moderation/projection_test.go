package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/models"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    SortBy
		wantErr bool
	}{
		{"", SortNew, false},
		{"new", SortNew, false},
		{"TOP", SortTop, false},
		{" top ", SortTop, false},
		{"hot", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		if tt.wantErr {
			assert.True(t, apperr.Is(err, apperr.ErrInvalidRequest), "ParseSort(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParseSort(%q)", tt.in)
	}
}

func ids[T any, PT Record[T]](items []T) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = PT(&items[i]).Base().ID
	}
	return out
}

func TestList_Orderings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q1 := f.question(t, "first")
	f.clock.Advance(time.Second)
	q2 := f.question(t, "second")
	f.clock.Advance(time.Second)
	q3 := f.question(t, "third")

	for _, s := range sessions(5) {
		_, err := f.svc.Questions.ToggleVote(ctx, q1.ID, s)
		require.NoError(t, err)
		_, err = f.svc.Questions.ToggleVote(ctx, q2.ID, s)
		require.NoError(t, err)
	}
	for _, s := range sessions(3) {
		_, err := f.svc.Questions.ToggleVote(ctx, q3.ID, s)
		require.NoError(t, err)
	}

	top, err := f.svc.Questions.List(ctx, testSlug, SortTop)
	require.NoError(t, err)
	assert.Equal(t, []string{q2.ID, q1.ID, q3.ID}, ids[models.Question](top))
	assert.Equal(t, []int{5, 5, 3}, []int{top[0].VoteCount, top[1].VoteCount, top[2].VoteCount})

	newest, err := f.svc.Questions.List(ctx, testSlug, SortNew)
	require.NoError(t, err)
	assert.Equal(t, []string{q3.ID, q2.ID, q1.ID}, ids[models.Question](newest))
}

func TestList_SameMillisecondFallsBackToID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.buzz(t, "a")
	b := f.buzz(t, "b")

	list, err := f.svc.Buzz.List(ctx, testSlug, SortTop)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids[models.Buzz](list))
}

func TestList_ExcludesHiddenItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	visible := f.question(t, "visible")
	flagged := f.question(t, "flagged")
	done := f.question(t, "done")

	for _, s := range sessions(FlagThreshold) {
		_, err := f.svc.Questions.ToggleFlag(ctx, flagged.ID, s)
		require.NoError(t, err)
	}
	_, err := f.svc.MarkDone(ctx, done.ID, testSlug, testSecret)
	require.NoError(t, err)

	list, err := f.svc.Questions.List(ctx, testSlug, SortNew)
	require.NoError(t, err)
	assert.Equal(t, []string{visible.ID}, ids[models.Question](list))

	all, err := f.svc.Questions.ListAll(ctx, testSlug)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{visible.ID, flagged.ID, done.ID}, ids[models.Question](all))
	assert.Equal(t, 2, f.svc.Questions.Pending(all))
}

func TestList_ScopedToEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := NewService(f.svc.DB(), Options{Seed: SeedConfig{Slug: "other", Secret: "x"}})
	_, err := other.Events.EnsureSeed(ctx)
	require.NoError(t, err)

	mine := f.buzz(t, "mine")
	_, err = other.Buzz.Create(ctx, CreateInput{EventSlug: "other", Content: "theirs", AuthorName: "z"})
	require.NoError(t, err)

	list, err := f.svc.Buzz.List(ctx, testSlug, SortNew)
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ids[models.Buzz](list))
}

func TestList_UnknownEventIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.question(t, "q")

	list, err := f.svc.Questions.List(ctx, "nope", SortTop)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	all, err := f.svc.Buzz.ListAll(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestPending_BuzzIsNeverDone(t *testing.T) {
	f := newFixture(t)
	f.buzz(t, "a")
	f.buzz(t, "b")

	all, err := f.svc.Buzz.ListAll(context.Background(), testSlug)
	require.NoError(t, err)
	assert.Equal(t, 2, f.svc.Buzz.Pending(all))
}
