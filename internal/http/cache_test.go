package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/slidont/internal/cache"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCachedList_FlaggedItemLeavesAfterWrite(t *testing.T) {
	listCache, mr := newTestCache(t)
	router := newCachedTestRouter(t, RouterOptions{}, listCache)

	w := do(t, router, http.MethodPost, "/api/events/"+slug+"/buzz", gin.H{"content": "spam", "authorName": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[item](t, w)

	for i := 0; i < 2; i++ {
		w = do(t, router, http.MethodGet, "/api/events/"+slug+"/buzz", nil)
		require.Equal(t, http.StatusOK, w.Code)
		listed := decode[[]item](t, w)
		require.Len(t, listed, 1)
		assert.Equal(t, b.ID, listed[0].ID)
	}
	assert.True(t, mr.Exists("slidont:list:buzz:"+slug+":new:g1"), "list should be cached: %v", mr.Keys())

	for _, s := range []string{"A", "B", "C"} {
		w = do(t, router, http.MethodPost, "/api/buzz/"+b.ID+"/flag", gin.H{"sessionId": s})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/events/"+slug+"/buzz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/events/"+slug+"/buzz/all", nil)
	all := decode[struct {
		Items []item `json:"items"`
	}](t, w)
	require.Len(t, all.Items, 1)
	assert.True(t, all.Items[0].HiddenByFlags)
}

func TestServeList_ReadAfterWriteDoesNotJoinEarlierRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	listCache, _ := newTestCache(t)
	env := &Env{Cache: listCache}

	var loads atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) (any, error) {
		if loads.Add(1) == 1 {
			close(started)
			<-release
			return []string{"stale"}, nil
		}
		return []string{"fresh"}, nil
	}
	serve := func() <-chan *httptest.ResponseRecorder {
		out := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			env.serveList(c, "question", slug, "new", load)
			out <- w
		}()
		return out
	}

	first := serve()
	<-started
	listCache.Invalidate(context.Background(), "question")

	select {
	case w := <-serve():
		assert.JSONEq(t, `["fresh"]`, w.Body.String())
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("read started after the write waited on the earlier read")
	}

	close(release)
	assert.JSONEq(t, `["stale"]`, (<-first).Body.String())

	// The earlier read was stored under the old generation and is not served.
	w := <-serve()
	assert.JSONEq(t, `["fresh"]`, w.Body.String())
	assert.EqualValues(t, 2, loads.Load())
}
