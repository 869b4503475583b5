package threads_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/mocks"
	"github.com/castpost/castpost-api/internal/platform/threads"
	"github.com/castpost/castpost-api/internal/publish"
)

func testAdapter(t *testing.T, baseURL string) *threads.Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := mocks.NewFakeClock(time.Now())
	processor := publish.NewProcessor(publish.DefaultProcessorConfig(), clock)
	retry := publish.NewRetryPolicy(0, 10*time.Millisecond, 100*time.Millisecond, clock)
	return threads.New(threads.Config{BaseURL: baseURL}, processor, retry, logger)
}

func testCred() *credential.Credential {
	return &credential.Credential{AccessToken: "th-token", AccountID: "th456"}
}

type threadsStub struct {
	mu             sync.Mutex
	pollsUntilDone int
	polls          map[string]int
	created        []map[string]string
	published      []string
	nextID         int
}

func newThreadsStub(pollsUntilDone int) *threadsStub {
	return &threadsStub{pollsUntilDone: pollsUntilDone, polls: map[string]int{}}
}

func (g *threadsStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/th456/threads":
			require.NoError(t, r.ParseForm())
			params := map[string]string{}
			for k := range r.Form {
				params[k] = r.Form.Get(k)
			}
			g.created = append(g.created, params)
			g.nextID++
			fmt.Fprintf(w, `{"id":"container_%d"}`, g.nextID)

		case r.Method == http.MethodGet:
			id := r.URL.Path[1:]
			g.polls[id]++
			status := "IN_PROGRESS"
			if g.polls[id] > g.pollsUntilDone {
				status = "FINISHED"
			}
			fmt.Fprintf(w, `{"status":%q}`, status)

		case r.Method == http.MethodPost && r.URL.Path == "/th456/threads_publish":
			require.NoError(t, r.ParseForm())
			g.published = append(g.published, r.Form.Get("creation_id"))
			w.Write([]byte(`{"id":"thread_7"}`))

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestAdapter_Publish_TextOnly(t *testing.T) {
	t.Parallel()

	stub := newThreadsStub(0)
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	a := testAdapter(t, server.URL)

	postID, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "just text"})

	require.NoError(t, err)
	assert.Equal(t, "thread_7", postID)

	require.Len(t, stub.created, 1)
	assert.Equal(t, "TEXT", stub.created[0]["media_type"])
	assert.Equal(t, "just text", stub.created[0]["text"])
	assert.Equal(t, []string{"container_1"}, stub.published)
}

func TestAdapter_Publish_SingleVideoPollsUntilFinished(t *testing.T) {
	t.Parallel()

	stub := newThreadsStub(3)
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	a := testAdapter(t, server.URL)

	content := publish.Content{
		Caption: "clip",
		Media:   []domain.Media{{URL: "https://cdn.example.com/v.mp4", Type: domain.MediaTypeVideo, Order: 0}},
	}

	postID, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	assert.Equal(t, "thread_7", postID)

	require.Len(t, stub.created, 1)
	assert.Equal(t, "VIDEO", stub.created[0]["media_type"])
	assert.Equal(t, "https://cdn.example.com/v.mp4", stub.created[0]["video_url"])
	assert.Equal(t, 4, stub.polls["container_1"])
}

func TestAdapter_Publish_Carousel(t *testing.T) {
	t.Parallel()

	stub := newThreadsStub(0)
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	a := testAdapter(t, server.URL)

	content := publish.Content{
		Caption: "two images",
		Media: []domain.Media{
			{URL: "https://cdn.example.com/1.jpg", Type: domain.MediaTypeImage, Order: 0},
			{URL: "https://cdn.example.com/2.jpg", Type: domain.MediaTypeImage, Order: 1},
		},
	}

	postID, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	assert.Equal(t, "thread_7", postID)

	require.Len(t, stub.created, 3)
	assert.Equal(t, "CAROUSEL", stub.created[2]["media_type"])
	assert.Equal(t, "container_1,container_2", stub.created[2]["children"])
	assert.Equal(t, []string{"container_3"}, stub.published)
}

func TestAdapter_Publish_ContainerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Write([]byte(`{"id":"container_1"}`))
		case http.MethodGet:
			w.Write([]byte(`{"status":"ERROR"}`))
		}
	}))
	defer server.Close()

	a := testAdapter(t, server.URL)

	_, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "broken"})

	require.Error(t, err)
	assert.Equal(t, publish.KindValidation, publish.KindOf(err))
}
