package linkedin_test

import (
	"context"
	"encoding/json"
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
	"github.com/castpost/castpost-api/internal/platform/linkedin"
	"github.com/castpost/castpost-api/internal/publish"
)

func testAdapter(t *testing.T, baseURL string) *linkedin.Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	retry := publish.NewRetryPolicy(0, 10*time.Millisecond, 100*time.Millisecond, mocks.NewFakeClock(time.Now()))
	return linkedin.New(linkedin.Config{BaseURL: baseURL}, retry, logger)
}

func testCred() *credential.Credential {
	return &credential.Credential{AccessToken: "li-token", AccountID: "urn:li:person:abc"}
}

// apiStub simulates both the REST API and the separate upload endpoints it
// hands out.
type apiStub struct {
	mu        sync.Mutex
	server    *httptest.Server
	posts     []map[string]any
	uploads   map[string][]byte
	finalized []map[string]any
	nextAsset int
}

func newAPIStub(t *testing.T) *apiStub {
	s := &apiStub{uploads: map[string][]byte{}}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		action := r.URL.Query().Get("action")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/posts":
			assert.Equal(t, "202405", r.Header.Get("LinkedIn-Version"))
			assert.Equal(t, "Bearer li-token", r.Header.Get("Authorization"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.posts = append(s.posts, body)
			w.Header().Set("X-RestLi-Id", "urn:li:share:123")
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodPost && r.URL.Path == "/images" && action == "initializeUpload":
			s.nextAsset++
			fmt.Fprintf(w, `{"value":{"uploadUrl":"%s/upload/img%d","image":"urn:li:image:%d"}}`,
				s.server.URL, s.nextAsset, s.nextAsset)

		case r.Method == http.MethodPost && r.URL.Path == "/videos" && action == "initializeUpload":
			s.nextAsset++
			fmt.Fprintf(w, `{"value":{"uploadInstructions":[{"uploadUrl":"%s/upload/vid%d"}],"video":"urn:li:video:%d"}}`,
				s.server.URL, s.nextAsset, s.nextAsset)

		case r.Method == http.MethodPost && r.URL.Path == "/videos" && action == "finalizeUpload":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.finalized = append(s.finalized, body)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPut:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			s.uploads[r.URL.Path] = data
			w.Header().Set("ETag", "etag-1")
			w.WriteHeader(http.StatusCreated)

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return s
}

func mediaServer(payload string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
}

func TestAdapter_Publish_TextOnly(t *testing.T) {
	t.Parallel()

	stub := newAPIStub(t)
	defer stub.server.Close()

	a := testAdapter(t, stub.server.URL)

	postID, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "hello linkedin"})

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", postID)

	require.Len(t, stub.posts, 1)
	assert.Equal(t, "urn:li:person:abc", stub.posts[0]["author"])
	assert.Equal(t, "hello linkedin", stub.posts[0]["commentary"])
	assert.NotContains(t, stub.posts[0], "content")
}

func TestAdapter_Publish_SingleImage(t *testing.T) {
	t.Parallel()

	stub := newAPIStub(t)
	defer stub.server.Close()
	cdn := mediaServer("jpeg-bytes")
	defer cdn.Close()

	a := testAdapter(t, stub.server.URL)

	content := publish.Content{
		Caption: "with image",
		Media:   []domain.Media{{URL: cdn.URL + "/a.jpg", Type: domain.MediaTypeImage, Order: 0}},
	}

	postID, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", postID)

	assert.Equal(t, []byte("jpeg-bytes"), stub.uploads["/upload/img1"])

	require.Len(t, stub.posts, 1)
	contentBlock := stub.posts[0]["content"].(map[string]any)
	media := contentBlock["media"].(map[string]any)
	assert.Equal(t, "urn:li:image:1", media["id"])
}

func TestAdapter_Publish_MultiImage(t *testing.T) {
	t.Parallel()

	stub := newAPIStub(t)
	defer stub.server.Close()
	cdn := mediaServer("img")
	defer cdn.Close()

	a := testAdapter(t, stub.server.URL)

	content := publish.Content{
		Caption: "gallery",
		Media: []domain.Media{
			{URL: cdn.URL + "/1.jpg", Type: domain.MediaTypeImage, Order: 0},
			{URL: cdn.URL + "/2.jpg", Type: domain.MediaTypeImage, Order: 1},
		},
	}

	_, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	require.Len(t, stub.posts, 1)
	contentBlock := stub.posts[0]["content"].(map[string]any)
	multiImage := contentBlock["multiImage"].(map[string]any)
	images := multiImage["images"].([]any)
	require.Len(t, images, 2)
	assert.Equal(t, "urn:li:image:1", images[0].(map[string]any)["id"])
	assert.Equal(t, "urn:li:image:2", images[1].(map[string]any)["id"])
}

func TestAdapter_Publish_VideoUploadsAndFinalizes(t *testing.T) {
	t.Parallel()

	stub := newAPIStub(t)
	defer stub.server.Close()
	cdn := mediaServer("mp4-bytes")
	defer cdn.Close()

	a := testAdapter(t, stub.server.URL)

	content := publish.Content{
		Caption: "clip",
		Media:   []domain.Media{{URL: cdn.URL + "/v.mp4", Type: domain.MediaTypeVideo, Order: 0}},
	}

	postID, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", postID)

	assert.Equal(t, []byte("mp4-bytes"), stub.uploads["/upload/vid1"])

	require.Len(t, stub.finalized, 1)
	finalize := stub.finalized[0]["finalizeUploadRequest"].(map[string]any)
	assert.Equal(t, "urn:li:video:1", finalize["video"])
	assert.Equal(t, []any{"etag-1"}, finalize["uploadedPartIds"])
}

func TestAdapter_Publish_RejectsMixedMedia(t *testing.T) {
	t.Parallel()

	a := testAdapter(t, "http://unused")

	content := publish.Content{
		Caption: "mixed",
		Media: []domain.Media{
			{URL: "https://cdn.example.com/a.jpg", Type: domain.MediaTypeImage, Order: 0},
			{URL: "https://cdn.example.com/v.mp4", Type: domain.MediaTypeVideo, Order: 1},
		},
	}

	_, err := a.Publish(context.Background(), testCred(), content)

	require.Error(t, err)
	assert.Equal(t, publish.KindValidation, publish.KindOf(err))
}

func TestAdapter_Publish_RejectsMultipleVideos(t *testing.T) {
	t.Parallel()

	a := testAdapter(t, "http://unused")

	content := publish.Content{
		Caption: "two clips",
		Media: []domain.Media{
			{URL: "https://cdn.example.com/1.mp4", Type: domain.MediaTypeVideo, Order: 0},
			{URL: "https://cdn.example.com/2.mp4", Type: domain.MediaTypeVideo, Order: 1},
		},
	}

	_, err := a.Publish(context.Background(), testCred(), content)

	require.Error(t, err)
	assert.Equal(t, publish.KindValidation, publish.KindOf(err))
}

func TestAdapter_Publish_AuthErrorFromAPI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid access token","serviceErrorCode":65600,"status":401}`))
	}))
	defer server.Close()

	a := testAdapter(t, server.URL)

	_, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "hi"})

	require.Error(t, err)
	assert.Equal(t, publish.KindAuth, publish.KindOf(err))
}
