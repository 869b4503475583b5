package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/mocks"
	"github.com/castpost/castpost-api/internal/publish"
)

func testAdapter(t *testing.T, baseURL, uploadBaseURL string) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	retry := publish.NewRetryPolicy(0, 10*time.Millisecond, 100*time.Millisecond, mocks.NewFakeClock(time.Now()))
	return New(Config{BaseURL: baseURL, UploadBaseURL: uploadBaseURL}, retry, logger)
}

func testCred() *credential.Credential {
	return &credential.Credential{AccessToken: "x-token", AccountID: "user1"}
}

type tweetStub struct {
	mu     sync.Mutex
	posts  []map[string]any
	nextID int
}

func (s *tweetStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		require.Equal(t, "/2/tweets", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.posts = append(s.posts, body)
		s.nextID++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"tweet_%d"}}`, s.nextID)
	}
}

func TestSplitThread(t *testing.T) {
	t.Parallel()

	t.Run("short text stays one chunk without numbering", func(t *testing.T) {
		t.Parallel()

		chunks := splitThread("short post", 280)
		assert.Equal(t, []string{"short post"}, chunks)
	})

	t.Run("long text splits on word boundaries with numbering", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("word ", 200) // 1000 chars
		chunks := splitThread(strings.TrimSpace(text), 280)

		require.Greater(t, len(chunks), 1)
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk)), 280, "chunk %d too long", i)
			assert.True(t, strings.HasSuffix(chunk, fmt.Sprintf("(%d/%d)", i+1, len(chunks))),
				"chunk %d missing numbering: %q", i, chunk)
		}

		// Reassembling the chunks without numbering restores the words.
		var words []string
		for _, chunk := range chunks {
			body := chunk[:strings.LastIndex(chunk, " (")]
			words = append(words, strings.Fields(body)...)
		}
		assert.Len(t, words, 200)
	})

	t.Run("oversized single word is split mid-word", func(t *testing.T) {
		t.Parallel()

		chunks := splitThread(strings.Repeat("a", 600), 280)
		require.Greater(t, len(chunks), 1)
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk)), 280, "chunk %d too long", i)
		}
	})

	t.Run("whitespace-only caption yields one empty chunk", func(t *testing.T) {
		t.Parallel()

		chunks := splitThread(strings.Repeat(" ", 400), 280)
		assert.Equal(t, []string{""}, chunks)
	})

	t.Run("hundreds of chunks keep numbering within the limit", func(t *testing.T) {
		t.Parallel()

		text := strings.TrimSpace(strings.Repeat("word ", 8000)) // ~40k chars
		chunks := splitThread(text, 280)

		require.GreaterOrEqual(t, len(chunks), 100)
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk)), 280, "chunk %d too long", i)
			assert.True(t, strings.HasSuffix(chunk, fmt.Sprintf("(%d/%d)", i+1, len(chunks))),
				"chunk %d missing numbering: %q", i, chunk)
		}
	})
}

func TestAdapter_Publish_SinglePost(t *testing.T) {
	t.Parallel()

	stub := &tweetStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	a := testAdapter(t, server.URL, "http://unused")

	postID, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "hello x"})

	require.NoError(t, err)
	assert.Equal(t, "tweet_1", postID)

	require.Len(t, stub.posts, 1)
	assert.Equal(t, "hello x", stub.posts[0]["text"])
	assert.NotContains(t, stub.posts[0], "reply")
}

func TestAdapter_Publish_ThreadChainsReplies(t *testing.T) {
	t.Parallel()

	stub := &tweetStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	a := testAdapter(t, server.URL, "http://unused")

	caption := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 30))
	postID, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: caption})

	require.NoError(t, err)
	assert.Equal(t, "tweet_1", postID, "returned ID is the first post of the thread")

	require.Greater(t, len(stub.posts), 1)
	assert.NotContains(t, stub.posts[0], "reply")
	for i := 1; i < len(stub.posts); i++ {
		reply := stub.posts[i]["reply"].(map[string]any)
		assert.Equal(t, fmt.Sprintf("tweet_%d", i), reply["in_reply_to_tweet_id"],
			"post %d should reply to the previous post", i)
	}
}

func TestAdapter_Publish_WithMedia(t *testing.T) {
	t.Parallel()

	stub := &tweetStub{}
	apiServer := httptest.NewServer(stub.handler(t))
	defer apiServer.Close()

	uploadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1.1/media/upload.json", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))
		file, _, err := r.FormFile("media")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg-bytes"), data)
		w.Write([]byte(`{"media_id_string":"media_55"}`))
	}))
	defer uploadServer.Close()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "jpeg-bytes")
	}))
	defer cdn.Close()

	a := testAdapter(t, apiServer.URL, uploadServer.URL)

	content := publish.Content{
		Caption: "with media",
		Media:   []domain.Media{{URL: cdn.URL + "/a.jpg", Type: domain.MediaTypeImage, Order: 0}},
	}

	_, err := a.Publish(context.Background(), testCred(), content)

	require.NoError(t, err)
	require.Len(t, stub.posts, 1)
	media := stub.posts[0]["media"].(map[string]any)
	assert.Equal(t, []any{"media_55"}, media["media_ids"])
}

func TestAdapter_Publish_RateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"title":"Too Many Requests","detail":"Rate limit exceeded"}`))
	}))
	defer server.Close()

	a := testAdapter(t, server.URL, "http://unused")

	_, err := a.Publish(context.Background(), testCred(), publish.Content{Caption: "hi"})

	require.Error(t, err)
	assert.Equal(t, publish.KindRateLimit, publish.KindOf(err))
	assert.True(t, publish.IsTransient(err))
}

func TestFitImage(t *testing.T) {
	t.Parallel()

	t.Run("data under ceiling passes through", func(t *testing.T) {
		t.Parallel()

		data := []byte("small")
		out, err := fitImage(data, 100)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("oversized image is recompressed under ceiling", func(t *testing.T) {
		t.Parallel()

		data := noisyPNG(t, 256)
		ceiling := len(data) / 2
		require.Greater(t, len(data), ceiling)

		out, err := fitImage(data, ceiling)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), ceiling)

		_, format, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("undecodable data over ceiling is a validation error", func(t *testing.T) {
		t.Parallel()

		_, err := fitImage(bytes.Repeat([]byte{0xAB}, 64), 10)
		require.Error(t, err)
		assert.Equal(t, publish.KindValidation, publish.KindOf(err))
	})
}

// noisyPNG builds a PNG of random pixels, which compresses poorly and so
// reliably exceeds a fraction of its own size until JPEG-encoded.
func noisyPNG(t *testing.T, side int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
