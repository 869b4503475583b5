// Package x implements the X (Twitter) publishing adapter.
//
// Captions longer than the per-post character limit are split into a thread:
// each chunk is numbered "(i/n)" and posted as a reply to the previous one,
// with media attached to the first post only. Images over the upload size
// ceiling are recompressed as JPEG at decreasing quality before upload.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered so PNG media can be recompressed to JPEG
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/publish"
)

const (
	defaultBaseURL       = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com"

	// maxPostRunes is the per-post character limit.
	maxPostRunes = 280

	// numberingReserve leaves room for the " (i/n)" suffix on thread chunks.
	numberingReserve = 8

	// maxImageBytes is the image upload ceiling; larger images are
	// recompressed until they fit.
	maxImageBytes = 5 << 20

	// maxVideoBytes is the video upload ceiling. Videos are never recompressed.
	maxVideoBytes = 512 << 20
)

// jpegQualitySteps are tried in order until the encoded image fits the ceiling.
var jpegQualitySteps = []int{85, 75, 65, 55, 45, 35}

// Config holds adapter settings. Empty URLs use the production endpoints.
type Config struct {
	BaseURL       string
	UploadBaseURL string
	Timeout       time.Duration
}

// Adapter publishes content to an X account.
type Adapter struct {
	httpClient    *http.Client
	baseURL       string
	uploadBaseURL string
	retry         *publish.RetryPolicy
	logger        *slog.Logger
}

// New creates an X adapter. retry may be nil, in which case the default retry
// policy is used.
func New(cfg Config, retry *publish.RetryPolicy, logger *slog.Logger) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	uploadBaseURL := cfg.UploadBaseURL
	if uploadBaseURL == "" {
		uploadBaseURL = defaultUploadBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if retry == nil {
		retry = publish.NewRetryPolicy(3, 2*time.Second, 30*time.Second, nil)
	}

	return &Adapter{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		uploadBaseURL: strings.TrimRight(uploadBaseURL, "/"),
		retry:         retry,
		logger:        logger.With(slog.String("adapter", "x")),
	}
}

// Name returns the adapter's platform API name.
func (a *Adapter) Name() string { return "x" }

// Publish posts the content, splitting long captions into a reply thread, and
// returns the ID of the first post.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	mediaIDs := make([]string, 0, len(content.Media))
	for i, media := range content.Media {
		mediaID, err := a.uploadMedia(ctx, cred, media)
		if err != nil {
			return "", fmt.Errorf("uploading media %d: %w", i, err)
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	chunks := splitThread(content.Caption, maxPostRunes)

	var firstID, previousID string
	for i, text := range chunks {
		var ids []string
		if i == 0 {
			ids = mediaIDs
		}

		postID, err := a.createPost(ctx, cred, text, ids, previousID)
		if err != nil {
			if i > 0 {
				a.logger.WarnContext(ctx, "thread partially posted",
					slog.Int("posted", i),
					slog.Int("total", len(chunks)))
			}
			return "", fmt.Errorf("posting thread chunk %d of %d: %w", i+1, len(chunks), err)
		}

		if i == 0 {
			firstID = postID
		}
		previousID = postID
	}

	return firstID, nil
}

// splitThread breaks text into chunks that fit limit runes each, numbering
// them " (i/n)" when there is more than one. Splits happen on word
// boundaries; a single word longer than the limit is split mid-word.
func splitThread(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		// A whitespace-only caption collapses to one empty chunk; the
		// create call then surfaces the platform's validation error
		// instead of skipping the post.
		return []string{""}
	}

	// The numbering suffix widens with the chunk count, which in turn
	// depends on the per-chunk budget. Re-split until the reserve fits
	// the suffix the final count needs.
	reserve := numberingReserve
	for {
		chunks := packWords(words, limit-reserve)
		if len(chunks) == 1 {
			return chunks
		}

		suffix := len([]rune(fmt.Sprintf(" (%d/%d)", len(chunks), len(chunks))))
		if suffix > reserve {
			reserve = suffix
			continue
		}

		for i := range chunks {
			chunks[i] = fmt.Sprintf("%s (%d/%d)", chunks[i], i+1, len(chunks))
		}
		return chunks
	}
}

// packWords greedily packs words into chunks of at most budget runes each.
// A single word longer than the budget is split mid-word.
func packWords(words []string, budget int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range words {
		wordRunes := []rune(word)

		for len(wordRunes) > budget {
			flush()
			chunks = append(chunks, string(wordRunes[:budget]))
			wordRunes = wordRunes[budget:]
		}

		sep := 0
		if currentLen > 0 {
			sep = 1
		}
		if currentLen+sep+len(wordRunes) > budget {
			flush()
			sep = 0
		}
		if sep == 1 {
			current.WriteRune(' ')
			currentLen++
		}
		current.WriteString(string(wordRunes))
		currentLen += len(wordRunes)
	}
	flush()

	return chunks
}

// createPost creates one post, attaching mediaIDs and replying to replyTo
// when set.
func (a *Adapter) createPost(ctx context.Context, cred *credential.Credential, text string, mediaIDs []string, replyTo string) (string, error) {
	body := map[string]any{"text": text}
	if len(mediaIDs) > 0 {
		body["media"] = map[string]any{"media_ids": mediaIDs}
	}
	if replyTo != "" {
		body["reply"] = map[string]any{"in_reply_to_tweet_id": replyTo}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", publish.NewError(publish.KindUnknown, "", "failed to encode post", err)
	}

	var postID string
	err = a.retry.Do(ctx, "x post create", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.baseURL+"/2/tweets", bytes.NewReader(payload))
		if err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "post request failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "failed to read response", err)
		}

		if resp.StatusCode >= 400 {
			return mapAPIError(resp.StatusCode, raw)
		}

		var decoded struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode post response", err)
		}
		if decoded.Data.ID == "" {
			return publish.NewError(publish.KindUnknown, "", "post response missing id", nil)
		}

		postID = decoded.Data.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	return postID, nil
}

// uploadMedia downloads the media, fits it under the upload ceiling, and
// uploads it, returning the media ID.
func (a *Adapter) uploadMedia(ctx context.Context, cred *credential.Credential, media domain.Media) (string, error) {
	data, err := a.downloadMedia(ctx, media.URL)
	if err != nil {
		return "", err
	}

	switch media.Type {
	case domain.MediaTypeImage:
		data, err = fitImage(data, maxImageBytes)
		if err != nil {
			return "", err
		}
	case domain.MediaTypeVideo:
		if len(data) > maxVideoBytes {
			return "", publish.NewError(publish.KindValidation, "",
				fmt.Sprintf("video exceeds %d byte upload limit", maxVideoBytes), nil)
		}
	default:
		return "", publish.NewError(publish.KindValidation, "",
			fmt.Sprintf("unsupported media type %q", media.Type), nil)
	}

	var mediaID string
	err = a.retry.Do(ctx, "x media upload", func(ctx context.Context) error {
		var form bytes.Buffer
		writer := multipart.NewWriter(&form)
		part, err := writer.CreateFormFile("media", "media")
		if err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build upload form", err)
		}
		if _, err := part.Write(data); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build upload form", err)
		}
		if err := writer.Close(); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build upload form", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.uploadBaseURL+"/1.1/media/upload.json", &form)
		if err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "media upload failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "failed to read upload response", err)
		}

		if resp.StatusCode >= 400 {
			return mapAPIError(resp.StatusCode, raw)
		}

		var decoded struct {
			MediaIDString string `json:"media_id_string"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode upload response", err)
		}
		if decoded.MediaIDString == "" {
			return publish.NewError(publish.KindUnknown, "", "upload response missing media id", nil)
		}

		mediaID = decoded.MediaIDString
		return nil
	})
	if err != nil {
		return "", err
	}

	return mediaID, nil
}

// fitImage returns data unchanged when it fits the ceiling; otherwise it
// re-encodes the image as JPEG at decreasing quality until it fits.
func fitImage(data []byte, ceiling int) ([]byte, error) {
	if len(data) <= ceiling {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, publish.NewError(publish.KindValidation, "",
			"image exceeds upload limit and cannot be decoded for recompression", err)
	}

	for _, quality := range jpegQualitySteps {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, publish.NewError(publish.KindUnknown, "", "jpeg encode failed", err)
		}
		if buf.Len() <= ceiling {
			return buf.Bytes(), nil
		}
	}

	return nil, publish.NewError(publish.KindValidation, "",
		fmt.Sprintf("image cannot be compressed under the %d byte upload limit", ceiling), nil)
}

func (a *Adapter) downloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	var data []byte
	err := a.retry.Do(ctx, "x media download", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return publish.NewError(publish.KindValidation, "", "invalid media url", err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "media download failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			return publish.StatusError(resp.StatusCode, "media download failed", nil)
		}

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes+1))
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "reading media body failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// mapAPIError handles both the v2 problem envelope and the v1.1 errors array.
func mapAPIError(status int, body []byte) error {
	var v2 struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &v2); err == nil && v2.Title != "" {
		msg := v2.Title
		if v2.Detail != "" {
			msg = v2.Title + ": " + v2.Detail
		}
		return publish.NewError(publish.ClassifyStatus(status), "", msg, nil)
	}

	var v1 struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &v1); err == nil && len(v1.Errors) > 0 {
		first := v1.Errors[0]
		kind := publish.ClassifyStatus(status)
		switch first.Code {
		case 89: // invalid or expired token
			kind = publish.KindAuth
		case 88: // rate limit exceeded
			kind = publish.KindRateLimit
		}
		return publish.NewError(kind, fmt.Sprintf("%d", first.Code), first.Message, nil)
	}

	return publish.StatusError(status, string(body), nil)
}
