// Package linkedin implements the LinkedIn publishing adapter.
//
// Media is uploaded through LinkedIn's versioned REST API: an initializeUpload
// action reserves an asset URN and upload URL, the binary is PUT to that URL,
// and videos additionally require a finalizeUpload action with the uploaded
// part's ETag. The post itself is created against /posts with the asset URNs
// attached.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/publish"
)

const (
	defaultBaseURL = "https://api.linkedin.com/rest"
	apiVersion     = "202405"

	// maxMediaBytes bounds in-memory media downloads.
	maxMediaBytes = 500 << 20
)

// Config holds adapter settings. An empty BaseURL uses the production API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter publishes content as the member or organization named by the
// credential's account URN.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	retry      *publish.RetryPolicy
	logger     *slog.Logger
}

// New creates a LinkedIn adapter. retry may be nil, in which case the default
// retry policy is used.
func New(cfg Config, retry *publish.RetryPolicy, logger *slog.Logger) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if retry == nil {
		retry = publish.NewRetryPolicy(3, 2*time.Second, 30*time.Second, nil)
	}

	return &Adapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retry,
		logger:     logger.With(slog.String("adapter", "linkedin")),
	}
}

// Name returns the adapter's platform API name.
func (a *Adapter) Name() string { return "linkedin" }

// Publish creates a post authored by cred.AccountID (a member or organization
// URN) and returns the post URN. Media must be either images or a single
// video; mixing the two is rejected before any upload starts.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	if err := validateMedia(content.Media); err != nil {
		return "", err
	}

	var postContent map[string]any

	switch {
	case !content.HasMedia():
		// text-only post, no content block

	case content.Media[0].Type == domain.MediaTypeVideo:
		videoURN, err := a.uploadVideo(ctx, cred, content.Media[0].URL)
		if err != nil {
			return "", fmt.Errorf("uploading video: %w", err)
		}
		postContent = map[string]any{"media": map[string]any{"id": videoURN}}

	default:
		urns := make([]string, 0, len(content.Media))
		for i, media := range content.Media {
			urn, err := a.uploadImage(ctx, cred, media.URL)
			if err != nil {
				return "", fmt.Errorf("uploading image %d: %w", i, err)
			}
			urns = append(urns, urn)
		}
		if len(urns) == 1 {
			postContent = map[string]any{"media": map[string]any{"id": urns[0]}}
		} else {
			images := make([]map[string]any, len(urns))
			for i, urn := range urns {
				images[i] = map[string]any{"id": urn}
			}
			postContent = map[string]any{"multiImage": map[string]any{"images": images}}
		}
	}

	return a.createPost(ctx, cred, content.Caption, postContent)
}

// validateMedia enforces the image-xor-video rule and the single-video limit.
func validateMedia(media []domain.Media) error {
	var images, videos int
	for _, m := range media {
		switch m.Type {
		case domain.MediaTypeImage:
			images++
		case domain.MediaTypeVideo:
			videos++
		default:
			return publish.NewError(publish.KindValidation, "",
				fmt.Sprintf("unsupported media type %q", m.Type), nil)
		}
	}

	if videos > 1 {
		return publish.NewError(publish.KindValidation, "",
			"linkedin posts support at most one video", nil)
	}
	if videos > 0 && images > 0 {
		return publish.NewError(publish.KindValidation, "",
			"linkedin posts cannot mix images and video", nil)
	}
	return nil
}

func (a *Adapter) createPost(ctx context.Context, cred *credential.Credential, commentary string, postContent map[string]any) (string, error) {
	body := map[string]any{
		"author":     cred.AccountID,
		"commentary": commentary,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution": "MAIN_FEED",
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	if postContent != nil {
		body["content"] = postContent
	}

	var postURN string
	err := a.retry.Do(ctx, "linkedin post create", func(ctx context.Context) error {
		resp, _, err := a.doJSON(ctx, http.MethodPost, "/posts", cred.AccessToken, body)
		if err != nil {
			return err
		}

		postURN = resp.Header.Get("X-RestLi-Id")
		if postURN == "" {
			return publish.NewError(publish.KindUnknown, "", "post response missing X-RestLi-Id header", nil)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return postURN, nil
}

// uploadImage reserves an image asset, uploads the binary, and returns the
// image URN. Image uploads need no finalize step.
func (a *Adapter) uploadImage(ctx context.Context, cred *credential.Credential, mediaURL string) (string, error) {
	data, err := a.downloadMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	var uploadURL, imageURN string
	err = a.retry.Do(ctx, "linkedin image initialize", func(ctx context.Context) error {
		body := map[string]any{
			"initializeUploadRequest": map[string]any{"owner": cred.AccountID},
		}
		_, raw, err := a.doJSON(ctx, http.MethodPost, "/images?action=initializeUpload", cred.AccessToken, body)
		if err != nil {
			return err
		}

		var resp struct {
			Value struct {
				UploadURL string `json:"uploadUrl"`
				Image     string `json:"image"`
			} `json:"value"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode initializeUpload response", err)
		}
		uploadURL = resp.Value.UploadURL
		imageURN = resp.Value.Image
		return nil
	})
	if err != nil {
		return "", err
	}

	if _, err := a.uploadBinary(ctx, cred, uploadURL, data); err != nil {
		return "", err
	}

	return imageURN, nil
}

// uploadVideo reserves a video asset, uploads the binary as a single part,
// and finalizes the upload with the part's ETag.
func (a *Adapter) uploadVideo(ctx context.Context, cred *credential.Credential, mediaURL string) (string, error) {
	data, err := a.downloadMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	var uploadURL, videoURN string
	err = a.retry.Do(ctx, "linkedin video initialize", func(ctx context.Context) error {
		body := map[string]any{
			"initializeUploadRequest": map[string]any{
				"owner":         cred.AccountID,
				"fileSizeBytes": len(data),
			},
		}
		_, raw, err := a.doJSON(ctx, http.MethodPost, "/videos?action=initializeUpload", cred.AccessToken, body)
		if err != nil {
			return err
		}

		var resp struct {
			Value struct {
				UploadInstructions []struct {
					UploadURL string `json:"uploadUrl"`
				} `json:"uploadInstructions"`
				Video string `json:"video"`
			} `json:"value"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode initializeUpload response", err)
		}
		if len(resp.Value.UploadInstructions) == 0 {
			return publish.NewError(publish.KindUnknown, "", "initializeUpload response missing upload instructions", nil)
		}
		uploadURL = resp.Value.UploadInstructions[0].UploadURL
		videoURN = resp.Value.Video
		return nil
	})
	if err != nil {
		return "", err
	}

	etag, err := a.uploadBinary(ctx, cred, uploadURL, data)
	if err != nil {
		return "", err
	}

	err = a.retry.Do(ctx, "linkedin video finalize", func(ctx context.Context) error {
		body := map[string]any{
			"finalizeUploadRequest": map[string]any{
				"video":           videoURN,
				"uploadToken":     "",
				"uploadedPartIds": []string{etag},
			},
		}
		_, _, err := a.doJSON(ctx, http.MethodPost, "/videos?action=finalizeUpload", cred.AccessToken, body)
		return err
	})
	if err != nil {
		return "", err
	}

	return videoURN, nil
}

// uploadBinary PUTs the media bytes to the upload URL and returns the ETag
// LinkedIn assigns to the part.
func (a *Adapter) uploadBinary(ctx context.Context, cred *credential.Credential, uploadURL string, data []byte) (string, error) {
	var etag string
	err := a.retry.Do(ctx, "linkedin binary upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to build upload request", err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return publish.NewError(publish.KindTransient, "", "binary upload failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return publish.StatusError(resp.StatusCode, string(raw), nil)
		}

		etag = resp.Header.Get("ETag")
		return nil
	})
	if err != nil {
		return "", err
	}

	return etag, nil
}

// downloadMedia fetches the media bytes from storage so they can be uploaded
// to LinkedIn. Download failures are transient: the storage URL is expected
// to be valid for the attempt's lifetime.
func (a *Adapter) downloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	var data []byte
	err := a.retry.Do(ctx, "linkedin media download", func(ctx context.Context) error {
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

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
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

// linkedinError is the REST API error envelope.
type linkedinError struct {
	Message          string `json:"message"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Status           int    `json:"status"`
}

// doJSON sends a JSON request with the versioned REST headers and returns the
// response plus its body on success.
func (a *Adapter) doJSON(ctx context.Context, method, path, token string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, publish.NewError(publish.KindUnknown, "", "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, publish.NewError(publish.KindUnknown, "", "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("LinkedIn-Version", apiVersion)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, nil, publish.NewError(publish.KindTransient, "", "linkedin request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, publish.NewError(publish.KindTransient, "", "failed to read linkedin response", err)
	}

	if resp.StatusCode >= 400 {
		var envelope linkedinError
		if unmarshalErr := json.Unmarshal(raw, &envelope); unmarshalErr == nil && envelope.Message != "" {
			return nil, nil, publish.NewError(
				publish.ClassifyStatus(resp.StatusCode),
				fmt.Sprintf("%d", envelope.ServiceErrorCode),
				envelope.Message,
				nil,
			)
		}
		return nil, nil, publish.StatusError(resp.StatusCode, string(raw), nil)
	}

	return resp, raw, nil
}
