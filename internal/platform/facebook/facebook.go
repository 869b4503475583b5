// Package facebook implements the Facebook Page publishing adapter.
//
// Text-only posts go straight to the page feed. Posts with an image first
// upload the photo unpublished, then attach it to a feed post so the caption
// and media land as a single story.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/platform/meta"
	"github.com/castpost/castpost-api/internal/publish"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Config holds adapter settings. An empty BaseURL uses the production Graph API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter publishes content to a Facebook Page feed.
type Adapter struct {
	client *meta.Client
	retry  *publish.RetryPolicy
	logger *slog.Logger
}

// New creates a Facebook adapter. retry may be nil, in which case the default
// retry policy is used.
func New(cfg Config, retry *publish.RetryPolicy, logger *slog.Logger) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if retry == nil {
		retry = publish.NewRetryPolicy(3, 2*time.Second, 30*time.Second, nil)
	}

	return &Adapter{
		client: meta.NewClient(baseURL, timeout),
		retry:  retry,
		logger: logger.With(slog.String("adapter", "facebook")),
	}
}

// Name returns the adapter's platform API name.
func (a *Adapter) Name() string { return "facebook" }

// Publish posts content to the page identified by cred.AccountID and returns
// the created post ID.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	if !content.HasMedia() {
		return a.publishFeed(ctx, cred, content.Caption, "")
	}

	media := content.PrimaryMedia()
	if media.Type != domain.MediaTypeImage {
		return "", publish.NewError(publish.KindValidation, "",
			fmt.Sprintf("facebook feed posts support image media only, got %s", media.Type), nil)
	}

	photoID, err := a.uploadPhoto(ctx, cred, media.URL)
	if err != nil {
		return "", fmt.Errorf("uploading photo: %w", err)
	}

	a.logger.InfoContext(ctx, "photo uploaded", slog.String("photo_id", photoID))

	return a.publishFeed(ctx, cred, content.Caption, photoID)
}

// uploadPhoto uploads the image at mediaURL without publishing it, so the
// subsequent feed post can attach it.
func (a *Adapter) uploadPhoto(ctx context.Context, cred *credential.Credential, mediaURL string) (string, error) {
	params := url.Values{}
	params.Set("url", mediaURL)
	params.Set("published", "false")
	params.Set("temporary", "true")

	var photoID string
	err := a.retry.Do(ctx, "facebook photo upload", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/photos", cred.AccessToken, params)
		if err != nil {
			return err
		}
		id, err := decodeID(body)
		if err != nil {
			return err
		}
		photoID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return photoID, nil
}

// publishFeed creates the feed post, attaching photoID when non-empty.
func (a *Adapter) publishFeed(ctx context.Context, cred *credential.Credential, message, photoID string) (string, error) {
	params := url.Values{}
	params.Set("message", message)
	if photoID != "" {
		attached, err := json.Marshal([]map[string]string{{"media_fbid": photoID}})
		if err != nil {
			return "", publish.NewError(publish.KindUnknown, "", "failed to encode attached media", err)
		}
		params.Set("attached_media", string(attached))
	}

	var postID string
	err := a.retry.Do(ctx, "facebook feed post", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/feed", cred.AccessToken, params)
		if err != nil {
			return err
		}
		id, err := decodeID(body)
		if err != nil {
			return err
		}
		postID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return postID, nil
}

func decodeID(body json.RawMessage) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", publish.NewError(publish.KindUnknown, "", "failed to decode graph response", err)
	}
	if resp.ID == "" {
		return "", publish.NewError(publish.KindUnknown, "", "graph response missing id", nil)
	}
	return resp.ID, nil
}
