// Package instagram implements the Instagram publishing adapter.
//
// Instagram processes media asynchronously: every post goes through a media
// container that must be created, polled until processing finishes, and then
// published. Carousels additionally create one container per item and poll
// each child before assembling the parent container.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/platform/meta"
	"github.com/castpost/castpost-api/internal/publish"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Graph error code returned by media_publish when the container is still
// processing despite a ready poll result.
const mediaNotReadyCode = "9007"

// Config holds adapter settings. An empty BaseURL uses the production Graph API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter publishes content to an Instagram professional account.
type Adapter struct {
	client    *meta.Client
	processor *publish.Processor
	retry     *publish.RetryPolicy
	logger    *slog.Logger
}

// New creates an Instagram adapter. processor and retry may be nil, in which
// case defaults are used.
func New(cfg Config, processor *publish.Processor, retry *publish.RetryPolicy, logger *slog.Logger) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if processor == nil {
		processor = publish.NewProcessor(publish.DefaultProcessorConfig(), nil)
	}
	if retry == nil {
		retry = publish.NewRetryPolicy(3, 2*time.Second, 30*time.Second, nil)
	}

	return &Adapter{
		client:    meta.NewClient(baseURL, timeout),
		processor: processor,
		retry:     retry,
		logger:    logger.With(slog.String("adapter", "instagram")),
	}
}

// Name returns the adapter's platform API name.
func (a *Adapter) Name() string { return "instagram" }

// Publish posts content to the account identified by cred.AccountID and
// returns the published media ID. Text-only content is rejected: Instagram
// has no media-less post type.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	if !content.HasMedia() {
		return "", publish.NewError(publish.KindValidation, "",
			"instagram posts require at least one media item", nil)
	}

	if len(content.Media) == 1 {
		return a.publishSingle(ctx, cred, content)
	}

	return a.publishCarousel(ctx, cred, content)
}

func (a *Adapter) publishSingle(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	media := content.PrimaryMedia()

	params := url.Values{}
	params.Set("caption", content.Caption)
	switch media.Type {
	case domain.MediaTypeImage:
		params.Set("image_url", media.URL)
	case domain.MediaTypeVideo:
		params.Set("media_type", "REELS")
		params.Set("video_url", media.URL)
	default:
		return "", publish.NewError(publish.KindValidation, "",
			fmt.Sprintf("unsupported media type %q", media.Type), nil)
	}

	return a.processor.Run(ctx, &containerOps{adapter: a, cred: cred, createParams: params})
}

// publishCarousel creates one container per item, waits for each to finish
// processing, then runs the standard protocol on the parent container.
func (a *Adapter) publishCarousel(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	childIDs := make([]string, 0, len(content.Media))
	for i, media := range content.Media {
		params := url.Values{}
		params.Set("is_carousel_item", "true")
		switch media.Type {
		case domain.MediaTypeImage:
			params.Set("image_url", media.URL)
		case domain.MediaTypeVideo:
			params.Set("media_type", "VIDEO")
			params.Set("video_url", media.URL)
		default:
			return "", publish.NewError(publish.KindValidation, "",
				fmt.Sprintf("unsupported media type %q at position %d", media.Type, i), nil)
		}

		childID, err := a.createContainer(ctx, cred, params)
		if err != nil {
			return "", fmt.Errorf("creating carousel item %d: %w", i, err)
		}

		if err := a.processor.Await(ctx, func(ctx context.Context) (publish.ContainerStatus, error) {
			return a.containerStatus(ctx, cred, childID)
		}); err != nil {
			return "", fmt.Errorf("awaiting carousel item %d: %w", i, err)
		}

		childIDs = append(childIDs, childID)
	}

	a.logger.InfoContext(ctx, "carousel items ready", slog.Int("count", len(childIDs)))

	params := url.Values{}
	params.Set("media_type", "CAROUSEL")
	params.Set("children", strings.Join(childIDs, ","))
	params.Set("caption", content.Caption)

	return a.processor.Run(ctx, &containerOps{adapter: a, cred: cred, createParams: params})
}

// containerOps binds the shared container protocol to one pending container.
type containerOps struct {
	adapter      *Adapter
	cred         *credential.Credential
	createParams url.Values
}

func (o *containerOps) Create(ctx context.Context) (string, error) {
	return o.adapter.createContainer(ctx, o.cred, o.createParams)
}

func (o *containerOps) Status(ctx context.Context, containerID string) (publish.ContainerStatus, error) {
	return o.adapter.containerStatus(ctx, o.cred, containerID)
}

func (o *containerOps) Publish(ctx context.Context, containerID string) (string, error) {
	return o.adapter.publishContainer(ctx, o.cred, containerID)
}

func (a *Adapter) createContainer(ctx context.Context, cred *credential.Credential, params url.Values) (string, error) {
	var containerID string
	err := a.retry.Do(ctx, "instagram container create", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/media", cred.AccessToken, params)
		if err != nil {
			return err
		}
		id, err := decodeID(body)
		if err != nil {
			return err
		}
		containerID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return containerID, nil
}

func (a *Adapter) containerStatus(ctx context.Context, cred *credential.Credential, containerID string) (publish.ContainerStatus, error) {
	params := url.Values{}
	params.Set("fields", "status_code")

	var status publish.ContainerStatus
	err := a.retry.Do(ctx, "instagram container status", func(ctx context.Context) error {
		body, err := a.client.Get(ctx, "/"+containerID, cred.AccessToken, params)
		if err != nil {
			return err
		}

		var resp struct {
			StatusCode string `json:"status_code"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode container status", err)
		}

		status = mapStatusCode(resp.StatusCode)
		return nil
	})
	if err != nil {
		return "", err
	}

	return status, nil
}

func (a *Adapter) publishContainer(ctx context.Context, cred *credential.Credential, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)

	var postID string
	err := a.retry.Do(ctx, "instagram media publish", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/media_publish", cred.AccessToken, params)
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
		var pubErr *publish.Error
		if errors.As(err, &pubErr) && pubErr.Code == mediaNotReadyCode {
			return "", fmt.Errorf("%w: %s", publish.ErrMediaNotReady, pubErr.Message)
		}
		return "", err
	}

	return postID, nil
}

// mapStatusCode translates Graph status_code values to protocol statuses.
// PUBLISHED counts as ready so a re-entrant publish does not stall.
func mapStatusCode(code string) publish.ContainerStatus {
	switch code {
	case "FINISHED", "PUBLISHED":
		return publish.ContainerReady
	case "ERROR":
		return publish.ContainerError
	case "EXPIRED":
		return publish.ContainerExpired
	default:
		return publish.ContainerInProgress
	}
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
