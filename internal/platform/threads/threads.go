// Package threads implements the Threads publishing adapter.
//
// Threads uses the same asynchronous container protocol as Instagram, but
// every post type goes through a container, including plain text.
package threads

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

const defaultBaseURL = "https://graph.threads.net/v1.0"

const mediaNotReadyCode = "9007"

// Config holds adapter settings. An empty BaseURL uses the production Threads API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter publishes content to a Threads account.
type Adapter struct {
	client    *meta.Client
	processor *publish.Processor
	retry     *publish.RetryPolicy
	logger    *slog.Logger
}

// New creates a Threads adapter. processor and retry may be nil, in which
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
		logger:    logger.With(slog.String("adapter", "threads")),
	}
}

// Name returns the adapter's platform API name.
func (a *Adapter) Name() string { return "threads" }

// Publish posts content to the account identified by cred.AccountID and
// returns the published thread ID.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	if len(content.Media) > 1 {
		return a.publishCarousel(ctx, cred, content)
	}

	params := url.Values{}
	params.Set("text", content.Caption)

	if content.HasMedia() {
		media := content.PrimaryMedia()
		switch media.Type {
		case domain.MediaTypeImage:
			params.Set("media_type", "IMAGE")
			params.Set("image_url", media.URL)
		case domain.MediaTypeVideo:
			params.Set("media_type", "VIDEO")
			params.Set("video_url", media.URL)
		default:
			return "", publish.NewError(publish.KindValidation, "",
				fmt.Sprintf("unsupported media type %q", media.Type), nil)
		}
	} else {
		params.Set("media_type", "TEXT")
	}

	return a.processor.Run(ctx, &containerOps{adapter: a, cred: cred, createParams: params})
}

func (a *Adapter) publishCarousel(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	childIDs := make([]string, 0, len(content.Media))
	for i, media := range content.Media {
		params := url.Values{}
		params.Set("is_carousel_item", "true")
		switch media.Type {
		case domain.MediaTypeImage:
			params.Set("media_type", "IMAGE")
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
	params.Set("text", content.Caption)

	return a.processor.Run(ctx, &containerOps{adapter: a, cred: cred, createParams: params})
}

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
	err := a.retry.Do(ctx, "threads container create", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/threads", cred.AccessToken, params)
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
	params.Set("fields", "status")

	var status publish.ContainerStatus
	err := a.retry.Do(ctx, "threads container status", func(ctx context.Context) error {
		body, err := a.client.Get(ctx, "/"+containerID, cred.AccessToken, params)
		if err != nil {
			return err
		}

		var resp struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return publish.NewError(publish.KindUnknown, "", "failed to decode container status", err)
		}

		status = mapStatus(resp.Status)
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
	err := a.retry.Do(ctx, "threads publish", func(ctx context.Context) error {
		body, err := a.client.PostForm(ctx, "/"+cred.AccountID+"/threads_publish", cred.AccessToken, params)
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

func mapStatus(status string) publish.ContainerStatus {
	switch status {
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
		return "", publish.NewError(publish.KindUnknown, "", "failed to decode response", err)
	}
	if resp.ID == "" {
		return "", publish.NewError(publish.KindUnknown, "", "response missing id", nil)
	}
	return resp.ID, nil
}
