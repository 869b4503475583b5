package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castpost/castpost-api/internal/platform/logger"
)

// ContainerStatus is the platform-reported processing state of a media container.
type ContainerStatus string

// Container status values common to the platforms using this protocol.
const (
	ContainerInProgress ContainerStatus = "in_progress"
	ContainerReady      ContainerStatus = "ready"
	ContainerError      ContainerStatus = "error"
	ContainerExpired    ContainerStatus = "expired"
)

// ContainerOps is implemented by adapters for platforms that process media
// asynchronously: a container is created referencing the media, polled until
// the platform finishes processing, then published.
type ContainerOps interface {
	// Create submits the container and returns its platform-side ID.
	Create(ctx context.Context) (string, error)

	// Status reports the container's current processing state.
	Status(ctx context.Context, containerID string) (ContainerStatus, error)

	// Publish publishes the ready container and returns the post ID.
	// It returns an error wrapping ErrMediaNotReady when the platform
	// reports the container not ready despite a ready poll result.
	Publish(ctx context.Context, containerID string) (string, error)
}

// ProcessorConfig bounds the async media protocol.
type ProcessorConfig struct {
	// PollInitial is the first poll interval; it doubles after each poll.
	PollInitial time.Duration

	// PollMax caps the per-poll interval.
	PollMax time.Duration

	// PollBudget is the wall-clock limit for the whole polling phase.
	PollBudget time.Duration

	// PublishRetries bounds the "media not ready" publish retries. This is a
	// separate budget from the polling phase and from the network retry policy.
	PublishRetries int

	// PublishRetryDelay is the flat delay between publish retries.
	PublishRetryDelay time.Duration
}

// DefaultProcessorConfig returns the recommended protocol bounds:
// 5s→60s polling under a 600s budget, 3 publish retries 5s apart.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInitial:       5 * time.Second,
		PollMax:           60 * time.Second,
		PollBudget:        600 * time.Second,
		PublishRetries:    3,
		PublishRetryDelay: 5 * time.Second,
	}
}

// Processor drives the shared create → poll → publish algorithm with bounded
// polling. A container that never reaches a terminal status within the
// budget is a permanent failure for the attempt; the poll loop itself never
// blocks unbounded.
type Processor struct {
	config ProcessorConfig
	clock  Clock
}

// NewProcessor creates a Processor. Zero config values fall back to defaults.
func NewProcessor(config ProcessorConfig, clock Clock) *Processor {
	defaults := DefaultProcessorConfig()
	if config.PollInitial <= 0 {
		config.PollInitial = defaults.PollInitial
	}
	if config.PollMax <= 0 {
		config.PollMax = defaults.PollMax
	}
	if config.PollBudget <= 0 {
		config.PollBudget = defaults.PollBudget
	}
	if config.PublishRetries < 0 {
		config.PublishRetries = defaults.PublishRetries
	}
	if config.PublishRetryDelay <= 0 {
		config.PublishRetryDelay = defaults.PublishRetryDelay
	}

	if clock == nil {
		clock = SystemClock{}
	}

	return &Processor{config: config, clock: clock}
}

// Run executes the full protocol and returns the published post ID.
func (p *Processor) Run(ctx context.Context, ops ContainerOps) (string, error) {
	log := logger.FromContext(ctx)

	containerID, err := ops.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("container create failed: %w", err)
	}

	log.Debug("media container created", "container_id", containerID)

	if err := p.Await(ctx, func(ctx context.Context) (ContainerStatus, error) {
		return ops.Status(ctx, containerID)
	}); err != nil {
		return "", err
	}

	return p.publishWithRetry(ctx, ops, containerID)
}

// Await polls the given status function until it reports ready, failing on
// error/expired statuses and on budget exhaustion. Adapters also call it
// directly for carousel children that need individual polling.
func (p *Processor) Await(ctx context.Context, status func(ctx context.Context) (ContainerStatus, error)) error {
	log := logger.FromContext(ctx)

	deadline := p.clock.Now().Add(p.config.PollBudget)
	interval := p.config.PollInitial

	for {
		st, err := status(ctx)
		if err != nil {
			return fmt.Errorf("container status poll failed: %w", err)
		}

		switch st {
		case ContainerReady:
			return nil
		case ContainerError:
			return NewError(KindValidation, "container_error",
				"platform reported media container processing error", nil)
		case ContainerExpired:
			return NewError(KindValidation, "container_expired",
				"media container expired before publishing", nil)
		}

		if !p.clock.Now().Add(interval).Before(deadline) {
			return NewError(KindUnknown, "poll_timeout",
				fmt.Sprintf("media container not ready within %s timeout", p.config.PollBudget), nil)
		}

		log.Debug("media container still processing",
			"status", st,
			"next_poll", interval)

		if err := p.clock.Sleep(ctx, interval); err != nil {
			return fmt.Errorf("container polling cancelled: %w", err)
		}

		interval *= 2
		if interval > p.config.PollMax {
			interval = p.config.PollMax
		}
	}
}

// publishWithRetry publishes the container, retrying a bounded number of
// times when the platform still reports the media not ready.
func (p *Processor) publishWithRetry(ctx context.Context, ops ContainerOps, containerID string) (string, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= p.config.PublishRetries; attempt++ {
		postID, err := ops.Publish(ctx, containerID)
		if err == nil {
			return postID, nil
		}

		lastErr = err
		if !errors.Is(err, ErrMediaNotReady) {
			return "", fmt.Errorf("container publish failed: %w", err)
		}

		if attempt >= p.config.PublishRetries {
			break
		}

		log.Debug("container reported not ready at publish, retrying",
			"container_id", containerID,
			"attempt", attempt+1)

		if sleepErr := p.clock.Sleep(ctx, p.config.PublishRetryDelay); sleepErr != nil {
			return "", fmt.Errorf("container publish cancelled: %w", sleepErr)
		}
	}

	return "", fmt.Errorf("container still not ready after %d publish retries: %w",
		p.config.PublishRetries, lastErr)
}
