package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaType distinguishes the two media kinds the engine can publish.
type MediaType string

// Possible media types.
const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Common validation errors for GeneratedContent.
var (
	ErrEmptyContentTaskID = errors.New("content task ID cannot be empty")
	ErrEmptyCaption       = errors.New("content caption cannot be empty")
	ErrInvalidMediaType   = errors.New("invalid media type")
	ErrEmptyMediaURL      = errors.New("media URL cannot be empty")
)

// Media is one media item attached to a task's content. Order controls
// carousel position on platforms that support multi-item posts.
type Media struct {
	URL   string    `json:"url"`
	Type  MediaType `json:"type"`
	Order int       `json:"order"`
}

// Validate checks if the Media item has valid data.
func (m *Media) Validate() error {
	if m.URL == "" {
		return ErrEmptyMediaURL
	}

	if m.Type != MediaTypeImage && m.Type != MediaTypeVideo {
		return ErrInvalidMediaType
	}

	return nil
}

// GeneratedContent is the caption, hashtags, and media produced upstream for
// a task. The publishing engine consumes it read-only.
type GeneratedContent struct {
	TaskID    uuid.UUID `json:"task_id"`
	Caption   string    `json:"caption"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Media     []Media   `json:"media,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks if the GeneratedContent has valid data.
func (c *GeneratedContent) Validate() error {
	if c.TaskID == uuid.Nil {
		return ErrEmptyContentTaskID
	}

	if c.Caption == "" {
		return ErrEmptyCaption
	}

	for i := range c.Media {
		if err := c.Media[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// PrimaryMedia returns the lowest-ordered media item, or nil for text-only content.
func (c *GeneratedContent) PrimaryMedia() *Media {
	if len(c.Media) == 0 {
		return nil
	}

	primary := &c.Media[0]
	for i := 1; i < len(c.Media); i++ {
		if c.Media[i].Order < primary.Order {
			primary = &c.Media[i]
		}
	}
	return primary
}

// FormattedCaption returns the caption with hashtags appended on a new line.
// Hashtags are stored without the leading '#'; it is added here.
func (c *GeneratedContent) FormattedCaption() string {
	if len(c.Hashtags) == 0 {
		return c.Caption
	}

	tags := make([]string, 0, len(c.Hashtags))
	for _, tag := range c.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return c.Caption
	}

	return c.Caption + "\n\n" + strings.Join(tags, " ")
}
