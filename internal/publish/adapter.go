package publish

import (
	"context"
	"sort"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
)

// Content is the prepared post handed to an adapter: the formatted caption,
// the raw hashtag list for platforms that treat tags separately, and the
// ordered media items.
type Content struct {
	// Caption is the full post text, hashtags already appended.
	Caption string

	// Hashtags are the bare tags (no '#') for adapters that need them separately.
	Hashtags []string

	// Media holds the ordered media items; empty for text-only posts.
	Media []domain.Media
}

// HasMedia reports whether the content carries any media items.
func (c Content) HasMedia() bool {
	return len(c.Media) > 0
}

// PrimaryMedia returns the first media item. Media is ordered, so this is the
// item platforms without multi-media support should use. Callers must check
// HasMedia first.
func (c Content) PrimaryMedia() domain.Media {
	return c.Media[0]
}

// ContentFromGenerated builds adapter content from a task's generated content.
// Media is sorted by its order field.
func ContentFromGenerated(gc *domain.GeneratedContent) Content {
	media := make([]domain.Media, len(gc.Media))
	copy(media, gc.Media)
	sort.SliceStable(media, func(i, j int) bool { return media[i].Order < media[j].Order })

	return Content{
		Caption:  gc.FormattedCaption(),
		Hashtags: gc.Hashtags,
		Media:    media,
	}
}

// Adapter is the uniform per-platform publish contract. Implementations must
// translate every platform failure into a *publish.Error so the orchestrator
// can classify it; an adapter never retries silently in a way that could
// post twice without the caller's awareness.
type Adapter interface {
	// Name returns the platform api_name this adapter serves.
	Name() string

	// Publish delivers the content to the platform using the given
	// credential and returns the platform-side post ID.
	Publish(ctx context.Context, cred *credential.Credential, content Content) (postID string, err error)
}
