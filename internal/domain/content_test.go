package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGeneratedContent_FormattedCaption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		caption  string
		hashtags []string
		want     string
	}{
		{"no hashtags", "hello world", nil, "hello world"},
		{"plain tags get prefixed", "launch day", []string{"golang", "release"}, "launch day\n\n#golang #release"},
		{"prefixed tags kept as-is", "launch day", []string{"#golang"}, "launch day\n\n#golang"},
		{"blank tags skipped", "launch day", []string{" ", ""}, "launch day"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			content := &GeneratedContent{TaskID: uuid.New(), Caption: tc.caption, Hashtags: tc.hashtags}
			assert.Equal(t, tc.want, content.FormattedCaption())
		})
	}
}

func TestGeneratedContent_PrimaryMedia(t *testing.T) {
	t.Parallel()

	t.Run("text-only content has no primary media", func(t *testing.T) {
		t.Parallel()

		content := &GeneratedContent{TaskID: uuid.New(), Caption: "text only"}
		assert.Nil(t, content.PrimaryMedia())
	})

	t.Run("lowest order wins", func(t *testing.T) {
		t.Parallel()

		content := &GeneratedContent{
			TaskID:  uuid.New(),
			Caption: "carousel",
			Media: []Media{
				{URL: "https://cdn.example.com/b.jpg", Type: MediaTypeImage, Order: 2},
				{URL: "https://cdn.example.com/a.jpg", Type: MediaTypeImage, Order: 1},
			},
		}

		primary := content.PrimaryMedia()
		assert.NotNil(t, primary)
		assert.Equal(t, "https://cdn.example.com/a.jpg", primary.URL)
	})
}
