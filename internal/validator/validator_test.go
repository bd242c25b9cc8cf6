package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
)

func TestValidateFeedDescriptor(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		desc domain.FeedDescriptor
		want string
	}{
		{name: "valid rss", desc: domain.FeedDescriptor{Name: "a", Kind: domain.FeedKindRSS, URL: "https://a.example/rss"}},
		{name: "valid group", desc: domain.FeedDescriptor{Name: "g", Kind: domain.FeedKindGroup, Children: []string{"a"}}},
		{name: "missing name", desc: domain.FeedDescriptor{Kind: domain.FeedKindRSS, URL: "https://a.example"}, want: "Name is required"},
		{name: "rss needs url", desc: domain.FeedDescriptor{Name: "a", Kind: domain.FeedKindRSS}, want: "URL is required when Kind is rss"},
		{name: "search needs source", desc: domain.FeedDescriptor{Name: "s", Kind: domain.FeedKindSearch}, want: "Source is required when Kind is search"},
		{name: "bad kind", desc: domain.FeedDescriptor{Name: "a", Kind: "podcast"}, want: "Kind must be one of: rss, group, search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.desc)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("id", "7c9e6679-7425-40de-944b-e07fc1f90ae7", "uuid"))

	err := v.Var("id", "nope", "uuid")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.Contains(t, err.Error(), "id must be a valid UUID")
}
