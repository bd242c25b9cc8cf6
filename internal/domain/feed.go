package domain

import (
	"time"
)

// FeedKind selects which loader a descriptor is turned into
type FeedKind string

const (
	FeedKindRSS    FeedKind = "rss"
	FeedKindGroup  FeedKind = "group"
	FeedKindSearch FeedKind = "search"
)

// Metadata describes a feed. It is replaced wholesale, never mutated.
type Metadata struct {
	Name        string `json:"name"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
}

// FeedDescriptor is the configured definition of one feed
type FeedDescriptor struct {
	Name     string   `json:"name" mapstructure:"name" validate:"required,min=1,max=50"`
	Kind     FeedKind `json:"kind" mapstructure:"kind" validate:"required,oneof=rss group search"`
	URL      string   `json:"url,omitempty" mapstructure:"url" validate:"required_if=Kind rss,omitempty,url"`
	Symbol   string   `json:"symbol,omitempty" mapstructure:"symbol"`
	Children []string `json:"children,omitempty" mapstructure:"children" validate:"required_if=Kind group"`
	Source   string   `json:"source,omitempty" mapstructure:"source" validate:"required_if=Kind search"`
	Query    string   `json:"query,omitempty" mapstructure:"query"`
	// Excluded feeds still exist on their own but are left out of groups
	Excluded bool `json:"excluded,omitempty" mapstructure:"excluded"`
}

// Validate checks the structural rules that tags cannot express
func (f *FeedDescriptor) Validate() error {
	if f.Name == "" || len(f.Name) > 50 {
		return NewValidationError("name", "must be between 1 and 50 characters")
	}
	switch f.Kind {
	case FeedKindRSS:
		if f.URL == "" {
			return NewValidationError("url", "is required for rss feeds")
		}
	case FeedKindGroup:
		for _, child := range f.Children {
			if child == f.Name {
				return NewValidationError("children", "a group cannot contain itself")
			}
		}
	case FeedKindSearch:
		if f.Source == "" || f.Source == f.Name {
			return NewValidationError("source", "must name another feed")
		}
	default:
		return ErrInvalidFeed
	}
	return nil
}

// FeedStatus is the externally visible state of a feed
type FeedStatus struct {
	Name             string     `json:"name"`
	Kind             FeedKind   `json:"kind"`
	Metadata         Metadata   `json:"metadata"`
	ItemCount        int        `json:"item_count"`
	Loaded           bool       `json:"loaded"`
	Synchronized     bool       `json:"synchronized"`
	Synchronizing    bool       `json:"synchronizing"`
	LastSynchronized *time.Time `json:"last_synchronized,omitempty"`
}
