package domain

import (
	"sort"

	"github.com/google/uuid"
)

// ItemSet is an immutable set of items compared by reference
type ItemSet struct {
	items map[*Item]struct{}
}

// NewItemSet builds a set, ignoring nil and duplicate references
func NewItemSet(items ...*Item) ItemSet {
	if len(items) == 0 {
		return ItemSet{}
	}
	m := make(map[*Item]struct{}, len(items))
	for _, item := range items {
		if item != nil {
			m[item] = struct{}{}
		}
	}
	return ItemSet{items: m}
}

func (s ItemSet) Len() int {
	return len(s.items)
}

func (s ItemSet) Contains(item *Item) bool {
	_, ok := s.items[item]
	return ok
}

// Items returns the members newest first, ties broken by ID
func (s ItemSet) Items() []*Item {
	out := make([]*Item, 0, len(s.items))
	for item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(a, b int) bool {
		pa, pb := out[a].Published(), out[b].Published()
		if !pa.Equal(pb) {
			return pa.After(pb)
		}
		return out[a].ID.String() < out[b].ID.String()
	})
	return out
}

// Union returns a new set containing the members of s and others
func (s ItemSet) Union(others ...ItemSet) ItemSet {
	size := len(s.items)
	for _, o := range others {
		size += len(o.items)
	}
	m := make(map[*Item]struct{}, size)
	for item := range s.items {
		m[item] = struct{}{}
	}
	for _, o := range others {
		for item := range o.items {
			m[item] = struct{}{}
		}
	}
	return ItemSet{items: m}
}

// Filter returns the members for which keep reports true
func (s ItemSet) Filter(keep func(*Item) bool) ItemSet {
	m := make(map[*Item]struct{})
	for item := range s.items {
		if keep(item) {
			m[item] = struct{}{}
		}
	}
	return ItemSet{items: m}
}

// Find returns the member with the given ID
func (s ItemSet) Find(id uuid.UUID) (*Item, bool) {
	for item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// Equal reports whether both sets hold the same references
func (s ItemSet) Equal(other ItemSet) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for item := range s.items {
		if _, ok := other.items[item]; !ok {
			return false
		}
	}
	return true
}
