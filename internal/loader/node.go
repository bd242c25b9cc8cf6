package loader

import (
	"sync"

	"github.com/amiyamandal-dev/feedsync/pkg/event"
)

// Node is one entry of the feed tree. A node may appear as the child of
// several group nodes, so it keeps no parent pointer.
type Node struct {
	name string

	mu       sync.RWMutex
	loader   Loader
	excluded bool
	children []*Node

	changed         event.Event[*Node]
	childrenChanged event.Event[[]*Node]
}

// NewNode creates a node backed by loader, which may be nil until set
func NewNode(name string, loader Loader) *Node {
	return &Node{name: name, loader: loader}
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Loader() Loader {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loader
}

// SetLoader replaces the node's loader and fires Changed
func (n *Node) SetLoader(l Loader) {
	n.mu.Lock()
	n.loader = l
	n.mu.Unlock()
	n.changed.Fire(n)
}

func (n *Node) Excluded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.excluded
}

// SetExcluded fires Changed only when the flag actually changes
func (n *Node) SetExcluded(excluded bool) {
	n.mu.Lock()
	if n.excluded == excluded {
		n.mu.Unlock()
		return
	}
	n.excluded = excluded
	n.mu.Unlock()
	n.changed.Fire(n)
}

func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// SetChildren replaces the node's children and fires ChildrenChanged
func (n *Node) SetChildren(children []*Node) {
	next := append([]*Node(nil), children...)
	n.mu.Lock()
	n.children = next
	n.mu.Unlock()
	n.childrenChanged.Fire(append([]*Node(nil), next...))
}

// AddChild appends child unless it is already present
func (n *Node) AddChild(child *Node) {
	n.mu.Lock()
	for _, c := range n.children {
		if c == child {
			n.mu.Unlock()
			return
		}
	}
	n.children = append(n.children, child)
	next := append([]*Node(nil), n.children...)
	n.mu.Unlock()
	n.childrenChanged.Fire(next)
}

// RemoveChild drops child if present
func (n *Node) RemoveChild(child *Node) {
	n.mu.Lock()
	idx := -1
	for i, c := range n.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return
	}
	n.children = append(n.children[:idx:idx], n.children[idx+1:]...)
	next := append([]*Node(nil), n.children...)
	n.mu.Unlock()
	n.childrenChanged.Fire(next)
}

// ActiveLoaders returns the loaders of the non-excluded children that have one
func (n *Node) ActiveLoaders() []Loader {
	var loaders []Loader
	for _, child := range n.Children() {
		if child.Excluded() {
			continue
		}
		if l := child.Loader(); l != nil {
			loaders = append(loaders, l)
		}
	}
	return loaders
}

// Changed fires when the loader or excluded flag changes
func (n *Node) Changed() *event.Event[*Node] {
	return &n.changed
}

func (n *Node) ChildrenChanged() *event.Event[[]*Node] {
	return &n.childrenChanged
}
