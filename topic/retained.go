package topic

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/axmq/axbroker/types/message"
)

var ErrRetainedClosed = errors.New("retained store is closed")

// retainedNode is one level of the retained-message tree. Unlike the
// subscription trie there is no subscriber set: a node carries at most
// the single retained PUBLISH for its topic, plus children.
type retainedNode struct {
	children map[string]*retainedNode
	msg      *message.Message
}

func (n *retainedNode) empty() bool {
	return n.msg == nil && len(n.children) == 0
}

// RetainedManager keeps the broker's retained-message snapshots: at most
// one PUBLISH per topic, replaced by each RETAIN publish with a nonempty
// payload and cleared by one with an empty payload. Lookups follow the
// same wildcard rules as subscription matching, including the rule that
// `#` and `+` at the root never see `$`-prefixed topics.
//
// A single manager-wide RWMutex guards the whole tree; retained updates
// are rare next to matches, so reader throughput is what matters.
type RetainedManager struct {
	mu     sync.RWMutex
	root   *retainedNode
	count  int64
	closed bool
}

func NewRetainedManager() *RetainedManager {
	return &RetainedManager{
		root: &retainedNode{children: make(map[string]*retainedNode)},
	}
}

// Set stores msg as the retained message for topic. An empty payload is
// the protocol's "clear this slot" form and removes the entry instead.
func (rm *RetainedManager) Set(ctx context.Context, topic string, msg *message.Message) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return ErrRetainedClosed
	}

	if len(msg.Payload) == 0 {
		rm.remove(topic)
		return nil
	}

	node := rm.root
	for _, level := range splitTopicLevels(topic) {
		child, ok := node.children[level]
		if !ok {
			child = &retainedNode{children: make(map[string]*retainedNode)}
			node.children[level] = child
		}
		node = child
	}

	if node.msg == nil {
		rm.count++
	}
	node.msg = msg
	return nil
}

// Get returns the retained message for an exact topic, or nil.
func (rm *RetainedManager) Get(ctx context.Context, topic string) (*message.Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.closed {
		return nil, ErrRetainedClosed
	}

	node := rm.root
	for _, level := range splitTopicLevels(topic) {
		child, ok := node.children[level]
		if !ok {
			return nil, nil
		}
		node = child
	}
	return node.msg, nil
}

// Delete clears the retained slot for topic, pruning nodes left empty.
func (rm *RetainedManager) Delete(ctx context.Context, topic string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return ErrRetainedClosed
	}

	rm.remove(topic)
	return nil
}

// remove deletes the entry for topic and prunes empty nodes bottom-up.
// Caller holds rm.mu.
func (rm *RetainedManager) remove(topic string) {
	levels := splitTopicLevels(topic)

	path := make([]*retainedNode, 0, len(levels)+1)
	node := rm.root
	path = append(path, node)
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			return
		}
		node = child
		path = append(path, node)
	}

	if node.msg != nil {
		node.msg = nil
		rm.count--
	}

	for i := len(path) - 1; i > 0; i-- {
		if !path[i].empty() {
			break
		}
		delete(path[i-1].children, levels[i-1])
	}
}

// Match collects every retained message whose topic matches filter. The
// filter may use `+` and `#`; a wildcard in the first level never
// matches a `$`-prefixed topic, so `#` subscribers do not receive the
// `$SYS` tree at subscribe time either.
func (rm *RetainedManager) Match(ctx context.Context, filter string) ([]*message.Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.closed {
		return nil, ErrRetainedClosed
	}

	var matched []*message.Message
	rm.match(rm.root, splitTopicLevels(filter), 0, &matched)
	return matched, nil
}

func (rm *RetainedManager) match(node *retainedNode, levels []string, depth int, out *[]*message.Message) {
	if depth == len(levels) {
		if node.msg != nil {
			*out = append(*out, node.msg)
		}
		return
	}

	switch level := levels[depth]; level {
	case "#":
		rm.collect(node, depth == 0, out)
	case "+":
		for name, child := range node.children {
			if depth == 0 && strings.HasPrefix(name, "$") {
				continue
			}
			rm.match(child, levels, depth+1, out)
		}
	default:
		if child, ok := node.children[level]; ok {
			rm.match(child, levels, depth+1, out)
		}
	}
}

// collect appends node's message and every descendant's, skipping
// `$`-prefixed children when the `#` sits at the filter's root.
func (rm *RetainedManager) collect(node *retainedNode, atRoot bool, out *[]*message.Message) {
	if node.msg != nil {
		*out = append(*out, node.msg)
	}
	for name, child := range node.children {
		if atRoot && strings.HasPrefix(name, "$") {
			continue
		}
		rm.collect(child, false, out)
	}
}

// Count returns the number of retained messages currently stored.
func (rm *RetainedManager) Count(ctx context.Context) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.closed {
		return 0, ErrRetainedClosed
	}
	return rm.count, nil
}

func (rm *RetainedManager) Close() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return ErrRetainedClosed
	}
	rm.closed = true
	rm.root = &retainedNode{children: make(map[string]*retainedNode)}
	rm.count = 0
	return nil
}
