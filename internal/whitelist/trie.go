package whitelist

import (
	"iter"
	"strings"
)

// node is a label trie keyed from the rightmost label. A terminal node marks
// the end of a wildcard suffix; every name passing through it is covered.
type node struct {
	children map[string]*node
	terminal bool
}

func newNode() *node {
	return &node{children: map[string]*node{}}
}

func (n *node) insert(suffix string) {
	cur := n
	for label := range reversedLabels(suffix) {
		next, ok := cur.children[label]
		if !ok {
			next = newNode()
			cur.children[label] = next
		}
		cur = next
	}
	cur.terminal = true
}

// covers walks name's labels right to left and stops at the first terminal.
func (n *node) covers(name string) bool {
	cur := n
	for label := range reversedLabels(name) {
		next, ok := cur.children[label]
		if !ok {
			return false
		}
		if next.terminal {
			return true
		}
		cur = next
	}
	return false
}

func reversedLabels(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for name != "" {
			i := strings.LastIndexByte(name, '.')
			if !yield(name[i+1:]) {
				return
			}
			if i < 0 {
				return
			}
			name = name[:i]
		}
	}
}
