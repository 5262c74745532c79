package merkle

import (
	"context"
	"fmt"
)

// Append stores buckets as a chain below head and returns the new head. An
// empty head starts a new root.
func Append(ctx context.Context, s Storer, head string, buckets ...Bucket) (string, error) {
	var parent *Node
	if head != "" {
		parent = &Node{Hash: head}
	}

	for _, b := range buckets {
		node := NewNode(b, parent)
		if _, err := s.Put(ctx, node); err != nil {
			return "", fmt.Errorf("storing %s node: %w", b.Role, err)
		}
		parent = node
	}

	if parent == nil {
		return head, nil
	}
	return parent.Hash, nil
}

// History returns the buckets from the root to head, oldest first. An empty
// head has no history.
func History(ctx context.Context, s Storer, head string) ([]Bucket, error) {
	if head == "" {
		return nil, nil
	}

	nodes, err := s.Descendants(ctx, head)
	if err != nil {
		return nil, err
	}
	buckets := make([]Bucket, len(nodes))
	for i, n := range nodes {
		buckets[i] = n.Bucket
	}
	return buckets, nil
}
