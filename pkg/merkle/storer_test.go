package merkle_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/merkle"
)

func node(text string, parent *merkle.Node) *merkle.Node {
	return merkle.NewNode(bucket(llm.RoleUser, text), parent)
}

func contents(nodes []*merkle.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Bucket.Content
	}
	return out
}

// storerBehaviour runs the Storer contract against a fresh storer.
func storerBehaviour(newStorer func() merkle.Storer) {
	var (
		storer merkle.Storer
		ctx    context.Context
	)

	put := func(nodes ...*merkle.Node) {
		for _, n := range nodes {
			_, err := storer.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		storer = newStorer()
	})

	AfterEach(func() {
		Expect(storer.Close()).To(Succeed())
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a node", func() {
			n := node("test content", nil)

			isNew, err := storer.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			retrieved, err := storer.Get(ctx, n.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Hash).To(Equal(n.Hash))
			Expect(retrieved.Bucket).To(Equal(n.Bucket))
			Expect(retrieved.ParentHash).To(BeNil())
			Expect(retrieved.Verify()).To(BeTrue())
		})

		It("stores and retrieves a node with parent", func() {
			parent := node("parent", nil)
			child := node("child", parent)
			put(parent, child)

			retrieved, err := storer.Get(ctx, child.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.ParentHash).NotTo(BeNil())
			Expect(*retrieved.ParentHash).To(Equal(parent.Hash))
		})

		It("keeps attachments and usage", func() {
			b := bucket(llm.RoleAssistant, "answer")
			b.Model = "test-model"
			b.Provider = "openrouter"
			b.Usage = &llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
			b.Attachments = []llm.Attachment{{Name: "a.txt", Kind: llm.AttachmentText, Content: "alpha"}}
			n := merkle.NewNode(b, nil)
			put(n)

			retrieved, err := storer.Get(ctx, n.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Bucket).To(Equal(b))
		})

		It("returns ErrNotFound for non-existent hash", func() {
			_, err := storer.Get(ctx, "nonexistent")
			Expect(err).To(HaveOccurred())

			var notFoundErr merkle.ErrNotFound
			Expect(err).To(BeAssignableToTypeOf(notFoundErr))
			Expect(merkle.IsNotFound(err)).To(BeTrue())
		})

		It("is idempotent for duplicate puts", func() {
			n := node("test", nil)
			put(n)

			isNew, err := storer.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			nodes, _ := storer.List(ctx)
			Expect(nodes).To(HaveLen(1))
		})

		It("rejects nil nodes", func() {
			_, err := storer.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nil node"))
		})
	})

	Describe("Has", func() {
		It("returns true for existing node", func() {
			n := node("test", nil)
			put(n)

			exists, err := storer.Has(ctx, n.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("returns false for non-existent hash", func() {
			exists, err := storer.Has(ctx, "nonexistent")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("GetByParent", func() {
		It("returns children of a parent", func() {
			parent := node("parent", nil)
			put(parent, node("child1", parent), node("child2", parent))

			children, err := storer.GetByParent(ctx, &parent.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(children)).To(Equal([]string{"child1", "child2"}))
		})

		It("returns root nodes when parentHash is nil", func() {
			root1 := node("root1", nil)
			put(root1, node("root2", nil), node("child", root1))

			roots, err := storer.GetByParent(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(roots).To(HaveLen(2))
		})
	})

	Describe("List", func() {
		It("returns all nodes in insertion order", func() {
			node1 := node("node1", nil)
			node2 := node("node2", node1)
			put(node1, node2, node("node3", node2))

			nodes, err := storer.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(nodes)).To(Equal([]string{"node1", "node2", "node3"}))
		})

		It("returns empty slice for empty store", func() {
			nodes, err := storer.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})
	})

	Describe("Roots and Leaves", func() {
		It("returns all root nodes", func() {
			root1 := node("root1", nil)
			put(root1, node("root2", nil), node("child", root1))

			roots, err := storer.Roots(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(roots)).To(Equal([]string{"root1", "root2"}))
		})

		It("returns all leaf nodes", func() {
			root := node("root", nil)
			child := node("child", root)
			leaf := node("leaf", child)
			put(root, child, leaf)

			leaves, err := storer.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(leaves).To(HaveLen(1))
			Expect(leaves[0].Hash).To(Equal(leaf.Hash))
		})
	})

	Describe("Traversal", func() {
		var root, child, grandchild *merkle.Node

		BeforeEach(func() {
			root = node("root", nil)
			child = node("child", root)
			grandchild = node("grandchild", child)
			put(root, child, grandchild)
		})

		It("returns the path from node to root", func() {
			ancestry, err := storer.Ancestry(ctx, grandchild.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(ancestry)).To(Equal([]string{"grandchild", "child", "root"}))
		})

		It("returns the path from root to node", func() {
			path, err := storer.Descendants(ctx, grandchild.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(path)).To(Equal([]string{"root", "child", "grandchild"}))
		})

		It("returns depths", func() {
			depth, err := storer.Depth(ctx, root.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(0))

			depth, err = storer.Depth(ctx, grandchild.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(2))
		})

		It("fails for unknown nodes", func() {
			_, err := storer.Ancestry(ctx, "nonexistent")
			Expect(merkle.IsNotFound(err)).To(BeTrue())
		})

		It("fails when an ancestor is missing", func() {
			orphan := node("orphan", node("never stored", nil))
			put(orphan)

			_, err := storer.Descendants(ctx, orphan.Hash)
			Expect(merkle.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Content-addressable deduplication", func() {
		It("deduplicates identical nodes", func() {
			node1 := node("identical", nil)
			node2 := node("identical", nil)
			Expect(node1.Hash).To(Equal(node2.Hash))

			put(node1, node2)

			nodes, _ := storer.List(ctx)
			Expect(nodes).To(HaveLen(1))
		})

		It("creates branches for different content with same parent", func() {
			parent := node("parent", nil)
			put(parent, node("branch1", parent), node("branch2", parent))

			children, _ := storer.GetByParent(ctx, &parent.Hash)
			Expect(children).To(HaveLen(2))

			leaves, _ := storer.Leaves(ctx)
			Expect(leaves).To(HaveLen(2))
		})
	})

	Describe("Append and History", func() {
		It("chains buckets and reads them back oldest first", func() {
			head, err := merkle.Append(ctx, storer, "", bucket(llm.RoleUser, "2+2?"), bucket(llm.RoleAssistant, "4"))
			Expect(err).NotTo(HaveOccurred())

			head, err = merkle.Append(ctx, storer, head, bucket(llm.RoleUser, "3+3?"), bucket(llm.RoleAssistant, "6"))
			Expect(err).NotTo(HaveOccurred())

			history, err := merkle.History(ctx, storer, head)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(4))
			Expect(history[0].Content).To(Equal("2+2?"))
			Expect(history[1].Role).To(Equal(llm.RoleAssistant))
			Expect(history[3].Content).To(Equal("6"))
		})

		It("keeps the head when nothing is appended", func() {
			head, err := merkle.Append(ctx, storer, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(head).To(Equal("abc"))
		})

		It("has no history for an empty head", func() {
			history, err := merkle.History(ctx, storer, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())
		})
	})
}

var _ = Describe("MemoryStorer", func() {
	storerBehaviour(func() merkle.Storer { return merkle.NewMemoryStorer() })
})

var _ = Describe("SQLiteStorer", func() {
	storerBehaviour(func() merkle.Storer {
		s, err := merkle.NewSQLiteStorer(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return s
	})
})
