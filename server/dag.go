package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/merkle"
)

// HistoryResponse contains the conversation history for a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage represents a message in the conversation history.
type HistoryMessage struct {
	Hash       string     `json:"hash"`
	ParentHash *string    `json:"parent_hash,omitempty"`
	Role       llm.Role   `json:"role"`
	Content    string     `json:"content"`
	Model      string     `json:"model,omitempty"`
	Provider   string     `json:"provider,omitempty"`
	Usage      *llm.Usage `json:"usage,omitempty"`
}

// handleDAGStats returns statistics about the DAG.
func (s *Server) handleDAGStats(c *fiber.Ctx) error {
	if s.storer == nil {
		return errorJSON(c, fiber.StatusNotFound, "storage disabled")
	}
	ctx := c.UserContext()

	nodes, err := s.storer.List(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list nodes")
	}

	roots, err := s.storer.Roots(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to get roots")
	}

	leaves, err := s.storer.Leaves(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to get leaves")
	}

	return c.JSON(map[string]any{
		"total_nodes": len(nodes),
		"root_count":  len(roots),
		"leaf_count":  len(leaves),
		"head_hash":   s.gateway.Head(),
	})
}

// PutNodesResponse counts the outcome of POST /dag/nodes.
type PutNodesResponse struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// handlePutNodes stores nodes pushed from another parley. Nodes whose hash
// does not match their content are counted as errors and skipped.
func (s *Server) handlePutNodes(c *fiber.Ctx) error {
	if s.storer == nil {
		return errorJSON(c, fiber.StatusNotFound, "storage disabled")
	}

	var nodes []*merkle.Node
	if err := c.BodyParser(&nodes); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	var resp PutNodesResponse
	for _, node := range nodes {
		if node == nil || !node.Verify() {
			resp.Errors++
			continue
		}
		isNew, err := s.storer.Put(ctx, node)
		if err != nil {
			s.logger.Warn("failed to store pushed node", zap.String("hash", node.Hash), zap.Error(err))
			resp.Errors++
			continue
		}
		if isNew {
			resp.New++
		} else {
			resp.Duplicate++
		}
	}

	s.logger.Info("received pushed nodes",
		zap.Int("new", resp.New),
		zap.Int("duplicate", resp.Duplicate),
		zap.Int("errors", resp.Errors),
	)
	return c.JSON(resp)
}

// handleGetNode returns a single node by its hash.
func (s *Server) handleGetNode(c *fiber.Ctx) error {
	if s.storer == nil {
		return errorJSON(c, fiber.StatusNotFound, "storage disabled")
	}
	hash := c.Params("hash")
	if hash == "" {
		return errorJSON(c, fiber.StatusBadRequest, "hash parameter required")
	}

	node, err := s.storer.Get(c.UserContext(), hash)
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "node not found")
	}

	return c.JSON(node)
}

// handleListHistories returns every stored conversation, one per leaf node.
func (s *Server) handleListHistories(c *fiber.Ctx) error {
	if s.storer == nil {
		return errorJSON(c, fiber.StatusNotFound, "storage disabled")
	}
	ctx := c.UserContext()

	leaves, err := s.storer.Leaves(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to get leaves")
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := s.buildHistory(ctx, leaf.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the conversation leading up to a given node,
// oldest first.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	if s.storer == nil {
		return errorJSON(c, fiber.StatusNotFound, "storage disabled")
	}
	hash := c.Params("hash")
	if hash == "" {
		return errorJSON(c, fiber.StatusBadRequest, "hash parameter required")
	}

	history, err := s.buildHistory(c.UserContext(), hash)
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "node not found")
	}

	return c.JSON(history)
}

// buildHistory constructs a HistoryResponse for the given node hash.
func (s *Server) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	nodes, err := s.storer.Descendants(ctx, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, len(nodes))
	for i, node := range nodes {
		b := node.Bucket
		messages[i] = HistoryMessage{
			Hash:       node.Hash,
			ParentHash: node.ParentHash,
			Role:       b.Role,
			Content:    b.Content,
			Model:      b.Model,
			Provider:   b.Provider,
			Usage:      b.Usage,
		}
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}
