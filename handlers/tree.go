package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ammiranda/medicine_service/cache"
	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TreeHandler handles tree-related HTTP requests for one entity. The same
// handler serves categories and ATC codes; entity names the cache slot.
type TreeHandler struct {
	repo   repository.TreeRepository
	entity string
	logger *zap.Logger
}

// NewTreeHandler creates a new TreeHandler instance
func NewTreeHandler(repo repository.TreeRepository, entity string, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{
		repo:   repo,
		entity: entity,
		logger: logger,
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// CreateNode creates a new node, either as the root of a new tree or as
// the last child of the requested parent.
func (h *TreeHandler) CreateNode(c *gin.Context) {
	var req models.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = models.Slugify(req.Name)
	}
	status := req.Status
	if status == "" {
		status = "active"
	}
	node := &repository.Node{
		Name:        req.Name,
		Slug:        slug,
		Code:        req.Code,
		Description: req.Description,
		Status:      status,
		CreatedBy:   req.CreatedBy,
		UpdatedBy:   req.CreatedBy,
	}

	ctx := c.Request.Context()
	var err error
	if req.ParentID == nil {
		_, err = h.repo.InsertRoot(ctx, node)
	} else {
		_, err = h.repo.AppendChild(ctx, *req.ParentID, node)
	}
	if err != nil {
		if errors.Is(err, repository.ErrParentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parent node not found"})
			return
		}
		if errors.Is(err, repository.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create node failed", zap.String("entity", h.entity), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cache.Invalidate(h.entity)

	created, err := h.repo.GetNode(ctx, node.ID)
	if err != nil {
		c.JSON(http.StatusCreated, gin.H{"id": node.ID})
		return
	}
	c.JSON(http.StatusCreated, toNodeResponse(created))
}

// GetForest returns every tree of the entity fully assembled.
func (h *TreeHandler) GetForest(c *gin.Context) {
	if forest, found := cache.GetForest(h.entity); found {
		c.JSON(http.StatusOK, forest)
		return
	}

	ctx := c.Request.Context()
	roots, err := h.repo.GetRoots(ctx)
	if err != nil {
		h.logger.Error("get forest failed", zap.String("entity", h.entity), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var all []*repository.Node
	for _, root := range roots {
		subtree, err := h.repo.GetSubtree(ctx, root.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		all = append(all, subtree...)
	}

	forest, err := BuildForest(FilterDeleted(all))
	if err != nil {
		if errors.Is(err, ErrTreeNotFound) {
			c.JSON(http.StatusOK, []*models.TreeNode{})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cache.SetForest(h.entity, forest)
	c.JSON(http.StatusOK, forest)
}

// GetNode returns the flat view of one node, coordinates included.
func (h *TreeHandler) GetNode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	node, err := h.repo.GetNode(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toNodeResponse(node))
}

// GetSubtree returns one node with all descendants assembled.
func (h *TreeHandler) GetSubtree(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	nodes, err := h.repo.GetSubtree(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tree, err := BuildSubtree(FilterDeleted(nodes), id)
	if err != nil {
		// The root itself is tombstoned.
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.JSON(http.StatusOK, tree)
}

// GetAncestors returns the ancestor chain of a node, root first.
func (h *TreeHandler) GetAncestors(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ancestors, err := h.repo.GetAncestors(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.NodeResponse, 0, len(ancestors))
	for _, a := range ancestors {
		responses = append(responses, toNodeResponse(a))
	}
	c.JSON(http.StatusOK, responses)
}

// GetRoots returns every tree root of the entity, each with its child
// count, skipping tombstoned roots.
func (h *TreeHandler) GetRoots(c *gin.Context) {
	ctx := c.Request.Context()
	roots, err := h.repo.GetRoots(ctx)
	if err != nil {
		h.logger.Error("get roots failed", zap.String("entity", h.entity), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.ChildWithCount, 0, len(roots))
	for _, root := range roots {
		if root.DeletedAt != nil {
			continue
		}
		count, err := h.repo.GetChildCount(ctx, root.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		responses = append(responses, &models.ChildWithCount{
			NodeResponse: *toNodeResponse(root),
			ChildCount:   count,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetChildren returns the direct children of a node, each with its own
// child count.
func (h *TreeHandler) GetChildren(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.GetNode(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	children, err := h.repo.GetChildren(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.ChildWithCount, 0, len(children))
	for _, child := range children {
		if child.DeletedAt != nil {
			continue
		}
		count, err := h.repo.GetChildCount(ctx, child.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		responses = append(responses, &models.ChildWithCount{
			NodeResponse: *toNodeResponse(child),
			ChildCount:   count,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// UpdateNode updates a node's payload attributes.
func (h *TreeHandler) UpdateNode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = models.Slugify(req.Name)
	}
	node := &repository.Node{
		Name:        req.Name,
		Slug:        slug,
		Code:        req.Code,
		Description: req.Description,
		Status:      req.Status,
		UpdatedBy:   req.UpdatedBy,
	}
	if node.Status == "" {
		node.Status = "active"
	}

	if err := h.repo.UpdateNode(c.Request.Context(), id, node); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cache.Invalidate(h.entity)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// MoveNode relocates a subtree under a new parent, or promotes it to the
// root of a new tree when no parent is given.
func (h *TreeHandler) MoveNode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.MoveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.MoveSubtree(c.Request.Context(), id, req.NewParentID); err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidMove):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		default:
			h.logger.Error("move failed", zap.String("entity", h.entity),
				zap.Int64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	cache.Invalidate(h.entity)
	c.JSON(http.StatusOK, gin.H{"id": id, "newParentId": req.NewParentID})
}

// DeleteNode soft deletes a node by default; ?hard=true removes the node
// and its whole subtree permanently.
func (h *TreeHandler) DeleteNode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if c.Query("hard") == "true" {
		err = h.repo.DeleteSubtree(ctx, id)
	} else {
		var req models.DeleteNodeRequest
		// Body is optional for soft deletes.
		_ = c.ShouldBindJSON(&req)
		err = h.repo.SoftDeleteNode(ctx, id, req.DeletedBy)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cache.Invalidate(h.entity)
	c.Status(http.StatusNoContent)
}

// RebuildTree recomputes coordinates for one tree from its parent links.
func (h *TreeHandler) RebuildTree(c *gin.Context) {
	treeID, ok := parseIDParam(c, "treeId")
	if !ok {
		return
	}

	if err := h.repo.Rebuild(c.Request.Context(), treeID); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tree not found"})
			return
		}
		if errors.Is(err, repository.ErrIntegrityViolation) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cache.Invalidate(h.entity)
	c.JSON(http.StatusOK, gin.H{"treeId": treeID})
}
