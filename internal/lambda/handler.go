package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ammiranda/medicine_service/cache"
	"github.com/ammiranda/medicine_service/handlers"
	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"

	"github.com/aws/aws-lambda-go/events"
)

// Handler routes API Gateway events to the category tree store. The
// lambda surface covers the category tree read and create paths; the
// full route set lives in the HTTP server.
type Handler struct {
	repo repository.TreeRepository
}

// NewHandler creates a new Handler with the given repository
func NewHandler(repo repository.TreeRepository) *Handler {
	return &Handler{
		repo: repo,
	}
}

const categoriesPath = "/api/categories"

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case request.HTTPMethod == "GET" && request.Path == categoriesPath:
		return h.handleGetForest(ctx)
	case request.HTTPMethod == "POST" && request.Path == categoriesPath:
		return h.handleCreateNode(ctx, request)
	case request.HTTPMethod == "GET" && strings.HasSuffix(request.Path, "/tree"):
		return h.handleGetSubtree(ctx, request)
	default:
		return jsonError(404, "not found"), nil
	}
}

func jsonError(status int, msg string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"error": %q}`, msg),
	}
}

func jsonResponse(status int, payload interface{}) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return jsonError(500, "failed to marshal response"), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
	}, nil
}

func (h *Handler) handleGetForest(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	if forest, found := cache.GetForest("categories"); found {
		return jsonResponse(200, forest)
	}

	roots, err := h.repo.GetRoots(ctx)
	if err != nil {
		return jsonError(500, err.Error()), nil
	}

	var all []*repository.Node
	for _, root := range roots {
		subtree, err := h.repo.GetSubtree(ctx, root.ID)
		if err != nil {
			return jsonError(500, err.Error()), nil
		}
		all = append(all, subtree...)
	}

	forest, err := handlers.BuildForest(handlers.FilterDeleted(all))
	if err != nil {
		if errors.Is(err, handlers.ErrTreeNotFound) {
			return jsonResponse(200, []*models.TreeNode{})
		}
		return jsonError(500, err.Error()), nil
	}

	cache.SetForest("categories", forest)
	return jsonResponse(200, forest)
}

func (h *Handler) handleGetSubtree(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Path shape: /api/categories/{id}/tree
	trimmed := strings.TrimSuffix(strings.TrimPrefix(request.Path, categoriesPath+"/"), "/tree")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return jsonError(400, "invalid id"), nil
	}

	nodes, err := h.repo.GetSubtree(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return jsonError(404, "node not found"), nil
		}
		return jsonError(500, err.Error()), nil
	}

	tree, err := handlers.BuildSubtree(handlers.FilterDeleted(nodes), id)
	if err != nil {
		return jsonError(404, "node not found"), nil
	}
	return jsonResponse(200, tree)
}

func (h *Handler) handleCreateNode(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.CreateNodeRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return jsonError(400, fmt.Sprintf("invalid request: %v", err)), nil
	}
	if err := req.Validate(); err != nil {
		return jsonError(400, err.Error()), nil
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

	var err error
	if req.ParentID == nil {
		_, err = h.repo.InsertRoot(ctx, node)
	} else {
		_, err = h.repo.AppendChild(ctx, *req.ParentID, node)
	}
	if err != nil {
		if errors.Is(err, repository.ErrParentNotFound) {
			return jsonError(404, "parent node not found"), nil
		}
		return jsonError(500, err.Error()), nil
	}

	cache.Invalidate("categories")

	return jsonResponse(201, map[string]interface{}{
		"id":       node.ID,
		"name":     req.Name,
		"parentId": req.ParentID,
	})
}
