package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lessonbook/internal/model"
)

// CategoryServiceInterface はカテゴリハンドラーが必要とするサービスインターフェース。
type CategoryServiceInterface interface {
	ListCategories(ctx context.Context, ownerID string) ([]*model.CourseCategory, error)
	CreateCategory(ctx context.Context, ownerID, name string) (*model.CourseCategory, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID string) error
}

// CategoryHandler はコースカテゴリのHTTPハンドラー。
type CategoryHandler struct {
	service CategoryServiceInterface
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(service CategoryServiceInterface) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// categoryResponse はカテゴリのレスポンスDTO。
type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List はオーナーのカテゴリ一覧を返す。
// GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	categories, err := h.service.ListCategories(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はカテゴリを登録する。
// POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	category, err := h.service.CreateCategory(r.Context(), ownerID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
}

// Delete はカテゴリを削除する。参照するコースは未分類になる。
// DELETE /api/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	categoryID := chi.URLParam(r, "id")

	if err := h.service.DeleteCategory(r.Context(), ownerID, categoryID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
