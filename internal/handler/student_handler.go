package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lessonbook/internal/middleware"
	"github.com/hitoshi/lessonbook/internal/model"
)

// StudentServiceInterface は生徒ハンドラーが必要とするサービスインターフェース。
type StudentServiceInterface interface {
	ListStudents(ctx context.Context, ownerID string) ([]*model.Student, error)
	CreateStudent(ctx context.Context, ownerID, name, ig string) (*model.Student, error)
	UpdateStudent(ctx context.Context, ownerID, studentID string, name, ig *string) (*model.Student, error)
	ToggleStudent(ctx context.Context, ownerID, studentID string) (*model.Student, error)
}

// StudentHandler は生徒管理のHTTPハンドラー。
type StudentHandler struct {
	service StudentServiceInterface
}

// NewStudentHandler はStudentHandlerを生成する。
func NewStudentHandler(service StudentServiceInterface) *StudentHandler {
	return &StudentHandler{service: service}
}

// studentResponse は生徒のレスポンスDTO。
type studentResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IG     string `json:"ig"`
	Active bool   `json:"active"`
}

func toStudentResponse(s *model.Student) studentResponse {
	return studentResponse{
		ID:     s.ID,
		Name:   s.Name,
		IG:     s.IG,
		Active: s.Active,
	}
}

// List はオーナーの生徒一覧を返す。
// GET /api/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	students, err := h.service.ListStudents(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]studentResponse, 0, len(students))
	for _, s := range students {
		resp = append(resp, toStudentResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create は生徒を登録する。
// POST /api/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
		IG   string `json:"ig"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	student, err := h.service.CreateStudent(r.Context(), ownerID, req.Name, req.IG)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStudentResponse(student))
}

// Update は生徒の名前・IGを部分更新する。
// PATCH /api/students/{id}
func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	studentID := chi.URLParam(r, "id")

	var req struct {
		Name *string `json:"name"`
		IG   *string `json:"ig"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	student, err := h.service.UpdateStudent(r.Context(), ownerID, studentID, req.Name, req.IG)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponse(student))
}

// Toggle は生徒の在籍フラグを反転する。
// POST /api/students/{id}/toggle
func (h *StudentHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	studentID := chi.URLParam(r, "id")

	student, err := h.service.ToggleStudent(r.Context(), ownerID, studentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponse(student))
}

// requireUserID はコンテキストからユーザーIDを取得する。
// 取得できない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return "", false
	}
	return userID, true
}

// writeInvalidRequestResponse は不正なリクエストボディに対する400を書き込む。
func writeInvalidRequestResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディが不正です。",
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	})
}
