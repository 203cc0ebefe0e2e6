package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lessonbook/internal/model"
	"github.com/hitoshi/lessonbook/internal/schedule"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	ListCourses(ctx context.Context, ownerID string) ([]*model.CourseWithStudents, error)
	CreateCourse(ctx context.Context, ownerID, date, name, categoryID string) (*model.Course, error)
	CloseCourse(ctx context.Context, ownerID, courseID string) (*model.Course, error)
	BatchUpdateCourses(ctx context.Context, ownerID string, datesToAdd, datesToRemove []string) (*schedule.BatchResult, error)
	AddBookings(ctx context.Context, ownerID, courseID string, studentIDs []string) ([]string, error)
	RemoveBooking(ctx context.Context, ownerID, courseID, studentID string) error
}

// CourseHandler はカレンダーコースと受講予約のHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// courseResponse はコースのレスポンスDTO。受講生徒ID一覧を含む。
type courseResponse struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	Name       string   `json:"name"`
	CategoryID string   `json:"category_id,omitempty"`
	Closed     bool     `json:"closed"`
	StudentIDs []string `json:"student_ids"`
}

func toCourseResponse(c *model.Course, studentIDs []string) courseResponse {
	if studentIDs == nil {
		studentIDs = []string{}
	}
	return courseResponse{
		ID:         c.ID,
		Date:       c.Date,
		Name:       c.Name,
		CategoryID: c.CategoryID,
		Closed:     c.Closed,
		StudentIDs: studentIDs,
	}
}

// List はオーナーのコース一覧を受講生徒ID付きで返す。
// GET /api/courses
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	courses, err := h.service.ListCourses(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, toCourseResponse(&c.Course, c.StudentIDs))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はコースを登録する。同一日付の重複は409になる。
// POST /api/courses
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Date       string `json:"date"`
		Name       string `json:"name"`
		CategoryID string `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	course, err := h.service.CreateCourse(r.Context(), ownerID, req.Date, req.Name, req.CategoryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCourseResponse(course, nil))
}

// Close はコースを締め切る。
// POST /api/courses/{id}/close
func (h *CourseHandler) Close(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	course, err := h.service.CloseCourse(r.Context(), ownerID, courseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponse(course, nil))
}

// BatchUpdate は日付単位でコースを一括追加・削除する。
// 予約のある日付の削除はスキップされ、skippedとして報告される。
// PUT /api/courses/batch
func (h *CourseHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		DatesToAdd    []string `json:"dates_to_add"`
		DatesToRemove []string `json:"dates_to_remove"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	result, err := h.service.BatchUpdateCourses(r.Context(), ownerID, req.DatesToAdd, req.DatesToRemove)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AddStudents はコースに生徒を登録する。単体・複数どちらの指定も受け付ける。
// 登録済みの生徒はスキップされる。
// POST /api/courses/{id}/students
func (h *CourseHandler) AddStudents(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	var req struct {
		StudentID  string   `json:"student_id"`
		StudentIDs []string `json:"student_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	studentIDs := req.StudentIDs
	if req.StudentID != "" {
		studentIDs = append(studentIDs, req.StudentID)
	}

	added, err := h.service.AddBookings(r.Context(), ownerID, courseID, studentIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if added == nil {
		added = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"added": added,
	})
}

// RemoveStudent はコースから生徒の予約を解除する。
// DELETE /api/courses/{id}/students/{studentID}
func (h *CourseHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")
	studentID := chi.URLParam(r, "studentID")

	if err := h.service.RemoveBooking(r.Context(), ownerID, courseID, studentID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]interface{}{
			"code":     apiErr.Code,
			"message":  apiErr.Message,
			"category": apiErr.Category,
			"action":   apiErr.Action,
		},
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは内部エラーとして500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスコードに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeStudentNotFound,
		model.ErrCodeCategoryNotFound,
		model.ErrCodeCourseNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateCourse,
		model.ErrCodeDuplicateBooking,
		model.ErrCodeCourseClosed:
		return http.StatusConflict
	case model.ErrCodeInvalidDate,
		model.ErrCodeEmptyName:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
