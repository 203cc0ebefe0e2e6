package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/lessonbook/internal/auth"
	"github.com/hitoshi/lessonbook/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn      func(state string) string
	establishSessionFn func(ctx context.Context, code string) (*model.Session, error)
	checkSessionFn     func(ctx context.Context, sessionID string) (*model.Session, error)
	refreshSessionFn   func(ctx context.Context, sessionID string) (*model.Session, error)
	logoutFn           func(ctx context.Context, sessionID string) error
	getCurrentUserFn   func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) EstablishSession(ctx context.Context, code string) (*model.Session, error) {
	if m.establishSessionFn != nil {
		return m.establishSessionFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) CheckSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.checkSessionFn != nil {
		return m.checkSessionFn(ctx, sessionID)
	}
	return nil, auth.ErrNotAuthenticated
}

func (m *mockAuthService) RefreshSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.refreshSessionFn != nil {
		return m.refreshSessionFn(ctx, sessionID)
	}
	return nil, auth.ErrNotAuthenticated
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, auth.ErrNotAuthenticated
}

type mockAuthMetrics struct {
	loginSuccess   int
	loginFailures  []string
	refreshSuccess int
	refreshFailure int
	latencies      int
}

func (m *mockAuthMetrics) RecordLoginSuccess() { m.loginSuccess++ }

func (m *mockAuthMetrics) RecordLoginFailure(reason string) {
	m.loginFailures = append(m.loginFailures, reason)
}

func (m *mockAuthMetrics) RecordRefreshSuccess() { m.refreshSuccess++ }

func (m *mockAuthMetrics) RecordRefreshFailure() { m.refreshFailure++ }

func (m *mockAuthMetrics) RecordOAuthLatency(d time.Duration) { m.latencies++ }

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieSecure:  false,
		SessionMaxAge: 7 * 24 * 60 * 60,
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_LoginURL_ReturnsURLAndStateCookie(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/url", nil)
	w := httptest.NewRecorder()

	h.LoginURL(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := decodeBody(t, resp)
	url, ok := body["url"].(string)
	if !ok || url == "" {
		t.Fatal("expected url in response body")
	}
	if !strings.Contains(url, "accounts.google.com") {
		t.Errorf("url = %q, should contain google oauth URL", url)
	}

	stateCookie := findCookie(resp, "oauth_state")
	if stateCookie == nil {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if !strings.Contains(url, stateCookie.Value) {
		t.Error("login URL should contain the state stored in the cookie")
	}
}

func TestAuthHandler_Callback_Success_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		establishSessionFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "test-code" {
				t.Errorf("code = %q, want %q", code, "test-code")
			}
			return &model.Session{
				ID:             "session-id-abc",
				UserID:         "user-id-123",
				TokenExpiresAt: time.Now().Add(time.Hour),
				Status:         model.SessionStatusActive,
			}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?code=test-code&state=test-state", nil)
	// stateの検証のためにcookieを設定
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()

	// トップページにリダイレクトされること
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "/" {
		t.Errorf("Location = %q, want %q", location, "/")
	}

	// セッションCookieが設定されること
	sessionCookie := findCookie(resp, "session_id")
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value != "session-id-abc" {
		t.Errorf("session cookie value = %q, want %q", sessionCookie.Value, "session-id-abc")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie SameSite = %v, want %v", sessionCookie.SameSite, http.SameSiteLaxMode)
	}
	if sessionCookie.MaxAge != 7*24*60*60 {
		t.Errorf("session cookie MaxAge = %d, want %d", sessionCookie.MaxAge, 7*24*60*60)
	}
}

func TestAuthHandler_Callback_MissingCode_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	body := decodeBody(t, resp)
	if body["error"] != "No code provided" {
		t.Errorf("error = %v, want %q", body["error"], "No code provided")
	}
}

func TestAuthHandler_Callback_StateMismatch_RedirectsToError(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?code=test-code&state=wrong-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "correct-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "/auth/error" {
		t.Errorf("Location = %q, want %q", location, "/auth/error")
	}
}

func TestAuthHandler_Callback_ServiceError_RedirectsToError(t *testing.T) {
	svc := &mockAuthService{
		establishSessionFn: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, errors.New("exchange failed")
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?code=bad-code", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "/auth/error" {
		t.Errorf("Location = %q, want %q", location, "/auth/error")
	}

	// 失敗時はセッションCookieを設定しないこと
	if findCookie(resp, "session_id") != nil {
		t.Error("session cookie should not be set on failure")
	}
}

func TestAuthHandler_Callback_RecordsMetrics(t *testing.T) {
	svc := &mockAuthService{
		establishSessionFn: func(ctx context.Context, code string) (*model.Session, error) {
			return &model.Session{ID: "session-1", Status: model.SessionStatusActive}, nil
		},
	}
	m := &mockAuthMetrics{}
	h := NewAuthHandler(svc, testAuthConfig(), m)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?code=test-code", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if m.loginSuccess != 1 {
		t.Errorf("loginSuccess = %d, want 1", m.loginSuccess)
	}
	if m.latencies != 1 {
		t.Errorf("latencies = %d, want 1", m.latencies)
	}
}

func TestAuthHandler_Callback_Failure_RecordsFailureReason(t *testing.T) {
	svc := &mockAuthService{
		establishSessionFn: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, auth.ErrResolutionFailed
		},
	}
	m := &mockAuthMetrics{}
	h := NewAuthHandler(svc, testAuthConfig(), m)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?code=bad-code", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if len(m.loginFailures) != 1 || m.loginFailures[0] != "resolution" {
		t.Errorf("loginFailures = %v, want [resolution]", m.loginFailures)
	}
}

func TestAuthHandler_Check_ValidSession_ReturnsAuthenticated(t *testing.T) {
	svc := &mockAuthService{
		checkSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return &model.Session{ID: sessionID, Status: model.SessionStatusActive}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/check", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	h.Check(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := decodeBody(t, resp)
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
}

func TestAuthHandler_Check_ExpiredToken_ReturnsNeedsRefresh(t *testing.T) {
	svc := &mockAuthService{
		checkSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return &model.Session{ID: sessionID}, auth.ErrTokenExpired
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/check", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
	w := httptest.NewRecorder()

	h.Check(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Token expired" {
		t.Errorf("error = %v, want %q", body["error"], "Token expired")
	}
	if body["needsRefresh"] != true {
		t.Errorf("needsRefresh = %v, want true", body["needsRefresh"])
	}
}

func TestAuthHandler_Check_NoSession_ReturnsNotAuthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/check", nil)
	w := httptest.NewRecorder()

	h.Check(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Not authenticated" {
		t.Errorf("error = %v, want %q", body["error"], "Not authenticated")
	}
	if _, exists := body["needsRefresh"]; exists {
		t.Error("needsRefresh should not be present without a session")
	}
}

func TestAuthHandler_Refresh_Success_ReturnsSuccess(t *testing.T) {
	svc := &mockAuthService{
		refreshSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return &model.Session{ID: sessionID, Status: model.SessionStatusActive}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestAuthHandler_Refresh_NoRefreshToken_ReturnsUnauthorized(t *testing.T) {
	svc := &mockAuthService{
		refreshSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, auth.ErrNoRefreshToken
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "no-refresh-session"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	body := decodeBody(t, resp)
	if body["error"] != "No refresh token" {
		t.Errorf("error = %v, want %q", body["error"], "No refresh token")
	}
}

func TestAuthHandler_Refresh_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Not authenticated" {
		t.Errorf("error = %v, want %q", body["error"], "Not authenticated")
	}
}

func TestAuthHandler_Refresh_ProviderFailure_ReturnsInternalError(t *testing.T) {
	svc := &mockAuthService{
		refreshSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, auth.ErrRefreshFailed
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "failing-session"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Failed to refresh token" {
		t.Errorf("error = %v, want %q", body["error"], "Failed to refresh token")
	}
}

func TestAuthHandler_Logout_Success_ClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-to-logout"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if loggedOut != "session-to-logout" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "session-to-logout")
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}

	sessionCookie := findCookie(resp, "session_id")
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be cleared")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("session cookie MaxAge = %d, want -1 (delete)", sessionCookie.MaxAge)
	}
}

func TestAuthHandler_Logout_NoSession_StillSucceeds(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/google/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestAuthHandler_UserInfo_Authenticated_ReturnsUserJSON(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{
				ID:    "user-id-me",
				Email: "me@example.com",
				Name:  "Me User",
			}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/userinfo", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	h.UserInfo(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	body := decodeBody(t, resp)
	if body["id"] != "user-id-me" {
		t.Errorf("id = %v, want %q", body["id"], "user-id-me")
	}
	if body["email"] != "me@example.com" {
		t.Errorf("email = %v, want %q", body["email"], "me@example.com")
	}
	if body["name"] != "Me User" {
		t.Errorf("name = %v, want %q", body["name"], "Me User")
	}
}

func TestAuthHandler_UserInfo_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/userinfo", nil)
	w := httptest.NewRecorder()

	h.UserInfo(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
