package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google",
	})

	loginURL := provider.GetLoginURL("test-state-value")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}
	query := parsed.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/auth/google"},
		{"response_type", "code"},
		{"state", "test-state-value"},
		{"access_type", "offline"},
		{"prompt", "consent"},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := query.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}

	scope := query.Get("scope")
	if !strings.Contains(scope, "email") || !strings.Contains(scope, "profile") {
		t.Errorf("scope = %q, want email and profile", scope)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if got := r.Form.Get("code"); got != "test-auth-code" {
			t.Errorf("code = %q, want %q", got, "test-auth-code")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "test-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "test-refresh-token",
			"scope":         "openid email profile",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google",
		TokenURL:     tokenServer.URL,
	})

	before := time.Now()
	tokens, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if tokens.AccessToken != "test-access-token" {
		t.Errorf("access token = %q, want %q", tokens.AccessToken, "test-access-token")
	}
	if tokens.RefreshToken != "test-refresh-token" {
		t.Errorf("refresh token = %q, want %q", tokens.RefreshToken, "test-refresh-token")
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("token type = %q, want %q", tokens.TokenType, "Bearer")
	}

	// ExpiresAtはexpires_in秒後の絶対時刻
	wantExpiry := before.Add(3600 * time.Second)
	if tokens.ExpiresAt.Before(wantExpiry.Add(-10*time.Second)) || tokens.ExpiresAt.After(wantExpiry.Add(10*time.Second)) {
		t.Errorf("expires at = %v, want around %v", tokens.ExpiresAt, wantExpiry)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google",
		TokenURL:     tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "invalid-code")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
}

func TestGoogleOAuthProvider_Refresh_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want %q", got, "refresh_token")
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh-token" {
			t.Errorf("refresh_token = %q, want %q", got, "old-refresh-token")
		}

		// Googleのリフレッシュ応答は通常refresh_tokenを含まない
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "new-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     tokenServer.URL,
	})

	tokens, err := provider.Refresh(context.Background(), "old-refresh-token")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if tokens.AccessToken != "new-access-token" {
		t.Errorf("access token = %q, want %q", tokens.AccessToken, "new-access-token")
	}
	// 応答にrefresh_tokenがない場合は渡したものを引き継ぐ
	if tokens.RefreshToken != "old-refresh-token" {
		t.Errorf("refresh token = %q, want %q", tokens.RefreshToken, "old-refresh-token")
	}
}

func TestGoogleOAuthProvider_Refresh_ReplacesRotatedToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rotated-refresh-token",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	tokens, err := provider.Refresh(context.Background(), "old-refresh-token")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tokens.RefreshToken != "rotated-refresh-token" {
		t.Errorf("refresh token = %q, want %q", tokens.RefreshToken, "rotated-refresh-token")
	}
}

func TestGoogleOAuthProvider_Refresh_Error(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "invalid_grant",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	_, err := provider.Refresh(context.Background(), "revoked-token")
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
}

func TestGoogleOAuthProvider_FetchUserInfo_Success(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", authHeader)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "google-id-12345",
			"email": "user@gmail.com",
			"name":  "Google User",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		UserInfoURL: userInfoServer.URL,
	})

	userInfo, err := provider.FetchUserInfo(context.Background(), "test-access-token")
	if err != nil {
		t.Fatalf("FetchUserInfo() error = %v", err)
	}

	if userInfo.Provider != "google" {
		t.Errorf("provider = %q, want %q", userInfo.Provider, "google")
	}
	if userInfo.ProviderUserID != "google-id-12345" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "google-id-12345")
	}
	if userInfo.Email != "user@gmail.com" {
		t.Errorf("email = %q, want %q", userInfo.Email, "user@gmail.com")
	}
}

func TestGoogleOAuthProvider_FetchUserInfo_Unauthorized(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		UserInfoURL: userInfoServer.URL,
	})

	_, err := provider.FetchUserInfo(context.Background(), "expired-access-token")
	if err == nil {
		t.Fatal("expected error when user info fetch fails")
	}
}
