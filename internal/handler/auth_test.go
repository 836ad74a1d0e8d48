package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nvijayanand79/tracklite-sub001/internal/auth"
	"github.com/nvijayanand79/tracklite-sub001/internal/handler"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

const testSecret = "test-secret"

type mockUserStore struct {
	users map[string]store.User
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := m.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func newAuthTestRouter(t *testing.T) (chi.Router, *auth.OTPStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &mockUserStore{users: map[string]store.User{
		"admin@example.com": {
			Email:          "admin@example.com",
			HashedPassword: string(hash),
			FullName:       "Default Admin",
			Role:           "admin",
		},
	}}
	otp := auth.NewOTPStore("123456")
	h := handler.NewAuthHandler(users, otp, testSecret)
	r := chi.NewRouter()
	r.Route("/auth", h.RegisterRoutes)
	return r, otp
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestLogin_Success(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "admin123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		AccessToken string         `json:"access_token"`
		TokenType   string         `json:"token_type"`
		UserInfo    map[string]any `json:"user_info"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type: got %q, want bearer", resp.TokenType)
	}
	claims, err := auth.ValidateToken(testSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Email != "admin@example.com" || claims.Role != "admin" {
		t.Errorf("claims: got email=%q role=%q", claims.Email, claims.Role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "admin123",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/login", map[string]string{"email": "admin@example.com"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPhoneOTPFlow(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/owner/otp-init", map[string]string{"phone": "9876543210"})
	if rr.Code != http.StatusOK {
		t.Fatalf("init status: got %d, want %d", rr.Code, http.StatusOK)
	}

	rr = doJSON(t, r, "POST", "/auth/owner/otp-verify", map[string]string{
		"phone": "9876543210",
		"code":  "123456",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.ValidateToken(testSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Role != "owner" || claims.Scope != "tracking" {
		t.Errorf("claims: got role=%q scope=%q", claims.Role, claims.Scope)
	}
	if claims.Phone != "9876543210" {
		t.Errorf("phone: got %q", claims.Phone)
	}
}

func TestPhoneOTPVerify_WrongCode(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	doJSON(t, r, "POST", "/auth/owner/otp-init", map[string]string{"phone": "9876543210"})

	rr := doJSON(t, r, "POST", "/auth/owner/otp-verify", map[string]string{
		"phone": "9876543210",
		"code":  "000000",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestPhoneOTPVerify_NoOutstandingCode(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/owner/otp-verify", map[string]string{
		"phone": "9876543210",
		"code":  "123456",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestEmailOTPFlow(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	rr := doJSON(t, r, "POST", "/auth/owner/email-otp-init", map[string]string{"email": "owner@example.com"})
	if rr.Code != http.StatusOK {
		t.Fatalf("init status: got %d, want %d", rr.Code, http.StatusOK)
	}

	rr = doJSON(t, r, "POST", "/auth/owner/email-otp-verify", map[string]string{
		"email": "owner@example.com",
		"code":  "123456",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.ValidateToken(testSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Email != "owner@example.com" {
		t.Errorf("email: got %q", claims.Email)
	}
}
