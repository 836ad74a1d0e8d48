package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nvijayanand79/tracklite-sub001/internal/auth"
	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// UserStore defines the database methods needed by auth handlers.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
}

// AuthHandler handles staff login and the owner OTP flow.
type AuthHandler struct {
	store     UserStore
	otp       *auth.OTPStore
	jwtSecret string
}

func NewAuthHandler(store UserStore, otp *auth.OTPStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, otp: otp, jwtSecret: jwtSecret}
}

// RegisterRoutes mounts the public auth endpoints: /auth/...
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/owner/otp-init", h.PhoneOTPInit)
	r.Post("/owner/otp-verify", h.PhoneOTPVerify)
	r.Post("/owner/email-otp-init", h.EmailOTPInit)
	r.Post("/owner/email-otp-verify", h.EmailOTPVerify)
}

// RegisterOwnerAliases mounts /owner/auth/request-otp and verify-otp, the
// route names the owner portal frontend uses for the phone OTP pair.
func (h *AuthHandler) RegisterOwnerAliases(r chi.Router) {
	r.Post("/request-otp", h.PhoneOTPInit)
	r.Post("/verify-otp", h.PhoneOTPVerify)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	UserInfo    map[string]any `json:"user_info"`
}

type otpInitRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type otpInitResponse struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
	Code  string `json:"code"`
}

// --- Handlers ---

// Login authenticates a staff user with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	token, err := auth.GenerateStaffToken(h.jwtSecret, user.Email, user.FullName, user.Role)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserInfo: map[string]any{
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      user.Role,
		},
	})
}

// PhoneOTPInit issues a one-time code for the given phone number. There is
// no SMS gateway wired up; the code goes to the server log.
func (h *AuthHandler) PhoneOTPInit(w http.ResponseWriter, r *http.Request) {
	var req otpInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	h.issueOTP(w, req.Phone)
}

// EmailOTPInit issues a one-time code for the given email address.
func (h *AuthHandler) EmailOTPInit(w http.ResponseWriter, r *http.Request) {
	var req otpInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	h.issueOTP(w, req.Email)
}

func (h *AuthHandler) issueOTP(w http.ResponseWriter, destination string) {
	code, err := h.otp.Issue(destination)
	if err != nil {
		log.Printf("ERROR: issue otp: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Printf("OTP for %s: %s (valid 5 minutes)", destination, code)

	writeJSON(w, http.StatusOK, otpInitResponse{
		Message:          "OTP sent to " + destination + ". Check console for code.",
		ExpiresInMinutes: 5,
	})
}

// PhoneOTPVerify exchanges a valid phone OTP for an owner tracking token.
func (h *AuthHandler) PhoneOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "phone and code are required")
		return
	}

	if !h.otp.Verify(req.Phone, req.Code) {
		writeError(w, http.StatusUnauthorized, "invalid or expired OTP code")
		return
	}

	token, err := auth.GenerateOwnerToken(h.jwtSecret, req.Phone, "", enum.RoleOwner, enum.ScopeTracking)
	if err != nil {
		log.Printf("ERROR: generate owner token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserInfo: map[string]any{
			"phone": req.Phone,
			"role":  enum.RoleOwner,
			"scope": enum.ScopeTracking,
		},
	})
}

// EmailOTPVerify exchanges a valid email OTP for an owner tracking token.
func (h *AuthHandler) EmailOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if !h.otp.Verify(req.Email, req.Code) {
		writeError(w, http.StatusUnauthorized, "invalid or expired OTP code")
		return
	}

	token, err := auth.GenerateOwnerToken(h.jwtSecret, "", req.Email, enum.RoleOwner, enum.ScopeTracking)
	if err != nil {
		log.Printf("ERROR: generate owner token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserInfo: map[string]any{
			"email": req.Email,
			"role":  enum.RoleOwner,
			"scope": enum.ScopeTracking,
		},
	})
}
