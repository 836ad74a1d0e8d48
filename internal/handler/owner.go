package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// OwnerStore defines the database methods needed by the owner portal.
type OwnerStore interface {
	FindReceiptForTracking(ctx context.Context, query string) (store.Receipt, error)
	GetTrackingDetail(ctx context.Context, receiptID uuid.UUID) (store.TrackingDetail, error)
	GetOwnerPreferences(ctx context.Context, ownerEmail string) (store.OwnerPreference, error)
	UpsertOwnerPreferences(ctx context.Context, arg store.UpsertOwnerPreferencesParams) (store.OwnerPreference, error)
	GetReport(ctx context.Context, id uuid.UUID) (store.Report, error)
	CreateRetestRequest(ctx context.Context, arg store.CreateRetestRequestParams) (store.RetestRequest, error)
	UpdateReport(ctx context.Context, arg store.UpdateReportParams) (store.Report, error)
}

// OwnerHandler serves the owner self-service portal.
type OwnerHandler struct {
	store OwnerStore
}

func NewOwnerHandler(st OwnerStore) *OwnerHandler {
	return &OwnerHandler{store: st}
}

// RegisterRoutes registers owner portal endpoints. Mounted at /owner.
func (h *OwnerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/track/{query}", h.Track)
	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.PutPreferences)
	r.Post("/reports/{id}/retest-request", h.RequestRetest)
}

// --- Request / Response types ---

type trackResponse struct {
	Query       string                 `json:"query"`
	CurrentStep string                 `json:"currentStep"`
	ReceiptInfo map[string]any         `json:"receipt_info"`
	Timeline    []service.TimelineStep `json:"timeline"`
}

type preferencesRequest struct {
	OwnerEmail            string  `json:"owner_email"`
	OwnerPhone            *string `json:"owner_phone"`
	EmailNotifications    bool    `json:"email_notifications"`
	WhatsappNotifications bool    `json:"whatsapp_notifications"`
	SMSNotifications      bool    `json:"sms_notifications"`
}

type preferencesResponse struct {
	ID                    uuid.UUID `json:"id"`
	OwnerEmail            string    `json:"owner_email"`
	OwnerPhone            *string   `json:"owner_phone"`
	EmailNotifications    bool      `json:"email_notifications"`
	WhatsappNotifications bool      `json:"whatsapp_notifications"`
	SMSNotifications      bool      `json:"sms_notifications"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type ownerRetestRequest struct {
	OwnerEmail string  `json:"owner_email"`
	OwnerPhone *string `json:"owner_phone"`
	Remarks    string  `json:"remarks"`
}

func toPreferencesResponse(p store.OwnerPreference) preferencesResponse {
	resp := preferencesResponse{
		ID:                    p.ID,
		OwnerEmail:            p.OwnerEmail,
		EmailNotifications:    p.EmailNotifications,
		WhatsappNotifications: p.WhatsappNotifications,
		SMSNotifications:      p.SMSNotifications,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if p.OwnerPhone.Valid {
		resp.OwnerPhone = &p.OwnerPhone.String
	}
	return resp
}

// --- Handlers ---

// Track resolves a tracking query (AWB, receipt ID, or invoice number) and
// returns the pipeline timeline for the matching receipt.
func (h *OwnerHandler) Track(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "tracking query is required")
		return
	}

	receipt, err := h.store.FindReceiptForTracking(r.Context(), query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no receipt found for the provided query")
			return
		}
		log.Printf("ERROR: find receipt for tracking: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.store.GetTrackingDetail(r.Context(), receipt.ID)
	if err != nil {
		log.Printf("ERROR: tracking detail: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	timeline := service.BuildTimeline(detail)

	var awb *string
	if receipt.CourierAWB.Valid {
		awb = &receipt.CourierAWB.String
	}

	writeJSON(w, http.StatusOK, trackResponse{
		Query:       query,
		CurrentStep: service.CurrentStepKey(timeline),
		ReceiptInfo: map[string]any{
			"id":                 receipt.ID,
			"receiver_name":      receipt.ReceiverName,
			"branch":             receipt.Branch,
			"company":            receipt.Company,
			"receiving_mode":     receipt.ReceivingMode,
			"forward_to_chennai": receipt.ForwardToCentral,
			"awb_no":             awb,
			"created_at":         receipt.CreatedAt,
		},
		Timeline: timeline,
	})
}

// GetPreferences returns notification preferences for an owner email.
func (h *OwnerHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	prefs, err := h.store.GetOwnerPreferences(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No stored row yet: report the defaults.
			writeJSON(w, http.StatusOK, preferencesResponse{
				OwnerEmail:         email,
				EmailNotifications: true,
			})
			return
		}
		log.Printf("ERROR: get preferences: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// PutPreferences creates or replaces an owner's notification preferences.
func (h *OwnerHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerEmail == "" {
		writeError(w, http.StatusBadRequest, "owner_email is required")
		return
	}

	var phone sql.NullString
	if req.OwnerPhone != nil && *req.OwnerPhone != "" {
		phone = sql.NullString{String: *req.OwnerPhone, Valid: true}
	}

	prefs, err := h.store.UpsertOwnerPreferences(r.Context(), store.UpsertOwnerPreferencesParams{
		OwnerEmail:            req.OwnerEmail,
		OwnerPhone:            phone,
		EmailNotifications:    req.EmailNotifications,
		WhatsappNotifications: req.WhatsappNotifications,
		SMSNotifications:      req.SMSNotifications,
	})
	if err != nil {
		log.Printf("ERROR: upsert preferences: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// RequestRetest files a retest request against a report and flags the
// report as retesting_requested.
func (h *OwnerHandler) RequestRetest(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report ID")
		return
	}

	var req ownerRetestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerEmail == "" || req.Remarks == "" {
		writeError(w, http.StatusBadRequest, "owner_email and remarks are required")
		return
	}

	if _, err := h.store.GetReport(r.Context(), reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("ERROR: get report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var phone sql.NullString
	if req.OwnerPhone != nil && *req.OwnerPhone != "" {
		phone = sql.NullString{String: *req.OwnerPhone, Valid: true}
	}

	rr, err := h.store.CreateRetestRequest(r.Context(), store.CreateRetestRequestParams{
		ReportID:   reportID,
		OwnerEmail: req.OwnerEmail,
		OwnerPhone: phone,
		Remarks:    req.Remarks,
	})
	if err != nil {
		log.Printf("ERROR: create retest request: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	requested := true
	if _, err := h.store.UpdateReport(r.Context(), store.UpdateReportParams{
		ID:                 reportID,
		RetestingRequested: &requested,
	}); err != nil {
		log.Printf("ERROR: flag retesting_requested: %v", err)
	}

	writeJSON(w, http.StatusCreated, toRetestRequestResponse(rr))
}
