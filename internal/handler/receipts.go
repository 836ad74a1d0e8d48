package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
	"github.com/nvijayanand79/tracklite-sub001/internal/ws"
)

// centralBranch is where forwarded samples end up. Forwarding from any other
// branch needs a courier AWB so the shipment can be traced.
const centralBranch = "chennai"

// ReceiptStore defines the database methods needed by receipt handlers.
type ReceiptStore interface {
	ListReceipts(ctx context.Context, arg store.ListReceiptsParams) ([]store.Receipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (store.Receipt, error)
	CreateReceipt(ctx context.Context, arg store.CreateReceiptParams) (store.Receipt, error)
	UpdateReceipt(ctx context.Context, arg store.UpdateReceiptParams) (store.Receipt, error)
	DeleteReceipt(ctx context.Context, id uuid.UUID) error
	GetReceiptStats(ctx context.Context) (store.ReceiptStats, error)
}

// Broadcaster pushes an event to dashboard clients watching a branch.
type Broadcaster interface {
	BroadcastToBranch(branch string, event ws.Event)
}

// ReceiptHandler handles receipt CRUD endpoints.
type ReceiptHandler struct {
	store ReceiptStore
	hub   Broadcaster
}

func NewReceiptHandler(store ReceiptStore, hub Broadcaster) *ReceiptHandler {
	return &ReceiptHandler{store: store, hub: hub}
}

// RegisterRoutes registers receipt endpoints. Mounted at /receipts.
func (h *ReceiptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats/summary", h.Stats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

// --- Request / Response types ---

// Field names follow what the dashboard sends: count_of_boxes,
// forward_to_chennai, awb_no, date.
type createReceiptRequest struct {
	ReceiverName     string  `json:"receiver_name"`
	ContactNumber    string  `json:"contact_number"`
	Date             string  `json:"date"`
	Branch           string  `json:"branch"`
	Company          string  `json:"company"`
	CountOfBoxes     int64   `json:"count_of_boxes"`
	ReceivingMode    string  `json:"receiving_mode"`
	ForwardToChennai bool    `json:"forward_to_chennai"`
	AWBNo            *string `json:"awb_no"`
}

type updateReceiptRequest struct {
	ReceiverName     *string `json:"receiver_name"`
	ContactNumber    *string `json:"contact_number"`
	Date             *string `json:"date"`
	Branch           *string `json:"branch"`
	Company          *string `json:"company"`
	CountOfBoxes     *int64  `json:"count_of_boxes"`
	ReceivingMode    *string `json:"receiving_mode"`
	ForwardToChennai *bool   `json:"forward_to_chennai"`
	AWBNo            *string `json:"awb_no"`
}

type receiptResponse struct {
	ID               uuid.UUID `json:"id"`
	ReceiverName     string    `json:"receiver_name"`
	ContactNumber    string    `json:"contact_number"`
	Date             string    `json:"date"`
	Branch           string    `json:"branch"`
	Company          string    `json:"company"`
	CountOfBoxes     int64     `json:"count_of_boxes"`
	ReceivingMode    string    `json:"receiving_mode"`
	ForwardToChennai bool      `json:"forward_to_chennai"`
	AWBNo            *string   `json:"awb_no"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toReceiptResponse(rec store.Receipt) receiptResponse {
	resp := receiptResponse{
		ID:               rec.ID,
		ReceiverName:     rec.ReceiverName,
		ContactNumber:    rec.ContactNumber,
		Date:             rec.ReceiptDate,
		Branch:           rec.Branch,
		Company:          rec.Company,
		CountOfBoxes:     rec.CountBoxes,
		ReceivingMode:    rec.ReceivingMode,
		ForwardToChennai: rec.ForwardToCentral,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if rec.CourierAWB.Valid {
		resp.AWBNo = &rec.CourierAWB.String
	}
	return resp
}

func validateCreateReceipt(req createReceiptRequest) string {
	switch {
	case req.ReceiverName == "":
		return "receiver_name is required"
	case req.ContactNumber == "":
		return "contact_number is required"
	case req.Branch == "":
		return "branch is required"
	case req.Company == "":
		return "company is required"
	case req.CountOfBoxes < 1:
		return "count_of_boxes must be at least 1"
	case !enum.ValidReceivingMode(req.ReceivingMode):
		return "receiving_mode must be PERSON or COURIER"
	case req.Date == "":
		return "date is required"
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "date must be in YYYY-MM-DD format"
	}
	hasAWB := req.AWBNo != nil && *req.AWBNo != ""
	if req.ReceivingMode == enum.ReceivingModeCourier && !hasAWB {
		return "awb_no is required when receiving_mode is COURIER"
	}
	if req.ForwardToChennai && !strings.EqualFold(req.Branch, centralBranch) && !hasAWB {
		return "awb_no is required when forwarding from a non-central branch"
	}
	return ""
}

// --- Handlers ---

// List returns recent receipts, optionally filtered by branch and receiver.
func (h *ReceiptHandler) List(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.store.ListReceipts(r.Context(), store.ListReceiptsParams{
		Branch:   r.URL.Query().Get("branch"),
		Receiver: r.URL.Query().Get("receiver"),
	})
	if err != nil {
		log.Printf("ERROR: list receipts: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]receiptResponse, len(receipts))
	for i, rec := range receipts {
		resp[i] = toReceiptResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single receipt by ID.
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt ID")
		return
	}

	rec, err := h.store.GetReceipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		log.Printf("ERROR: get receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rec))
}

// Create registers a new receipt.
func (h *ReceiptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateCreateReceipt(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var awb sql.NullString
	if req.AWBNo != nil && *req.AWBNo != "" {
		awb = sql.NullString{String: *req.AWBNo, Valid: true}
	}

	rec, err := h.store.CreateReceipt(r.Context(), store.CreateReceiptParams{
		ReceiverName:     req.ReceiverName,
		ContactNumber:    req.ContactNumber,
		Branch:           req.Branch,
		Company:          req.Company,
		CountBoxes:       req.CountOfBoxes,
		ReceivingMode:    req.ReceivingMode,
		ForwardToCentral: req.ForwardToChennai,
		CourierAWB:       awb,
		ReceiptDate:      req.Date,
	})
	if err != nil {
		log.Printf("ERROR: create receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	broadcast(h.hub, rec.Branch, "receipt.created", toReceiptResponse(rec))
	writeJSON(w, http.StatusCreated, toReceiptResponse(rec))
}

// Update modifies a receipt. PUT and PATCH share the same partial semantics:
// only whitelisted fields present in the body are applied.
func (h *ReceiptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt ID")
		return
	}

	var req updateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReceivingMode != nil && !enum.ValidReceivingMode(*req.ReceivingMode) {
		writeError(w, http.StatusBadRequest, "receiving_mode must be PERSON or COURIER")
		return
	}
	if req.CountOfBoxes != nil && *req.CountOfBoxes < 1 {
		writeError(w, http.StatusBadRequest, "count_of_boxes must be at least 1")
		return
	}

	rec, err := h.store.UpdateReceipt(r.Context(), store.UpdateReceiptParams{
		ID:               id,
		ReceiverName:     req.ReceiverName,
		ContactNumber:    req.ContactNumber,
		Branch:           req.Branch,
		Company:          req.Company,
		CountBoxes:       req.CountOfBoxes,
		ReceivingMode:    req.ReceivingMode,
		ForwardToCentral: req.ForwardToChennai,
		CourierAWB:       req.AWBNo,
		ReceiptDate:      req.Date,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		log.Printf("ERROR: update receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rec))
}

// Delete removes a receipt.
func (h *ReceiptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt ID")
		return
	}

	if err := h.store.DeleteReceipt(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		if store.IsForeignKeyViolation(err) {
			writeError(w, http.StatusConflict, "receipt has lab tests and cannot be deleted")
			return
		}
		log.Printf("ERROR: delete receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "receipt deleted"})
}

// Stats returns dashboard summary counts over the receipts table.
func (h *ReceiptHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetReceiptStats(r.Context())
	if err != nil {
		log.Printf("ERROR: receipt stats: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_receipts":       stats.TotalReceipts,
		"by_receiving_mode":    stats.ByReceivingMode,
		"by_branch":            stats.ByBranch,
		"with_awb":             stats.WithAWB,
		"forwarded_to_chennai": stats.ForwardedToCentral,
	})
}

// broadcast marshals payload and pushes the event, tolerating a nil hub so
// handlers stay easy to construct in tests.
func broadcast(hub Broadcaster, branch, eventType string, payload any) {
	if hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	hub.BroadcastToBranch(branch, ws.Event{Type: eventType, Payload: raw})
}
