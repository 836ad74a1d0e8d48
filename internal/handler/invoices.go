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
	"github.com/shopspring/decimal"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
	"github.com/nvijayanand79/tracklite-sub001/internal/ws"
)

// InvoiceStore defines the database methods needed by invoice handlers.
type InvoiceStore interface {
	ListInvoices(ctx context.Context, arg store.ListInvoicesParams) ([]store.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (store.Invoice, error)
	UpdateInvoice(ctx context.Context, arg store.UpdateInvoiceParams) (store.Invoice, error)
	ListApprovedReportsWithoutInvoice(ctx context.Context) ([]store.ApprovedReportRow, error)
}

// InvoiceCreator issues a new invoice atomically.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req service.CreateInvoiceRequest) (store.Invoice, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	store   InvoiceStore
	creator InvoiceCreator
	hub     Broadcaster
}

func NewInvoiceHandler(st InvoiceStore, creator InvoiceCreator, hub Broadcaster) *InvoiceHandler {
	return &InvoiceHandler{store: st, creator: creator, hub: hub}
}

// RegisterRoutes registers invoice endpoints. Mounted at /invoices.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/approved-reports", h.ApprovedReports)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
	})
}

// --- Request / Response types ---

type createInvoiceRequest struct {
	ReportID string `json:"report_id"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
}

type updateInvoiceRequest struct {
	Status *string `json:"status"`
	Amount *string `json:"amount"`
}

type invoiceResponse struct {
	ID        uuid.UUID  `json:"id"`
	ReportID  uuid.UUID  `json:"report_id"`
	InvoiceNo string     `json:"invoice_no"`
	Status    string     `json:"status"`
	Amount    string     `json:"amount"`
	IssuedAt  time.Time  `json:"issued_at"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type approvedReportResponse struct {
	ID        uuid.UUID `json:"id"`
	LabTestID uuid.UUID `json:"labtest_id"`
	LabDocNo  string    `json:"lab_doc_no"`
	CreatedAt time.Time `json:"created_at"`
}

func toInvoiceResponse(inv store.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:        inv.ID,
		ReportID:  inv.ReportID,
		InvoiceNo: inv.InvoiceNo,
		Status:    inv.Status,
		Amount:    inv.Amount,
		IssuedAt:  inv.IssuedAt,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
	if inv.PaidAt.Valid {
		resp.PaidAt = &inv.PaidAt.Time
	}
	return resp
}

// --- Handlers ---

// List returns invoices, optionally filtered by status and report.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	params := store.ListInvoicesParams{
		Status: r.URL.Query().Get("status"),
	}
	if s := r.URL.Query().Get("report_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid report_id")
			return
		}
		params.ReportID = id
	}

	invoices, err := h.store.ListInvoices(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list invoices: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApprovedReports returns approved reports that still need an invoice.
func (h *InvoiceHandler) ApprovedReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListApprovedReportsWithoutInvoice(r.Context())
	if err != nil {
		log.Printf("ERROR: list approved reports: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]approvedReportResponse, len(reports))
	for i, rp := range reports {
		resp[i] = approvedReportResponse{
			ID:        rp.ID,
			LabTestID: rp.LabTestID,
			LabDocNo:  rp.LabDocNo,
			CreatedAt: rp.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single invoice by ID.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice ID")
		return
	}

	inv, err := h.store.GetInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		log.Printf("ERROR: get invoice: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Create issues an invoice against an approved report.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reportID, err := uuid.Parse(req.ReportID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report_id")
		return
	}

	inv, err := h.creator.CreateInvoice(r.Context(), service.CreateInvoiceRequest{
		ReportID: reportID,
		Amount:   req.Amount,
		Status:   req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, service.ErrReportNotApproved):
			writeError(w, http.StatusBadRequest, "report is not approved")
		case errors.Is(err, service.ErrInvoiceExists):
			writeError(w, http.StatusBadRequest, "report already has an invoice")
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "invalid amount")
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid status")
		default:
			log.Printf("ERROR: create invoice: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	broadcast(h.hub, ws.AllBranches, "invoice.created", toInvoiceResponse(inv))
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

// Update modifies an invoice's status or amount. Moving to PAID stamps
// paid_at; moving away clears it.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice ID")
		return
	}

	var req updateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != nil && !enum.ValidInvoiceStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil || amount.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		canonical := amount.StringFixed(2)
		req.Amount = &canonical
	}

	params := store.UpdateInvoiceParams{
		ID:     id,
		Status: req.Status,
		Amount: req.Amount,
	}
	if req.Status != nil {
		params.SetPaidAt = true
		if *req.Status == enum.InvoiceStatusPaid {
			params.PaidAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		}
	}

	inv, err := h.store.UpdateInvoice(r.Context(), params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		log.Printf("ERROR: update invoice: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Status != nil && *req.Status == enum.InvoiceStatusPaid {
		broadcast(h.hub, ws.AllBranches, "invoice.paid", toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}
