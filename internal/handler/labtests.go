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

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
	"github.com/nvijayanand79/tracklite-sub001/internal/ws"
)

// LabTestStore defines the database methods needed by lab test handlers.
type LabTestStore interface {
	ListLabTests(ctx context.Context, arg store.ListLabTestsParams) ([]store.LabTest, error)
	GetLabTest(ctx context.Context, id uuid.UUID) (store.LabTest, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (store.Receipt, error)
	LabDocNoExistsInBranch(ctx context.Context, labDocNo, branch string) (bool, error)
	CreateLabTest(ctx context.Context, arg store.CreateLabTestParams) (store.LabTest, error)
	UpdateLabTest(ctx context.Context, arg store.UpdateLabTestParams) (store.LabTest, error)
	CreateLabTransfer(ctx context.Context, arg store.CreateLabTransferParams) (store.LabTransfer, error)
	SetLabPerson(ctx context.Context, id uuid.UUID, person string) error
	ListLabTransfers(ctx context.Context, labtestID uuid.UUID) ([]store.LabTransfer, error)
}

// NewLabTestStore rebinds the store to a transaction for the transfer flow.
type NewLabTestStore func(db store.DBTX) LabTestStore

// LabTestHandler handles lab test endpoints.
type LabTestHandler struct {
	store    LabTestStore
	db       service.TxBeginner
	newStore NewLabTestStore
	hub      Broadcaster
}

func NewLabTestHandler(st LabTestStore, db service.TxBeginner, newStore NewLabTestStore, hub Broadcaster) *LabTestHandler {
	return &LabTestHandler{store: st, db: db, newStore: newStore, hub: hub}
}

// RegisterRoutes registers lab test endpoints. Mounted at /labtests.
func (h *LabTestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Post("/transfer", h.Transfer)
	})
}

// --- Request / Response types ---

type createLabTestRequest struct {
	ReceiptID       string  `json:"receipt_id"`
	LabDocNo        string  `json:"lab_doc_no"`
	LabPerson       string  `json:"lab_person"`
	TestStatus      string  `json:"test_status"`
	LabReportStatus string  `json:"lab_report_status"`
	Remarks         *string `json:"remarks"`
}

type updateLabTestRequest struct {
	TestStatus      *string `json:"test_status"`
	LabReportStatus *string `json:"lab_report_status"`
	Remarks         *string `json:"remarks"`
}

type transferRequest struct {
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Reason   string `json:"reason"`
}

type labTestResponse struct {
	ID              uuid.UUID `json:"id"`
	ReceiptID       uuid.UUID `json:"receipt_id"`
	LabDocNo        string    `json:"lab_doc_no"`
	LabPerson       string    `json:"lab_person"`
	TestStatus      string    `json:"test_status"`
	LabReportStatus string    `json:"lab_report_status"`
	Remarks         *string   `json:"remarks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type labTransferResponse struct {
	ID            uuid.UUID `json:"id"`
	LabTestID     uuid.UUID `json:"labtest_id"`
	FromUser      string    `json:"from_user"`
	ToUser        string    `json:"to_user"`
	Reason        string    `json:"reason"`
	TransferredAt time.Time `json:"transferred_at"`
}

type labTestWithTransfersResponse struct {
	labTestResponse
	Transfers []labTransferResponse `json:"transfers"`
}

func toLabTestResponse(lt store.LabTest) labTestResponse {
	resp := labTestResponse{
		ID:              lt.ID,
		ReceiptID:       lt.ReceiptID,
		LabDocNo:        lt.LabDocNo,
		LabPerson:       lt.LabPerson,
		TestStatus:      lt.TestStatus,
		LabReportStatus: lt.LabReportStatus,
		CreatedAt:       lt.CreatedAt,
		UpdatedAt:       lt.UpdatedAt,
	}
	if lt.Remarks.Valid {
		resp.Remarks = &lt.Remarks.String
	}
	return resp
}

func toLabTransferResponse(t store.LabTransfer) labTransferResponse {
	return labTransferResponse{
		ID:            t.ID,
		LabTestID:     t.LabTestID,
		FromUser:      t.FromUser,
		ToUser:        t.ToUser,
		Reason:        t.Reason,
		TransferredAt: t.TransferredAt,
	}
}

// --- Handlers ---

// List returns lab tests, optionally filtered by status and receipt.
func (h *LabTestHandler) List(w http.ResponseWriter, r *http.Request) {
	params := store.ListLabTestsParams{
		TestStatus: r.URL.Query().Get("status"),
	}
	if s := r.URL.Query().Get("receipt_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid receipt_id")
			return
		}
		params.ReceiptID = id
	}

	tests, err := h.store.ListLabTests(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list lab tests: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]labTestResponse, len(tests))
	for i, lt := range tests {
		resp[i] = toLabTestResponse(lt)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single lab test with its transfer history.
func (h *LabTestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lab test ID")
		return
	}

	lt, err := h.store.GetLabTest(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "lab test not found")
			return
		}
		log.Printf("ERROR: get lab test: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	transfers, err := h.store.ListLabTransfers(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list lab transfers: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := labTestWithTransfersResponse{
		labTestResponse: toLabTestResponse(lt),
		Transfers:       make([]labTransferResponse, len(transfers)),
	}
	for i, t := range transfers {
		resp.Transfers[i] = toLabTransferResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create registers a lab test against an existing receipt. The lab document
// number must be unique within the receipt's branch.
func (h *LabTestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLabTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receiptID, err := uuid.Parse(req.ReceiptID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt_id")
		return
	}
	if req.LabDocNo == "" || req.LabPerson == "" {
		writeError(w, http.StatusBadRequest, "lab_doc_no and lab_person are required")
		return
	}
	if req.TestStatus == "" {
		req.TestStatus = enum.TestStatusQueued
	}
	if req.LabReportStatus == "" {
		req.LabReportStatus = enum.LabReportStatusNotStarted
	}
	if !enum.ValidTestStatus(req.TestStatus) {
		writeError(w, http.StatusBadRequest, "invalid test_status")
		return
	}
	if !enum.ValidLabReportStatus(req.LabReportStatus) {
		writeError(w, http.StatusBadRequest, "invalid lab_report_status")
		return
	}

	receipt, err := h.store.GetReceipt(r.Context(), receiptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		log.Printf("ERROR: get receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	exists, err := h.store.LabDocNoExistsInBranch(r.Context(), req.LabDocNo, receipt.Branch)
	if err != nil {
		log.Printf("ERROR: check lab_doc_no: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if exists {
		writeError(w, http.StatusConflict,
			"lab document number '"+req.LabDocNo+"' already exists in branch '"+receipt.Branch+"'")
		return
	}

	var remarks sql.NullString
	if req.Remarks != nil && *req.Remarks != "" {
		remarks = sql.NullString{String: *req.Remarks, Valid: true}
	}

	lt, err := h.store.CreateLabTest(r.Context(), store.CreateLabTestParams{
		ReceiptID:       receiptID,
		LabDocNo:        req.LabDocNo,
		LabPerson:       req.LabPerson,
		TestStatus:      req.TestStatus,
		LabReportStatus: req.LabReportStatus,
		Remarks:         remarks,
	})
	if err != nil {
		log.Printf("ERROR: create lab test: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	broadcast(h.hub, receipt.Branch, "labtest.created", toLabTestResponse(lt))
	writeJSON(w, http.StatusCreated, toLabTestResponse(lt))
}

// Update modifies a lab test's status fields.
func (h *LabTestHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lab test ID")
		return
	}

	var req updateLabTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TestStatus != nil && !enum.ValidTestStatus(*req.TestStatus) {
		writeError(w, http.StatusBadRequest, "invalid test_status")
		return
	}
	if req.LabReportStatus != nil && !enum.ValidLabReportStatus(*req.LabReportStatus) {
		writeError(w, http.StatusBadRequest, "invalid lab_report_status")
		return
	}

	lt, err := h.store.UpdateLabTest(r.Context(), store.UpdateLabTestParams{
		ID:              id,
		TestStatus:      req.TestStatus,
		LabReportStatus: req.LabReportStatus,
		Remarks:         req.Remarks,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "lab test not found")
			return
		}
		log.Printf("ERROR: update lab test: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	broadcast(h.hub, ws.AllBranches, "labtest.updated", toLabTestResponse(lt))
	writeJSON(w, http.StatusOK, toLabTestResponse(lt))
}

// Transfer records a lab transfer and reassigns the lab person in one
// transaction.
func (h *LabTestHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lab test ID")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromUser == "" || req.ToUser == "" || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "from_user, to_user and reason are required")
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback() //nolint:errcheck

	st := h.newStore(tx)

	if _, err := st.GetLabTest(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "lab test not found")
			return
		}
		log.Printf("ERROR: get lab test: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	transfer, err := st.CreateLabTransfer(r.Context(), store.CreateLabTransferParams{
		LabTestID: id,
		FromUser:  req.FromUser,
		ToUser:    req.ToUser,
		Reason:    req.Reason,
	})
	if err != nil {
		log.Printf("ERROR: create lab transfer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := st.SetLabPerson(r.Context(), id, req.ToUser); err != nil {
		log.Printf("ERROR: set lab person: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("ERROR: commit transfer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	broadcast(h.hub, ws.AllBranches, "labtest.transferred", toLabTransferResponse(transfer))
	writeJSON(w, http.StatusCreated, toLabTransferResponse(transfer))
}
