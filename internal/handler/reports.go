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
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// ReportStore defines the database methods needed by report handlers.
type ReportStore interface {
	ListReports(ctx context.Context, arg store.ListReportsParams) ([]store.ReportDetail, error)
	GetReportDetail(ctx context.Context, id uuid.UUID) (store.ReportDetail, error)
	GetLabTest(ctx context.Context, id uuid.UUID) (store.LabTest, error)
	CreateReport(ctx context.Context, arg store.CreateReportParams) (store.Report, error)
	UpdateReport(ctx context.Context, arg store.UpdateReportParams) (store.Report, error)
	ListRetestRequestsByReport(ctx context.Context, reportID uuid.UUID) ([]store.RetestRequest, error)
	UpdateRetestRequest(ctx context.Context, arg store.UpdateRetestRequestParams) (store.RetestRequest, error)
}

// ReportHandler handles report endpoints.
type ReportHandler struct {
	store ReportStore
	hub   Broadcaster
}

func NewReportHandler(st ReportStore, hub Broadcaster) *ReportHandler {
	return &ReportHandler{store: st, hub: hub}
}

// RegisterRoutes registers report endpoints. Mounted at /reports.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Post("/approve", h.Approve)
		r.Get("/retest-requests", h.ListRetestRequests)
	})
}

// RegisterRetestRoutes registers the admin retest-request endpoints.
// Mounted at /retest-requests.
func (h *ReportHandler) RegisterRetestRoutes(r chi.Router) {
	r.Patch("/{id}", h.UpdateRetestRequest)
}

// --- Request / Response types ---

type createReportRequest struct {
	LabTestID              string `json:"labtest_id"`
	RetestingRequested     bool   `json:"retesting_requested"`
	FinalStatus            string `json:"final_status"`
	CommStatus             string `json:"communication_status"`
	CommChannel            string `json:"communication_channel"`
	CommunicatedToAccounts bool   `json:"communicated_to_accounts"`
}

type updateReportRequest struct {
	RetestingRequested     *bool   `json:"retesting_requested"`
	FinalStatus            *string `json:"final_status"`
	ApprovedBy             *string `json:"approved_by"`
	CommStatus             *string `json:"communication_status"`
	CommChannel            *string `json:"communication_channel"`
	CommunicatedToAccounts *bool   `json:"communicated_to_accounts"`
}

type approveReportRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type updateRetestRequestRequest struct {
	Status        *string `json:"status"`
	AdminResponse *string `json:"admin_response"`
}

// reportResponse is the flattened shape the dashboard consumes: the report
// plus the joined lab test and receipt fields.
type reportResponse struct {
	ID                     uuid.UUID `json:"id"`
	LabTestID              uuid.UUID `json:"labtest_id"`
	RetestingRequested     bool      `json:"retesting_requested"`
	FinalStatus            string    `json:"final_status"`
	ApprovedBy             *string   `json:"approved_by"`
	CommStatus             string    `json:"communication_status"`
	CommChannel            string    `json:"communication_channel"`
	CommunicatedToAccounts bool      `json:"communicated_to_accounts"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	ReceiptID       uuid.UUID `json:"receipt_id"`
	LabDocNo        string    `json:"lab_doc_no"`
	LabPerson       string    `json:"lab_person"`
	TestStatus      string    `json:"test_status"`
	LabReportStatus string    `json:"lab_report_status"`
	LabRemarks      *string   `json:"lab_remarks"`
	ReceiverName    string    `json:"receiver_name"`
	ContactNumber   string    `json:"contact_number"`
	Branch          string    `json:"branch"`
	Company         string    `json:"company"`
	CountOfBoxes    int64     `json:"count_of_boxes"`
	ReceivingMode   string    `json:"receiving_mode"`
	ReceiptDate     string    `json:"receipt_date"`
}

type retestRequestResponse struct {
	ID            uuid.UUID `json:"id"`
	ReportID      uuid.UUID `json:"report_id"`
	OwnerEmail    string    `json:"owner_email"`
	OwnerPhone    *string   `json:"owner_phone"`
	Remarks       string    `json:"remarks"`
	Status        string    `json:"status"`
	AdminResponse *string   `json:"admin_response"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toReportResponse(d store.ReportDetail) reportResponse {
	resp := reportResponse{
		ID:                     d.ID,
		LabTestID:              d.LabTestID,
		RetestingRequested:     d.RetestingRequested,
		FinalStatus:            d.FinalStatus,
		CommStatus:             d.CommStatus,
		CommChannel:            d.CommChannel,
		CommunicatedToAccounts: d.CommunicatedToAccounts,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
		ReceiptID:              d.ReceiptID,
		LabDocNo:               d.LabDocNo,
		LabPerson:              d.LabPerson,
		TestStatus:             d.TestStatus,
		LabReportStatus:        d.LabReportStatus,
		ReceiverName:           d.ReceiverName,
		ContactNumber:          d.ContactNumber,
		Branch:                 d.Branch,
		Company:                d.Company,
		CountOfBoxes:           d.CountBoxes,
		ReceivingMode:          d.ReceivingMode,
		ReceiptDate:            d.ReceiptDate,
	}
	if d.ApprovedBy.Valid {
		resp.ApprovedBy = &d.ApprovedBy.String
	}
	if d.LabRemarks.Valid {
		resp.LabRemarks = &d.LabRemarks.String
	}
	return resp
}

func toRetestRequestResponse(rr store.RetestRequest) retestRequestResponse {
	resp := retestRequestResponse{
		ID:         rr.ID,
		ReportID:   rr.ReportID,
		OwnerEmail: rr.OwnerEmail,
		Remarks:    rr.Remarks,
		Status:     rr.Status,
		CreatedAt:  rr.CreatedAt,
		UpdatedAt:  rr.UpdatedAt,
	}
	if rr.OwnerPhone.Valid {
		resp.OwnerPhone = &rr.OwnerPhone.String
	}
	if rr.AdminResponse.Valid {
		resp.AdminResponse = &rr.AdminResponse.String
	}
	return resp
}

// --- Handlers ---

// List returns reports flattened with their lab test and receipt fields.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	params := store.ListReportsParams{
		FinalStatus: r.URL.Query().Get("final_status"),
	}
	if s := r.URL.Query().Get("labtest_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid labtest_id")
			return
		}
		params.LabTestID = id
	}

	reports, err := h.store.ListReports(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list reports: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]reportResponse, len(reports))
	for i, d := range reports {
		resp[i] = toReportResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single report with joined fields.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report ID")
		return
	}

	detail, err := h.store.GetReportDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("ERROR: get report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(detail))
}

// Create opens a report for an existing lab test.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	labtestID, err := uuid.Parse(req.LabTestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid labtest_id")
		return
	}
	if req.FinalStatus == "" {
		req.FinalStatus = enum.FinalStatusDraft
	}
	if req.CommStatus == "" {
		req.CommStatus = enum.CommStatusPending
	}
	if req.CommChannel == "" {
		req.CommChannel = enum.CommChannelEmail
	}
	if !enum.ValidFinalStatus(req.FinalStatus) {
		writeError(w, http.StatusBadRequest, "invalid final_status")
		return
	}
	if !enum.ValidCommStatus(req.CommStatus) {
		writeError(w, http.StatusBadRequest, "invalid communication_status")
		return
	}
	if !enum.ValidCommChannel(req.CommChannel) {
		writeError(w, http.StatusBadRequest, "invalid communication_channel")
		return
	}

	if _, err := h.store.GetLabTest(r.Context(), labtestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "lab test not found")
			return
		}
		log.Printf("ERROR: get lab test: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rp, err := h.store.CreateReport(r.Context(), store.CreateReportParams{
		LabTestID:              labtestID,
		RetestingRequested:     req.RetestingRequested,
		FinalStatus:            req.FinalStatus,
		CommStatus:             req.CommStatus,
		CommChannel:            req.CommChannel,
		CommunicatedToAccounts: req.CommunicatedToAccounts,
	})
	if err != nil {
		log.Printf("ERROR: create report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.store.GetReportDetail(r.Context(), rp.ID)
	if err != nil {
		log.Printf("ERROR: load created report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(detail))
}

// Update modifies a report's whitelisted fields.
func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report ID")
		return
	}

	var req updateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FinalStatus != nil && !enum.ValidFinalStatus(*req.FinalStatus) {
		writeError(w, http.StatusBadRequest, "invalid final_status")
		return
	}
	if req.CommStatus != nil && !enum.ValidCommStatus(*req.CommStatus) {
		writeError(w, http.StatusBadRequest, "invalid communication_status")
		return
	}
	if req.CommChannel != nil && !enum.ValidCommChannel(*req.CommChannel) {
		writeError(w, http.StatusBadRequest, "invalid communication_channel")
		return
	}

	if _, err := h.store.UpdateReport(r.Context(), store.UpdateReportParams{
		ID:                     id,
		RetestingRequested:     req.RetestingRequested,
		FinalStatus:            req.FinalStatus,
		ApprovedBy:             req.ApprovedBy,
		CommStatus:             req.CommStatus,
		CommChannel:            req.CommChannel,
		CommunicatedToAccounts: req.CommunicatedToAccounts,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("ERROR: update report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.store.GetReportDetail(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: load updated report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(detail))
}

// Approve marks a report APPROVED and records who signed off.
func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report ID")
		return
	}

	var req approveReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ApprovedBy == "" {
		writeError(w, http.StatusBadRequest, "approved_by is required")
		return
	}

	approved := enum.FinalStatusApproved
	if _, err := h.store.UpdateReport(r.Context(), store.UpdateReportParams{
		ID:          id,
		FinalStatus: &approved,
		ApprovedBy:  &req.ApprovedBy,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("ERROR: approve report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.store.GetReportDetail(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: load approved report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	broadcast(h.hub, detail.Branch, "report.approved", toReportResponse(detail))
	writeJSON(w, http.StatusOK, toReportResponse(detail))
}

// ListRetestRequests returns the retest requests filed against a report.
func (h *ReportHandler) ListRetestRequests(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report ID")
		return
	}

	requests, err := h.store.ListRetestRequestsByReport(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list retest requests: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]retestRequestResponse, len(requests))
	for i, rr := range requests {
		resp[i] = toRetestRequestResponse(rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateRetestRequest lets an admin respond to a retest request. Approving
// or completing it also clears/flags the report's retesting_requested bit:
// APPROVED keeps it set (the retest is happening), COMPLETED and REJECTED
// clear it.
func (h *ReportHandler) UpdateRetestRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid retest request ID")
		return
	}

	var req updateRetestRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != nil && !enum.ValidRetestStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	rr, err := h.store.UpdateRetestRequest(r.Context(), store.UpdateRetestRequestParams{
		ID:            id,
		Status:        req.Status,
		AdminResponse: req.AdminResponse,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "retest request not found")
			return
		}
		log.Printf("ERROR: update retest request: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Status != nil && (*req.Status == enum.RetestStatusCompleted || *req.Status == enum.RetestStatusRejected) {
		cleared := false
		if _, err := h.store.UpdateReport(r.Context(), store.UpdateReportParams{
			ID:                 rr.ReportID,
			RetestingRequested: &cleared,
		}); err != nil {
			log.Printf("ERROR: clear retesting_requested: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, toRetestRequestResponse(rr))
}
