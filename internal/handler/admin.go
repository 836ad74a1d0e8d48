package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// AdminStore defines the database methods needed by the admin and debug
// endpoints.
type AdminStore interface {
	ListReceipts(ctx context.Context, arg store.ListReceiptsParams) ([]store.Receipt, error)
	ResetPipeline(ctx context.Context) error
	TableColumns(ctx context.Context, table string) ([]store.TableColumn, error)
	ListRawReceiptIDs(ctx context.Context) ([]string, error)
	RewriteReceiptID(ctx context.Context, oldID string, newID uuid.UUID) error
	CreateReceipt(ctx context.Context, arg store.CreateReceiptParams) (store.Receipt, error)
	CreateLabTest(ctx context.Context, arg store.CreateLabTestParams) (store.LabTest, error)
	CreateReport(ctx context.Context, arg store.CreateReportParams) (store.Report, error)
	UpdateReport(ctx context.Context, arg store.UpdateReportParams) (store.Report, error)
}

// NewAdminStore rebinds the store to a transaction for the ID repair flow.
type NewAdminStore func(db store.DBTX) AdminStore

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AdminHandler serves health checks and the debug/maintenance endpoints.
type AdminHandler struct {
	store    AdminStore
	db       service.TxBeginner
	newStore NewAdminStore
	pinger   Pinger
}

func NewAdminHandler(st AdminStore, db service.TxBeginner, newStore NewAdminStore, pinger Pinger) *AdminHandler {
	return &AdminHandler{store: st, db: db, newStore: newStore, pinger: pinger}
}

// RegisterPublicRoutes registers the unauthenticated health endpoints.
func (h *AdminHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/test-db", h.TestDB)
}

// RegisterAdminRoutes registers the authenticated debug and maintenance
// endpoints directly under /api.
func (h *AdminHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/debug/receipts", h.DebugReceipts)
	r.Post("/reset-demo-data", h.ResetDemoData)
	r.Post("/admin/reset-database", h.ResetDatabase)
	r.Get("/schema/{tableName}", h.Schema)
	r.Post("/fix-receipt-ids", h.FixReceiptIDs)
}

// Health reports liveness.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TestDB pings the database.
func (h *AdminHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.PingContext(r.Context()); err != nil {
		log.Printf("ERROR: db ping: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "reachable"})
}

// DebugReceipts dumps the newest receipts for troubleshooting.
func (h *AdminHandler) DebugReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.store.ListReceipts(r.Context(), store.ListReceiptsParams{})
	if err != nil {
		log.Printf("ERROR: debug receipts: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(receipts) > 20 {
		receipts = receipts[:20]
	}

	resp := make([]receiptResponse, len(receipts))
	for i, rec := range receipts {
		resp[i] = toReceiptResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(resp),
		"receipts": resp,
	})
}

// ResetDatabase wipes all pipeline tables.
func (h *AdminHandler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ResetPipeline(r.Context()); err != nil {
		log.Printf("ERROR: reset database: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "database reset"})
}

// ResetDemoData wipes the pipeline tables and reseeds a small demo dataset
// covering every stage: a fresh receipt, one mid-pipeline and one with an
// approved report.
func (h *AdminHandler) ResetDemoData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.store.ResetPipeline(ctx); err != nil {
		log.Printf("ERROR: reset demo data: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.seedDemoData(ctx); err != nil {
		log.Printf("ERROR: seed demo data: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "demo data reset"})
}

func (h *AdminHandler) seedDemoData(ctx context.Context) error {
	today := time.Now().UTC().Format("2006-01-02")

	// Stage 1: just received.
	if _, err := h.store.CreateReceipt(ctx, store.CreateReceiptParams{
		ReceiverName:  "Ravi Kumar",
		ContactNumber: "9876543210",
		Branch:        "coimbatore",
		Company:       "Acme Textiles",
		CountBoxes:    2,
		ReceivingMode: enum.ReceivingModePerson,
		ReceiptDate:   today,
	}); err != nil {
		return err
	}

	// Stage 2: forwarded and in the lab.
	rec2, err := h.store.CreateReceipt(ctx, store.CreateReceiptParams{
		ReceiverName:     "Priya Sharma",
		ContactNumber:    "9123456780",
		Branch:           "madurai",
		Company:          "Sunrise Foods",
		CountBoxes:       5,
		ReceivingMode:    enum.ReceivingModeCourier,
		ForwardToCentral: true,
		CourierAWB:       sql.NullString{String: "AWB-1001", Valid: true},
		ReceiptDate:      today,
	})
	if err != nil {
		return err
	}
	if _, err := h.store.CreateLabTest(ctx, store.CreateLabTestParams{
		ReceiptID:       rec2.ID,
		LabDocNo:        "LAB-2001",
		LabPerson:       "Dr. Meena",
		TestStatus:      enum.TestStatusInProgress,
		LabReportStatus: enum.LabReportStatusDraft,
	}); err != nil {
		return err
	}

	// Stage 3: tested with an approved report, ready for invoicing.
	rec3, err := h.store.CreateReceipt(ctx, store.CreateReceiptParams{
		ReceiverName:  "Arun Prasad",
		ContactNumber: "9988776655",
		Branch:        "chennai",
		Company:       "Delta Pharma",
		CountBoxes:    1,
		ReceivingMode: enum.ReceivingModeCourier,
		CourierAWB:    sql.NullString{String: "AWB-1002", Valid: true},
		ReceiptDate:   today,
	})
	if err != nil {
		return err
	}
	lt3, err := h.store.CreateLabTest(ctx, store.CreateLabTestParams{
		ReceiptID:       rec3.ID,
		LabDocNo:        "LAB-2002",
		LabPerson:       "Dr. Sanjay",
		TestStatus:      enum.TestStatusCompleted,
		LabReportStatus: enum.LabReportStatusSignedOff,
	})
	if err != nil {
		return err
	}
	rp3, err := h.store.CreateReport(ctx, store.CreateReportParams{
		LabTestID:   lt3.ID,
		FinalStatus: enum.FinalStatusReadyForApproval,
		CommStatus:  enum.CommStatusPending,
		CommChannel: enum.CommChannelEmail,
	})
	if err != nil {
		return err
	}
	approved := enum.FinalStatusApproved
	approver := "admin@example.com"
	_, err = h.store.UpdateReport(ctx, store.UpdateReportParams{
		ID:          rp3.ID,
		FinalStatus: &approved,
		ApprovedBy:  &approver,
	})
	return err
}

// Schema returns PRAGMA table_info for a whitelisted table.
func (h *AdminHandler) Schema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "tableName")
	cols, err := h.store.TableColumns(r.Context(), table)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}

	type columnResponse struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		NotNull bool   `json:"not_null"`
		PK      bool   `json:"primary_key"`
	}
	resp := make([]columnResponse, len(cols))
	for i, c := range cols {
		resp[i] = columnResponse{Name: c.Name, Type: c.Type, NotNull: c.NotNull, PK: c.PK}
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": resp})
}

// FixReceiptIDs rewrites any receipt primary key that is not a valid UUID,
// cascading the change to labtests. Repairs rows imported before IDs were
// UUIDs.
func (h *AdminHandler) FixReceiptIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.store.ListRawReceiptIDs(ctx)
	if err != nil {
		log.Printf("ERROR: list receipt ids: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var broken []string
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			broken = append(broken, id)
		}
	}
	if len(broken) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"fixed": 0})
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback() //nolint:errcheck

	st := h.newStore(tx)
	mapping := make(map[string]string, len(broken))
	for _, oldID := range broken {
		newID := uuid.New()
		if err := st.RewriteReceiptID(ctx, oldID, newID); err != nil {
			log.Printf("ERROR: rewrite receipt id %q: %v", oldID, err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		mapping[oldID] = newID.String()
	}

	if err := tx.Commit(); err != nil {
		log.Printf("ERROR: commit id fixes: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fixed":   len(mapping),
		"mapping": mapping,
	})
}
