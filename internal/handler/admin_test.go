package handler_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nvijayanand79/tracklite-sub001/internal/handler"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// Admin endpoints lean on raw SQL (PRAGMA, cross-table wipes), so these tests
// run against a real in-memory database instead of a mock store.
func newAdminTestRouter(t *testing.T) (chi.Router, *store.Store, *sql.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db)
	h := handler.NewAdminHandler(st, db, func(d store.DBTX) handler.AdminStore {
		return store.New(d)
	}, db)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	h.RegisterAdminRoutes(r)
	return r, st, db
}

func TestHealth(t *testing.T) {
	r, _, _ := newAdminTestRouter(t)

	rr := doJSON(t, r, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field: got %q", resp["status"])
	}
}

func TestTestDB(t *testing.T) {
	r, _, _ := newAdminTestRouter(t)

	rr := doJSON(t, r, "GET", "/test-db", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestResetDemoData(t *testing.T) {
	r, st, _ := newAdminTestRouter(t)

	rr := doJSON(t, r, "POST", "/reset-demo-data", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	receipts, err := st.ListReceipts(context.Background(), store.ListReceiptsParams{})
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(receipts) != 3 {
		t.Fatalf("demo receipts: got %d, want 3", len(receipts))
	}

	// One of the demo pipelines ends in an approved report.
	reports, err := st.ListReports(context.Background(), store.ListReportsParams{FinalStatus: "APPROVED"})
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 {
		t.Errorf("approved demo reports: got %d, want 1", len(reports))
	}

	// Running it again replaces rather than accumulates.
	rr = doJSON(t, r, "POST", "/reset-demo-data", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second reset status: got %d", rr.Code)
	}
	receipts, err = st.ListReceipts(context.Background(), store.ListReceiptsParams{})
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(receipts) != 3 {
		t.Errorf("receipts after second reset: got %d, want 3", len(receipts))
	}
}

func TestResetDatabase(t *testing.T) {
	r, st, _ := newAdminTestRouter(t)

	doJSON(t, r, "POST", "/reset-demo-data", nil)

	rr := doJSON(t, r, "POST", "/admin/reset-database", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	receipts, err := st.ListReceipts(context.Background(), store.ListReceiptsParams{})
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(receipts) != 0 {
		t.Errorf("receipts after reset: got %d, want 0", len(receipts))
	}
}

func TestSchema(t *testing.T) {
	r, _, _ := newAdminTestRouter(t)

	rr := doJSON(t, r, "GET", "/schema/receipts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Table   string `json:"table"`
		Columns []struct {
			Name string `json:"name"`
			PK   bool   `json:"primary_key"`
		} `json:"columns"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Table != "receipts" {
		t.Errorf("table: got %q", resp.Table)
	}
	if len(resp.Columns) == 0 {
		t.Fatal("no columns returned")
	}

	rr = doJSON(t, r, "GET", "/schema/sqlite_master", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("non-whitelisted table status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestFixReceiptIDs(t *testing.T) {
	r, st, db := newAdminTestRouter(t)
	ctx := context.Background()

	// A healthy UUID row and a legacy row with a non-UUID key.
	good, err := st.CreateReceipt(ctx, store.CreateReceiptParams{
		ReceiverName:  "Ravi Kumar",
		ContactNumber: "9876543210",
		Branch:        "coimbatore",
		Company:       "Acme Labs",
		CountBoxes:    1,
		ReceivingMode: "PERSON",
		ReceiptDate:   "2025-01-15",
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO receipts
		(id, receiver_name, contact_number, branch, company, count_boxes,
		 receiving_mode, forward_to_central, courier_awb, receipt_date, created_at, updated_at)
		VALUES ('legacy-42', 'Priya S', '9123456780', 'madurai', 'Sunrise Foods', 1,
		 'PERSON', 0, NULL, '2025-01-15', datetime('now'), datetime('now'))`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	rr := doJSON(t, r, "POST", "/fix-receipt-ids", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Fixed   int               `json:"fixed"`
		Mapping map[string]string `json:"mapping"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fixed != 1 {
		t.Fatalf("fixed: got %d, want 1", resp.Fixed)
	}

	newID, err := uuid.Parse(resp.Mapping["legacy-42"])
	if err != nil {
		t.Fatalf("mapping value is not a UUID: %v", err)
	}
	rewritten, err := st.GetReceipt(ctx, newID)
	if err != nil {
		t.Fatalf("get rewritten receipt: %v", err)
	}
	if rewritten.ReceiverName != "Priya S" {
		t.Errorf("rewritten receipt: got %q", rewritten.ReceiverName)
	}

	// The valid UUID row is untouched.
	if _, err := st.GetReceipt(ctx, good.ID); err != nil {
		t.Errorf("healthy receipt missing after fix: %v", err)
	}

	// Second run finds nothing to repair.
	rr = doJSON(t, r, "POST", "/fix-receipt-ids", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second run status: got %d", rr.Code)
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if resp.Fixed != 0 {
		t.Errorf("second run fixed: got %d, want 0", resp.Fixed)
	}
}

func TestDebugReceipts(t *testing.T) {
	r, st, _ := newAdminTestRouter(t)

	_, err := st.CreateReceipt(context.Background(), store.CreateReceiptParams{
		ReceiverName:  "Ravi Kumar",
		ContactNumber: "9876543210",
		Branch:        "coimbatore",
		Company:       "Acme Labs",
		CountBoxes:    1,
		ReceivingMode: "PERSON",
		ReceiptDate:   "2025-01-15",
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	rr := doJSON(t, r, "GET", "/debug/receipts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Count    int              `json:"count"`
		Receipts []map[string]any `json:"receipts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Receipts) != 1 {
		t.Errorf("count: got %d with %d receipts", resp.Count, len(resp.Receipts))
	}
}
