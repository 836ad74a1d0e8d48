package handler_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nvijayanand79/tracklite-sub001/internal/handler"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

type mockLabTestStore struct {
	receipts  map[uuid.UUID]store.Receipt
	labtests  map[uuid.UUID]store.LabTest
	transfers map[uuid.UUID][]store.LabTransfer
}

func newMockLabTestStore() *mockLabTestStore {
	return &mockLabTestStore{
		receipts:  make(map[uuid.UUID]store.Receipt),
		labtests:  make(map[uuid.UUID]store.LabTest),
		transfers: make(map[uuid.UUID][]store.LabTransfer),
	}
}

func (m *mockLabTestStore) ListLabTests(ctx context.Context, arg store.ListLabTestsParams) ([]store.LabTest, error) {
	var out []store.LabTest
	for _, lt := range m.labtests {
		if arg.TestStatus != "" && lt.TestStatus != arg.TestStatus {
			continue
		}
		if arg.ReceiptID != uuid.Nil && lt.ReceiptID != arg.ReceiptID {
			continue
		}
		out = append(out, lt)
	}
	return out, nil
}

func (m *mockLabTestStore) GetLabTest(ctx context.Context, id uuid.UUID) (store.LabTest, error) {
	lt, ok := m.labtests[id]
	if !ok {
		return store.LabTest{}, sql.ErrNoRows
	}
	return lt, nil
}

func (m *mockLabTestStore) GetReceipt(ctx context.Context, id uuid.UUID) (store.Receipt, error) {
	r, ok := m.receipts[id]
	if !ok {
		return store.Receipt{}, sql.ErrNoRows
	}
	return r, nil
}

func (m *mockLabTestStore) LabDocNoExistsInBranch(ctx context.Context, labDocNo, branch string) (bool, error) {
	for _, lt := range m.labtests {
		rec, ok := m.receipts[lt.ReceiptID]
		if ok && lt.LabDocNo == labDocNo && rec.Branch == branch {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLabTestStore) CreateLabTest(ctx context.Context, arg store.CreateLabTestParams) (store.LabTest, error) {
	now := time.Now().UTC()
	lt := store.LabTest{
		ID:              uuid.New(),
		ReceiptID:       arg.ReceiptID,
		LabDocNo:        arg.LabDocNo,
		LabPerson:       arg.LabPerson,
		TestStatus:      arg.TestStatus,
		LabReportStatus: arg.LabReportStatus,
		Remarks:         arg.Remarks,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.labtests[lt.ID] = lt
	return lt, nil
}

func (m *mockLabTestStore) UpdateLabTest(ctx context.Context, arg store.UpdateLabTestParams) (store.LabTest, error) {
	lt, ok := m.labtests[arg.ID]
	if !ok {
		return store.LabTest{}, sql.ErrNoRows
	}
	if arg.TestStatus != nil {
		lt.TestStatus = *arg.TestStatus
	}
	if arg.LabReportStatus != nil {
		lt.LabReportStatus = *arg.LabReportStatus
	}
	if arg.Remarks != nil {
		lt.Remarks = sql.NullString{String: *arg.Remarks, Valid: true}
	}
	lt.UpdatedAt = time.Now().UTC()
	m.labtests[arg.ID] = lt
	return lt, nil
}

func (m *mockLabTestStore) CreateLabTransfer(ctx context.Context, arg store.CreateLabTransferParams) (store.LabTransfer, error) {
	t := store.LabTransfer{
		ID:            uuid.New(),
		LabTestID:     arg.LabTestID,
		FromUser:      arg.FromUser,
		ToUser:        arg.ToUser,
		Reason:        arg.Reason,
		TransferredAt: time.Now().UTC(),
	}
	m.transfers[arg.LabTestID] = append(m.transfers[arg.LabTestID], t)
	return t, nil
}

func (m *mockLabTestStore) SetLabPerson(ctx context.Context, id uuid.UUID, person string) error {
	lt, ok := m.labtests[id]
	if !ok {
		return sql.ErrNoRows
	}
	lt.LabPerson = person
	m.labtests[id] = lt
	return nil
}

func (m *mockLabTestStore) ListLabTransfers(ctx context.Context, labtestID uuid.UUID) ([]store.LabTransfer, error) {
	return m.transfers[labtestID], nil
}

func newLabTestTestRouter(m *mockLabTestStore) chi.Router {
	h := handler.NewLabTestHandler(m, nil, nil, nil)
	r := chi.NewRouter()
	r.Route("/labtests", h.RegisterRoutes)
	return r
}

func seedLabTest(m *mockLabTestStore, receiptID uuid.UUID, docNo string) store.LabTest {
	lt := store.LabTest{
		ID:              uuid.New(),
		ReceiptID:       receiptID,
		LabDocNo:        docNo,
		LabPerson:       "Dr. Meena",
		TestStatus:      "QUEUED",
		LabReportStatus: "NOT_STARTED",
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	m.labtests[lt.ID] = lt
	return lt
}

func seedLabReceipt(m *mockLabTestStore, branch string) store.Receipt {
	r := store.Receipt{
		ID:            uuid.New(),
		ReceiverName:  "Ravi Kumar",
		ContactNumber: "9876543210",
		Branch:        branch,
		Company:       "Acme Labs",
		CountBoxes:    1,
		ReceivingMode: "PERSON",
		ReceiptDate:   "2025-01-15",
	}
	m.receipts[r.ID] = r
	return r
}

func TestCreateLabTest_Success(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")

	rr := doJSON(t, r, "POST", "/labtests", map[string]any{
		"receipt_id": rec.ID.String(),
		"lab_doc_no": "LAB-3001",
		"lab_person": "Dr. Meena",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Statuses default when omitted.
	if resp["test_status"] != "QUEUED" {
		t.Errorf("test_status: got %v, want QUEUED", resp["test_status"])
	}
	if resp["lab_report_status"] != "NOT_STARTED" {
		t.Errorf("lab_report_status: got %v, want NOT_STARTED", resp["lab_report_status"])
	}
}

func TestCreateLabTest_ReceiptNotFound(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)

	rr := doJSON(t, r, "POST", "/labtests", map[string]any{
		"receipt_id": uuid.NewString(),
		"lab_doc_no": "LAB-3001",
		"lab_person": "Dr. Meena",
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCreateLabTest_DuplicateDocNoInBranch(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")
	seedLabTest(m, rec.ID, "LAB-3001")

	rr := doJSON(t, r, "POST", "/labtests", map[string]any{
		"receipt_id": rec.ID.String(),
		"lab_doc_no": "LAB-3001",
		"lab_person": "Dr. Meena",
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}

	// The same document number is fine in a different branch.
	other := seedLabReceipt(m, "madurai")
	rr = doJSON(t, r, "POST", "/labtests", map[string]any{
		"receipt_id": other.ID.String(),
		"lab_doc_no": "LAB-3001",
		"lab_person": "Dr. Meena",
	})
	if rr.Code != http.StatusCreated {
		t.Errorf("other branch status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestCreateLabTest_InvalidStatus(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")

	rr := doJSON(t, r, "POST", "/labtests", map[string]any{
		"receipt_id":  rec.ID.String(),
		"lab_doc_no":  "LAB-3001",
		"lab_person":  "Dr. Meena",
		"test_status": "BOGUS",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateLabTest_StatusTransition(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")
	lt := seedLabTest(m, rec.ID, "LAB-3001")

	rr := doJSON(t, r, "PATCH", "/labtests/"+lt.ID.String(), map[string]any{
		"test_status": "IN_PROGRESS",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["test_status"] != "IN_PROGRESS" {
		t.Errorf("test_status: got %v", resp["test_status"])
	}
	if resp["lab_report_status"] != "NOT_STARTED" {
		t.Errorf("lab_report_status changed unexpectedly: got %v", resp["lab_report_status"])
	}
}

func TestUpdateLabTest_InvalidReportStatus(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")
	lt := seedLabTest(m, rec.ID, "LAB-3001")

	rr := doJSON(t, r, "PATCH", "/labtests/"+lt.ID.String(), map[string]any{
		"lab_report_status": "BOGUS",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetLabTest_IncludesTransfers(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)
	rec := seedLabReceipt(m, "coimbatore")
	lt := seedLabTest(m, rec.ID, "LAB-3001")
	m.transfers[lt.ID] = []store.LabTransfer{{
		ID:            uuid.New(),
		LabTestID:     lt.ID,
		FromUser:      "Dr. Meena",
		ToUser:        "Dr. Arun",
		Reason:        "workload",
		TransferredAt: time.Now().UTC(),
	}}

	rr := doJSON(t, r, "GET", "/labtests/"+lt.ID.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		LabDocNo  string `json:"lab_doc_no"`
		Transfers []struct {
			ToUser string `json:"to_user"`
		} `json:"transfers"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.LabDocNo != "LAB-3001" {
		t.Errorf("lab_doc_no: got %q", resp.LabDocNo)
	}
	if len(resp.Transfers) != 1 || resp.Transfers[0].ToUser != "Dr. Arun" {
		t.Errorf("transfers: got %+v", resp.Transfers)
	}
}

func TestGetLabTest_NotFound(t *testing.T) {
	m := newMockLabTestStore()
	r := newLabTestTestRouter(m)

	rr := doJSON(t, r, "GET", "/labtests/"+uuid.NewString(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
