package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(db))
	return db
}

func newInvoiceService(db *sql.DB) *service.InvoiceService {
	return service.NewInvoiceService(db, func(d store.DBTX) service.InvoiceStore {
		return store.New(d)
	})
}

// seedApprovedReport walks a receipt through labtest and report so the
// invoice service has something valid to bill.
func seedApprovedReport(t *testing.T, st *store.Store, labDocNo string) store.Report {
	t.Helper()
	ctx := context.Background()

	rec, err := st.CreateReceipt(ctx, store.CreateReceiptParams{
		ReceiverName:  "Ravi Kumar",
		ContactNumber: "9876543210",
		Branch:        "chennai",
		Company:       "Acme Labs",
		CountBoxes:    1,
		ReceivingMode: "PERSON",
		ReceiptDate:   "2025-01-15",
	})
	require.NoError(t, err)

	lt, err := st.CreateLabTest(ctx, store.CreateLabTestParams{
		ReceiptID:       rec.ID,
		LabDocNo:        labDocNo,
		LabPerson:       "Dr. Meena",
		TestStatus:      "COMPLETED",
		LabReportStatus: "SIGNED_OFF",
	})
	require.NoError(t, err)

	rp, err := st.CreateReport(ctx, store.CreateReportParams{
		LabTestID:   lt.ID,
		FinalStatus: "APPROVED",
		CommStatus:  "PENDING",
		CommChannel: "EMAIL",
	})
	require.NoError(t, err)
	return rp
}

func TestCreateInvoice_Success(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db)
	svc := newInvoiceService(db)
	rp := seedApprovedReport(t, st, "LAB-4001")

	inv, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: rp.ID,
		Amount:   "1500",
	})
	require.NoError(t, err)

	year := time.Now().UTC().Year()
	require.Equal(t, fmt.Sprintf("INV-%d-0001", year), inv.InvoiceNo)
	require.Equal(t, "ISSUED", inv.Status)
	require.Equal(t, "1500.00", inv.Amount)
	require.Equal(t, rp.ID, inv.ReportID)
	require.False(t, inv.PaidAt.Valid)

	// The row is committed, not just returned.
	got, err := st.GetInvoiceByReportID(context.Background(), rp.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
}

func TestCreateInvoice_SequenceIncrements(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db)
	svc := newInvoiceService(db)

	first := seedApprovedReport(t, st, "LAB-4001")
	second := seedApprovedReport(t, st, "LAB-4002")

	inv1, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: first.ID, Amount: "100",
	})
	require.NoError(t, err)
	inv2, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: second.ID, Amount: "200",
	})
	require.NoError(t, err)

	year := time.Now().UTC().Year()
	require.Equal(t, fmt.Sprintf("INV-%d-0001", year), inv1.InvoiceNo)
	require.Equal(t, fmt.Sprintf("INV-%d-0002", year), inv2.InvoiceNo)
}

func TestCreateInvoice_ReportNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newInvoiceService(db)

	_, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: uuid.New(),
		Amount:   "100",
	})
	require.ErrorIs(t, err, service.ErrReportNotFound)
}

func TestCreateInvoice_ReportNotApproved(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db)
	svc := newInvoiceService(db)

	rp := seedApprovedReport(t, st, "LAB-4001")
	draft := "DRAFT"
	_, err := st.UpdateReport(context.Background(), store.UpdateReportParams{
		ID:          rp.ID,
		FinalStatus: &draft,
	})
	require.NoError(t, err)

	_, err = svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: rp.ID,
		Amount:   "100",
	})
	require.ErrorIs(t, err, service.ErrReportNotApproved)
}

func TestCreateInvoice_DuplicateReport(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db)
	svc := newInvoiceService(db)
	rp := seedApprovedReport(t, st, "LAB-4001")

	_, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: rp.ID, Amount: "100",
	})
	require.NoError(t, err)

	_, err = svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: rp.ID, Amount: "100",
	})
	require.ErrorIs(t, err, service.ErrInvoiceExists)
}

func TestCreateInvoice_InvalidAmount(t *testing.T) {
	db := newTestDB(t)
	svc := newInvoiceService(db)

	for _, amount := range []string{"", "abc", "-1"} {
		_, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
			ReportID: uuid.New(),
			Amount:   amount,
		})
		require.ErrorIs(t, err, service.ErrInvalidAmount, "amount %q", amount)
	}
}

func TestCreateInvoice_InvalidStatus(t *testing.T) {
	db := newTestDB(t)
	svc := newInvoiceService(db)

	_, err := svc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ReportID: uuid.New(),
		Amount:   "100",
		Status:   "SHREDDED",
	})
	require.ErrorIs(t, err, service.ErrInvalidStatus)
}
