// Package service holds business logic that spans more than one table and
// has to run inside a transaction.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

const maxInvoiceNoRetries = 3

// Errors returned by the invoice service.
var (
	ErrReportNotFound    = errors.New("report not found")
	ErrReportNotApproved = errors.New("report is not approved")
	ErrInvoiceExists     = errors.New("report already has an invoice")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidStatus     = errors.New("invalid status")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InvoiceStore defines the DB methods needed to issue invoices.
// Satisfied by *store.Store (and its WithTx variant).
type InvoiceStore interface {
	GetReport(ctx context.Context, id uuid.UUID) (store.Report, error)
	GetInvoiceByReportID(ctx context.Context, reportID uuid.UUID) (store.Invoice, error)
	NextInvoiceSequence(ctx context.Context, year int) (int, error)
	CreateInvoice(ctx context.Context, arg store.CreateInvoiceParams) (store.Invoice, error)
}

// NewInvoiceStore creates an InvoiceStore from a DBTX (db or tx), so the
// service can rebind its queries to the transaction it opens.
type NewInvoiceStore func(db store.DBTX) InvoiceStore

// CreateInvoiceRequest is the validated input for issuing an invoice.
type CreateInvoiceRequest struct {
	ReportID uuid.UUID
	Amount   string
	Status   string
}

// InvoiceService issues invoices against approved reports.
type InvoiceService struct {
	db       TxBeginner
	newStore NewInvoiceStore
	now      func() time.Time
}

func NewInvoiceService(db TxBeginner, newStore NewInvoiceStore) *InvoiceService {
	return &InvoiceService{db: db, newStore: newStore, now: time.Now}
}

// CreateInvoice validates the report, generates the next INV-<year>-NNNN
// number, and inserts the invoice atomically. Retries up to
// maxInvoiceNoRetries times on invoice_no unique violations (race where
// concurrent transactions read the same latest sequence).
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (store.Invoice, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return store.Invoice{}, ErrInvalidAmount
	}
	status := req.Status
	if status == "" {
		status = enum.InvoiceStatusIssued
	}
	if !enum.ValidInvoiceStatus(status) {
		return store.Invoice{}, ErrInvalidStatus
	}

	var lastErr error
	for attempt := 0; attempt < maxInvoiceNoRetries; attempt++ {
		inv, err := s.createInvoiceTx(ctx, req.ReportID, amount, status)
		if err == nil {
			return inv, nil
		}
		if store.IsUniqueViolation(err) {
			lastErr = err
			continue
		}
		return store.Invoice{}, err
	}
	return store.Invoice{}, lastErr
}

func (s *InvoiceService) createInvoiceTx(ctx context.Context, reportID uuid.UUID, amount decimal.Decimal, status string) (store.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	st := s.newStore(tx)

	report, err := st.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Invoice{}, ErrReportNotFound
		}
		return store.Invoice{}, fmt.Errorf("get report: %w", err)
	}
	if report.FinalStatus != enum.FinalStatusApproved {
		return store.Invoice{}, ErrReportNotApproved
	}

	if _, err := st.GetInvoiceByReportID(ctx, reportID); err == nil {
		return store.Invoice{}, ErrInvoiceExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Invoice{}, fmt.Errorf("check existing invoice: %w", err)
	}

	now := s.now().UTC()
	seq, err := st.NextInvoiceSequence(ctx, now.Year())
	if err != nil {
		return store.Invoice{}, fmt.Errorf("next invoice sequence: %w", err)
	}

	inv, err := st.CreateInvoice(ctx, store.CreateInvoiceParams{
		ReportID:  reportID,
		InvoiceNo: fmt.Sprintf("INV-%d-%04d", now.Year(), seq),
		Status:    status,
		Amount:    amount.StringFixed(2),
		IssuedAt:  now,
	})
	if err != nil {
		return store.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Invoice{}, fmt.Errorf("commit: %w", err)
	}
	return inv, nil
}
