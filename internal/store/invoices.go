package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const invoiceColumns = `id, report_id, invoice_no, status, amount, issued_at,
	paid_at, created_at, updated_at`

func scanInvoice(row receiptScanner) (Invoice, error) {
	var inv Invoice
	var id, reportID string
	err := row.Scan(&id, &reportID, &inv.InvoiceNo, &inv.Status, &inv.Amount,
		&inv.IssuedAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if inv.ID, err = uuid.Parse(id); err != nil {
		return Invoice{}, err
	}
	inv.ReportID, err = uuid.Parse(reportID)
	return inv, err
}

type ListInvoicesParams struct {
	Status   string
	ReportID uuid.UUID
}

func (s *Store) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE 1=1"
	var args []any
	if arg.Status != "" {
		query += " AND status = ?"
		args = append(args, arg.Status)
	}
	if arg.ReportID != uuid.Nil {
		query += " AND report_id = ?"
		args = append(args, arg.ReportID.String())
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", listCap)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id.String())
	return scanInvoice(row)
}

func (s *Store) GetInvoiceByReportID(ctx context.Context, reportID uuid.UUID) (Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE report_id = ?", reportID.String())
	return scanInvoice(row)
}

// NextInvoiceSequence returns the next free sequence number for the given
// year by parsing the highest existing INV-<year>-NNNN. Callers must run it
// in the same transaction as the insert; the UNIQUE index on invoice_no is
// the backstop for the read-then-write race.
func (s *Store) NextInvoiceSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	var latest string
	err := s.db.QueryRowContext(ctx,
		"SELECT invoice_no FROM invoices WHERE invoice_no LIKE ? ORDER BY invoice_no DESC LIMIT 1",
		prefix+"%").Scan(&latest)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil {
		return 1, nil
	}
	return seq + 1, nil
}

type CreateInvoiceParams struct {
	ReportID  uuid.UUID
	InvoiceNo string
	Status    string
	Amount    string
	IssuedAt  time.Time
}

func (s *Store) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	now := time.Now().UTC()
	inv := Invoice{
		ID:        uuid.New(),
		ReportID:  arg.ReportID,
		InvoiceNo: arg.InvoiceNo,
		Status:    arg.Status,
		Amount:    arg.Amount,
		IssuedAt:  arg.IssuedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO invoices
		(id, report_id, invoice_no, status, amount, issued_at, paid_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		inv.ID.String(), inv.ReportID.String(), inv.InvoiceNo, inv.Status,
		inv.Amount, inv.IssuedAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

type UpdateInvoiceParams struct {
	ID     uuid.UUID
	Status *string
	Amount *string
	// PaidAt is applied whenever SetPaidAt is true, so the caller can both
	// set and clear the column.
	PaidAt    sql.NullTime
	SetPaidAt bool
}

func (s *Store) UpdateInvoice(ctx context.Context, arg UpdateInvoiceParams) (Invoice, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if arg.Status != nil {
		set += ", status = ?"
		args = append(args, *arg.Status)
	}
	if arg.Amount != nil {
		set += ", amount = ?"
		args = append(args, *arg.Amount)
	}
	if arg.SetPaidAt {
		set += ", paid_at = ?"
		args = append(args, arg.PaidAt)
	}

	args = append(args, arg.ID.String())
	res, err := s.db.ExecContext(ctx, "UPDATE invoices SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return Invoice{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Invoice{}, err
	} else if n == 0 {
		return Invoice{}, sql.ErrNoRows
	}
	return s.GetInvoice(ctx, arg.ID)
}
