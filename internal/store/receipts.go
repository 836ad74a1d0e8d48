package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const receiptColumns = `id, receiver_name, contact_number, branch, company, count_boxes,
	receiving_mode, forward_to_central, courier_awb, receipt_date, created_at, updated_at`

type receiptScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row receiptScanner) (Receipt, error) {
	var r Receipt
	var id string
	err := row.Scan(&id, &r.ReceiverName, &r.ContactNumber, &r.Branch, &r.Company,
		&r.CountBoxes, &r.ReceivingMode, &r.ForwardToCentral, &r.CourierAWB,
		&r.ReceiptDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Receipt{}, err
	}
	r.ID, err = uuid.Parse(id)
	return r, err
}

type ListReceiptsParams struct {
	Branch   string // substring match, empty = no filter
	Receiver string // substring match, empty = no filter
}

func (s *Store) ListReceipts(ctx context.Context, arg ListReceiptsParams) ([]Receipt, error) {
	query := "SELECT " + receiptColumns + " FROM receipts WHERE 1=1"
	var args []any
	if arg.Branch != "" {
		query += " AND branch LIKE ?"
		args = append(args, "%"+arg.Branch+"%")
	}
	if arg.Receiver != "" {
		query += " AND receiver_name LIKE ?"
		args = append(args, "%"+arg.Receiver+"%")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", listCap)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s *Store) GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+receiptColumns+" FROM receipts WHERE id = ?", id.String())
	return scanReceipt(row)
}

type CreateReceiptParams struct {
	ReceiverName     string
	ContactNumber    string
	Branch           string
	Company          string
	CountBoxes       int64
	ReceivingMode    string
	ForwardToCentral bool
	CourierAWB       sql.NullString
	ReceiptDate      string
}

func (s *Store) CreateReceipt(ctx context.Context, arg CreateReceiptParams) (Receipt, error) {
	now := time.Now().UTC()
	r := Receipt{
		ID:               uuid.New(),
		ReceiverName:     arg.ReceiverName,
		ContactNumber:    arg.ContactNumber,
		Branch:           arg.Branch,
		Company:          arg.Company,
		CountBoxes:       arg.CountBoxes,
		ReceivingMode:    arg.ReceivingMode,
		ForwardToCentral: arg.ForwardToCentral,
		CourierAWB:       arg.CourierAWB,
		ReceiptDate:      arg.ReceiptDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO receipts
		(id, receiver_name, contact_number, branch, company, count_boxes,
		 receiving_mode, forward_to_central, courier_awb, receipt_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.ReceiverName, r.ContactNumber, r.Branch, r.Company, r.CountBoxes,
		r.ReceivingMode, r.ForwardToCentral, r.CourierAWB, r.ReceiptDate, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return Receipt{}, err
	}
	return r, nil
}

// UpdateReceiptParams carries the whitelisted updatable columns. Nil pointers
// leave the column untouched, which is what makes PATCH partial.
type UpdateReceiptParams struct {
	ID               uuid.UUID
	ReceiverName     *string
	ContactNumber    *string
	Branch           *string
	Company          *string
	CountBoxes       *int64
	ReceivingMode    *string
	ForwardToCentral *bool
	CourierAWB       *string
	ReceiptDate      *string
}

func (s *Store) UpdateReceipt(ctx context.Context, arg UpdateReceiptParams) (Receipt, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}

	appendSet := func(col string, v any) {
		set += ", " + col + " = ?"
		args = append(args, v)
	}
	if arg.ReceiverName != nil {
		appendSet("receiver_name", *arg.ReceiverName)
	}
	if arg.ContactNumber != nil {
		appendSet("contact_number", *arg.ContactNumber)
	}
	if arg.Branch != nil {
		appendSet("branch", *arg.Branch)
	}
	if arg.Company != nil {
		appendSet("company", *arg.Company)
	}
	if arg.CountBoxes != nil {
		appendSet("count_boxes", *arg.CountBoxes)
	}
	if arg.ReceivingMode != nil {
		appendSet("receiving_mode", *arg.ReceivingMode)
	}
	if arg.ForwardToCentral != nil {
		appendSet("forward_to_central", *arg.ForwardToCentral)
	}
	if arg.CourierAWB != nil {
		appendSet("courier_awb", *arg.CourierAWB)
	}
	if arg.ReceiptDate != nil {
		appendSet("receipt_date", *arg.ReceiptDate)
	}

	args = append(args, arg.ID.String())
	res, err := s.db.ExecContext(ctx, "UPDATE receipts SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return Receipt{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Receipt{}, err
	} else if n == 0 {
		return Receipt{}, sql.ErrNoRows
	}
	return s.GetReceipt(ctx, arg.ID)
}

func (s *Store) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) GetReceiptStats(ctx context.Context) (ReceiptStats, error) {
	stats := ReceiptStats{
		ByReceivingMode: make(map[string]int64),
		ByBranch:        make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT branch, receiving_mode, courier_awb IS NOT NULL, forward_to_central FROM receipts")
	if err != nil {
		return ReceiptStats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var branch, mode string
		var hasAWB, forwarded bool
		if err := rows.Scan(&branch, &mode, &hasAWB, &forwarded); err != nil {
			return ReceiptStats{}, err
		}
		stats.TotalReceipts++
		stats.ByReceivingMode[mode]++
		stats.ByBranch[branch]++
		if hasAWB {
			stats.WithAWB++
		}
		if forwarded {
			stats.ForwardedToCentral++
		}
	}
	return stats, rows.Err()
}

// ListRawReceiptIDs returns every receipt id as stored, valid UUID or not.
// Used by the legacy-ID repair endpoint.
func (s *Store) ListRawReceiptIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM receipts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RewriteReceiptID replaces a receipt's primary key and cascades the change
// to labtests. Must run inside a transaction.
func (s *Store) RewriteReceiptID(ctx context.Context, oldID string, newID uuid.UUID) error {
	// Children still point at the old id until the second UPDATE lands, so
	// FK checks have to wait for commit.
	if _, err := s.db.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE receipts SET id = ? WHERE id = ?", newID.String(), oldID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE labtests SET receipt_id = ? WHERE receipt_id = ?", newID.String(), oldID)
	return err
}
