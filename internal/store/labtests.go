package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const labtestColumns = `id, receipt_id, lab_doc_no, lab_person, test_status,
	lab_report_status, remarks, created_at, updated_at`

func scanLabTest(row receiptScanner) (LabTest, error) {
	var lt LabTest
	var id, receiptID string
	err := row.Scan(&id, &receiptID, &lt.LabDocNo, &lt.LabPerson, &lt.TestStatus,
		&lt.LabReportStatus, &lt.Remarks, &lt.CreatedAt, &lt.UpdatedAt)
	if err != nil {
		return LabTest{}, err
	}
	if lt.ID, err = uuid.Parse(id); err != nil {
		return LabTest{}, err
	}
	lt.ReceiptID, err = uuid.Parse(receiptID)
	return lt, err
}

type ListLabTestsParams struct {
	TestStatus string    // exact match, empty = no filter
	ReceiptID  uuid.UUID // uuid.Nil = no filter
}

func (s *Store) ListLabTests(ctx context.Context, arg ListLabTestsParams) ([]LabTest, error) {
	query := "SELECT " + labtestColumns + " FROM labtests WHERE 1=1"
	var args []any
	if arg.TestStatus != "" {
		query += " AND test_status = ?"
		args = append(args, arg.TestStatus)
	}
	if arg.ReceiptID != uuid.Nil {
		query += " AND receipt_id = ?"
		args = append(args, arg.ReceiptID.String())
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", listCap)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []LabTest
	for rows.Next() {
		lt, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, lt)
	}
	return tests, rows.Err()
}

func (s *Store) GetLabTest(ctx context.Context, id uuid.UUID) (LabTest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+labtestColumns+" FROM labtests WHERE id = ?", id.String())
	return scanLabTest(row)
}

// LabDocNoExistsInBranch reports whether a lab document number is already
// used by any lab test whose receipt belongs to the given branch. Uniqueness
// is per branch, not global.
func (s *Store) LabDocNoExistsInBranch(ctx context.Context, labDocNo, branch string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM labtests lt
		JOIN receipts r ON r.id = lt.receipt_id
		WHERE lt.lab_doc_no = ? AND r.branch = ?`, labDocNo, branch).Scan(&n)
	return n > 0, err
}

type CreateLabTestParams struct {
	ReceiptID       uuid.UUID
	LabDocNo        string
	LabPerson       string
	TestStatus      string
	LabReportStatus string
	Remarks         sql.NullString
}

func (s *Store) CreateLabTest(ctx context.Context, arg CreateLabTestParams) (LabTest, error) {
	now := time.Now().UTC()
	lt := LabTest{
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO labtests
		(id, receipt_id, lab_doc_no, lab_person, test_status, lab_report_status, remarks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lt.ID.String(), lt.ReceiptID.String(), lt.LabDocNo, lt.LabPerson,
		lt.TestStatus, lt.LabReportStatus, lt.Remarks, lt.CreatedAt, lt.UpdatedAt)
	if err != nil {
		return LabTest{}, err
	}
	return lt, nil
}

type UpdateLabTestParams struct {
	ID              uuid.UUID
	TestStatus      *string
	LabReportStatus *string
	Remarks         *string
}

func (s *Store) UpdateLabTest(ctx context.Context, arg UpdateLabTestParams) (LabTest, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if arg.TestStatus != nil {
		set += ", test_status = ?"
		args = append(args, *arg.TestStatus)
	}
	if arg.LabReportStatus != nil {
		set += ", lab_report_status = ?"
		args = append(args, *arg.LabReportStatus)
	}
	if arg.Remarks != nil {
		set += ", remarks = ?"
		args = append(args, *arg.Remarks)
	}

	args = append(args, arg.ID.String())
	res, err := s.db.ExecContext(ctx, "UPDATE labtests SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return LabTest{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return LabTest{}, err
	} else if n == 0 {
		return LabTest{}, sql.ErrNoRows
	}
	return s.GetLabTest(ctx, arg.ID)
}

// SetLabPerson reassigns the person responsible for a lab test. Called from
// the transfer flow inside the same transaction that logs the transfer.
func (s *Store) SetLabPerson(ctx context.Context, id uuid.UUID, person string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE labtests SET lab_person = ?, updated_at = ? WHERE id = ?",
		person, time.Now().UTC(), id.String())
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

type CreateLabTransferParams struct {
	LabTestID uuid.UUID
	FromUser  string
	ToUser    string
	Reason    string
}

func (s *Store) CreateLabTransfer(ctx context.Context, arg CreateLabTransferParams) (LabTransfer, error) {
	tr := LabTransfer{
		ID:            uuid.New(),
		LabTestID:     arg.LabTestID,
		FromUser:      arg.FromUser,
		ToUser:        arg.ToUser,
		Reason:        arg.Reason,
		TransferredAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lab_transfers
		(id, labtest_id, from_user, to_user, reason, transferred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID.String(), tr.LabTestID.String(), tr.FromUser, tr.ToUser, tr.Reason, tr.TransferredAt)
	if err != nil {
		return LabTransfer{}, err
	}
	return tr, nil
}

func (s *Store) ListLabTransfers(ctx context.Context, labtestID uuid.UUID) ([]LabTransfer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, labtest_id, from_user, to_user, reason, transferred_at
		FROM lab_transfers WHERE labtest_id = ? ORDER BY transferred_at DESC`, labtestID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []LabTransfer
	for rows.Next() {
		var tr LabTransfer
		var id, ltID string
		if err := rows.Scan(&id, &ltID, &tr.FromUser, &tr.ToUser, &tr.Reason, &tr.TransferredAt); err != nil {
			return nil, err
		}
		if tr.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if tr.LabTestID, err = uuid.Parse(ltID); err != nil {
			return nil, err
		}
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}
