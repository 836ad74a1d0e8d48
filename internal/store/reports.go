package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const reportColumns = `id, labtest_id, retesting_requested, final_status, approved_by,
	comm_status, comm_channel, communicated_to_accounts, created_at, updated_at`

func scanReport(row receiptScanner) (Report, error) {
	var rp Report
	var id, labtestID string
	err := row.Scan(&id, &labtestID, &rp.RetestingRequested, &rp.FinalStatus, &rp.ApprovedBy,
		&rp.CommStatus, &rp.CommChannel, &rp.CommunicatedToAccounts, &rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		return Report{}, err
	}
	if rp.ID, err = uuid.Parse(id); err != nil {
		return Report{}, err
	}
	rp.LabTestID, err = uuid.Parse(labtestID)
	return rp, err
}

const reportDetailQuery = `SELECT
	rp.id, rp.labtest_id, rp.retesting_requested, rp.final_status, rp.approved_by,
	rp.comm_status, rp.comm_channel, rp.communicated_to_accounts, rp.created_at, rp.updated_at,
	lt.receipt_id, lt.lab_doc_no, lt.lab_person, lt.test_status, lt.lab_report_status, lt.remarks,
	r.receiver_name, r.contact_number, r.branch, r.company, r.count_boxes, r.receiving_mode, r.receipt_date
	FROM reports rp
	JOIN labtests lt ON lt.id = rp.labtest_id
	JOIN receipts r ON r.id = lt.receipt_id`

func scanReportDetail(row receiptScanner) (ReportDetail, error) {
	var d ReportDetail
	var id, labtestID, receiptID string
	err := row.Scan(&id, &labtestID, &d.RetestingRequested, &d.FinalStatus, &d.ApprovedBy,
		&d.CommStatus, &d.CommChannel, &d.CommunicatedToAccounts, &d.CreatedAt, &d.UpdatedAt,
		&receiptID, &d.LabDocNo, &d.LabPerson, &d.TestStatus, &d.LabReportStatus, &d.LabRemarks,
		&d.ReceiverName, &d.ContactNumber, &d.Branch, &d.Company, &d.CountBoxes,
		&d.ReceivingMode, &d.ReceiptDate)
	if err != nil {
		return ReportDetail{}, err
	}
	if d.Report.ID, err = uuid.Parse(id); err != nil {
		return ReportDetail{}, err
	}
	if d.Report.LabTestID, err = uuid.Parse(labtestID); err != nil {
		return ReportDetail{}, err
	}
	d.ReceiptID, err = uuid.Parse(receiptID)
	return d, err
}

type ListReportsParams struct {
	FinalStatus string
	LabTestID   uuid.UUID
}

func (s *Store) ListReports(ctx context.Context, arg ListReportsParams) ([]ReportDetail, error) {
	query := reportDetailQuery + " WHERE 1=1"
	var args []any
	if arg.FinalStatus != "" {
		query += " AND rp.final_status = ?"
		args = append(args, arg.FinalStatus)
	}
	if arg.LabTestID != uuid.Nil {
		query += " AND rp.labtest_id = ?"
		args = append(args, arg.LabTestID.String())
	}
	query += fmt.Sprintf(" ORDER BY rp.created_at DESC LIMIT %d", listCap)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []ReportDetail
	for rows.Next() {
		d, err := scanReportDetail(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, d)
	}
	return reports, rows.Err()
}

func (s *Store) GetReportDetail(ctx context.Context, id uuid.UUID) (ReportDetail, error) {
	row := s.db.QueryRowContext(ctx, reportDetailQuery+" WHERE rp.id = ?", id.String())
	return scanReportDetail(row)
}

func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (Report, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = ?", id.String())
	return scanReport(row)
}

type CreateReportParams struct {
	LabTestID              uuid.UUID
	RetestingRequested     bool
	FinalStatus            string
	CommStatus             string
	CommChannel            string
	CommunicatedToAccounts bool
}

func (s *Store) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	now := time.Now().UTC()
	rp := Report{
		ID:                     uuid.New(),
		LabTestID:              arg.LabTestID,
		RetestingRequested:     arg.RetestingRequested,
		FinalStatus:            arg.FinalStatus,
		CommStatus:             arg.CommStatus,
		CommChannel:            arg.CommChannel,
		CommunicatedToAccounts: arg.CommunicatedToAccounts,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports
		(id, labtest_id, retesting_requested, final_status, approved_by,
		 comm_status, comm_channel, communicated_to_accounts, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
		rp.ID.String(), rp.LabTestID.String(), rp.RetestingRequested, rp.FinalStatus,
		rp.CommStatus, rp.CommChannel, rp.CommunicatedToAccounts, rp.CreatedAt, rp.UpdatedAt)
	if err != nil {
		return Report{}, err
	}
	return rp, nil
}

type UpdateReportParams struct {
	ID                     uuid.UUID
	RetestingRequested     *bool
	FinalStatus            *string
	ApprovedBy             *string
	CommStatus             *string
	CommChannel            *string
	CommunicatedToAccounts *bool
}

func (s *Store) UpdateReport(ctx context.Context, arg UpdateReportParams) (Report, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}

	appendSet := func(col string, v any) {
		set += ", " + col + " = ?"
		args = append(args, v)
	}
	if arg.RetestingRequested != nil {
		appendSet("retesting_requested", *arg.RetestingRequested)
	}
	if arg.FinalStatus != nil {
		appendSet("final_status", *arg.FinalStatus)
	}
	if arg.ApprovedBy != nil {
		appendSet("approved_by", *arg.ApprovedBy)
	}
	if arg.CommStatus != nil {
		appendSet("comm_status", *arg.CommStatus)
	}
	if arg.CommChannel != nil {
		appendSet("comm_channel", *arg.CommChannel)
	}
	if arg.CommunicatedToAccounts != nil {
		appendSet("communicated_to_accounts", *arg.CommunicatedToAccounts)
	}

	args = append(args, arg.ID.String())
	res, err := s.db.ExecContext(ctx, "UPDATE reports SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return Report{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Report{}, err
	} else if n == 0 {
		return Report{}, sql.ErrNoRows
	}
	return s.GetReport(ctx, arg.ID)
}

// ListApprovedReportsWithoutInvoice returns approved reports that have no
// invoice yet, newest first. Feeds the invoice creation dropdown.
func (s *Store) ListApprovedReportsWithoutInvoice(ctx context.Context) ([]ApprovedReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rp.id, rp.labtest_id, lt.lab_doc_no, rp.created_at
		FROM reports rp
		JOIN labtests lt ON lt.id = rp.labtest_id
		LEFT JOIN invoices i ON i.report_id = rp.id
		WHERE rp.final_status = 'APPROVED' AND i.id IS NULL
		ORDER BY rp.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ApprovedReportRow
	for rows.Next() {
		var row ApprovedReportRow
		var id, labtestID string
		if err := rows.Scan(&id, &labtestID, &row.LabDocNo, &row.CreatedAt); err != nil {
			return nil, err
		}
		if row.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if row.LabTestID, err = uuid.Parse(labtestID); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// --- Retest requests ---

const retestColumns = `id, report_id, owner_email, owner_phone, remarks, status,
	admin_response, created_at, updated_at`

func scanRetestRequest(row receiptScanner) (RetestRequest, error) {
	var rr RetestRequest
	var id, reportID string
	err := row.Scan(&id, &reportID, &rr.OwnerEmail, &rr.OwnerPhone, &rr.Remarks,
		&rr.Status, &rr.AdminResponse, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return RetestRequest{}, err
	}
	if rr.ID, err = uuid.Parse(id); err != nil {
		return RetestRequest{}, err
	}
	rr.ReportID, err = uuid.Parse(reportID)
	return rr, err
}

type CreateRetestRequestParams struct {
	ReportID   uuid.UUID
	OwnerEmail string
	OwnerPhone sql.NullString
	Remarks    string
}

func (s *Store) CreateRetestRequest(ctx context.Context, arg CreateRetestRequestParams) (RetestRequest, error) {
	now := time.Now().UTC()
	rr := RetestRequest{
		ID:         uuid.New(),
		ReportID:   arg.ReportID,
		OwnerEmail: arg.OwnerEmail,
		OwnerPhone: arg.OwnerPhone,
		Remarks:    arg.Remarks,
		Status:     "PENDING",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO retest_requests
		(id, report_id, owner_email, owner_phone, remarks, status, admin_response, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		rr.ID.String(), rr.ReportID.String(), rr.OwnerEmail, rr.OwnerPhone,
		rr.Remarks, rr.Status, rr.CreatedAt, rr.UpdatedAt)
	if err != nil {
		return RetestRequest{}, err
	}
	return rr, nil
}

func (s *Store) ListRetestRequestsByReport(ctx context.Context, reportID uuid.UUID) ([]RetestRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+retestColumns+" FROM retest_requests WHERE report_id = ? ORDER BY created_at DESC",
		reportID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []RetestRequest
	for rows.Next() {
		rr, err := scanRetestRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, rr)
	}
	return requests, rows.Err()
}

type UpdateRetestRequestParams struct {
	ID            uuid.UUID
	Status        *string
	AdminResponse *string
}

func (s *Store) UpdateRetestRequest(ctx context.Context, arg UpdateRetestRequestParams) (RetestRequest, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if arg.Status != nil {
		set += ", status = ?"
		args = append(args, *arg.Status)
	}
	if arg.AdminResponse != nil {
		set += ", admin_response = ?"
		args = append(args, *arg.AdminResponse)
	}

	args = append(args, arg.ID.String())
	res, err := s.db.ExecContext(ctx, "UPDATE retest_requests SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return RetestRequest{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return RetestRequest{}, err
	} else if n == 0 {
		return RetestRequest{}, sql.ErrNoRows
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+retestColumns+" FROM retest_requests WHERE id = ?", arg.ID.String())
	return scanRetestRequest(row)
}
