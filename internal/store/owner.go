package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// FindReceiptForTracking resolves an owner tracking query to a receipt. The
// query may be a courier AWB number, a receipt id, or an invoice number; the
// lookups run in that order and the first hit wins.
func (s *Store) FindReceiptForTracking(ctx context.Context, query string) (Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+receiptColumns+" FROM receipts WHERE courier_awb = ?", query)
	receipt, err := scanReceipt(row)
	if err == nil {
		return receipt, nil
	}
	if err != sql.ErrNoRows {
		return Receipt{}, err
	}

	if id, perr := uuid.Parse(query); perr == nil {
		row = s.db.QueryRowContext(ctx,
			"SELECT "+receiptColumns+" FROM receipts WHERE id = ?", id.String())
		receipt, err = scanReceipt(row)
		if err == nil {
			return receipt, nil
		}
		if err != sql.ErrNoRows {
			return Receipt{}, err
		}
	}

	row = s.db.QueryRowContext(ctx, `SELECT `+qualifiedReceiptColumns+`
		FROM receipts r
		JOIN labtests lt ON lt.receipt_id = r.id
		JOIN reports rp ON rp.labtest_id = lt.id
		JOIN invoices i ON i.report_id = rp.id
		WHERE i.invoice_no = ?`, query)
	return scanReceipt(row)
}

const qualifiedReceiptColumns = `r.id, r.receiver_name, r.contact_number, r.branch, r.company,
	r.count_boxes, r.receiving_mode, r.forward_to_central, r.courier_awb,
	r.receipt_date, r.created_at, r.updated_at`

// GetTrackingDetail loads the receipt plus the newest lab test, report, and
// invoice in its pipeline. Missing stages come back nil.
func (s *Store) GetTrackingDetail(ctx context.Context, receiptID uuid.UUID) (TrackingDetail, error) {
	receipt, err := s.GetReceipt(ctx, receiptID)
	if err != nil {
		return TrackingDetail{}, err
	}
	detail := TrackingDetail{Receipt: receipt}

	row := s.db.QueryRowContext(ctx, "SELECT "+labtestColumns+
		" FROM labtests WHERE receipt_id = ? ORDER BY created_at DESC LIMIT 1",
		receiptID.String())
	labtest, err := scanLabTest(row)
	if err == sql.ErrNoRows {
		return detail, nil
	}
	if err != nil {
		return TrackingDetail{}, err
	}
	detail.LabTest = &labtest

	row = s.db.QueryRowContext(ctx, "SELECT "+reportColumns+
		" FROM reports WHERE labtest_id = ? ORDER BY created_at DESC LIMIT 1",
		labtest.ID.String())
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return detail, nil
	}
	if err != nil {
		return TrackingDetail{}, err
	}
	detail.Report = &report

	row = s.db.QueryRowContext(ctx, "SELECT "+invoiceColumns+
		" FROM invoices WHERE report_id = ? ORDER BY created_at DESC LIMIT 1",
		report.ID.String())
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return detail, nil
	}
	if err != nil {
		return TrackingDetail{}, err
	}
	detail.Invoice = &invoice
	return detail, nil
}

const ownerPrefColumns = `id, owner_email, owner_phone, email_notifications,
	whatsapp_notifications, sms_notifications, created_at, updated_at`

func scanOwnerPreference(row receiptScanner) (OwnerPreference, error) {
	var p OwnerPreference
	var id string
	err := row.Scan(&id, &p.OwnerEmail, &p.OwnerPhone, &p.EmailNotifications,
		&p.WhatsappNotifications, &p.SMSNotifications, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return OwnerPreference{}, err
	}
	p.ID, err = uuid.Parse(id)
	return p, err
}

func (s *Store) GetOwnerPreferences(ctx context.Context, ownerEmail string) (OwnerPreference, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ownerPrefColumns+" FROM owner_preferences WHERE owner_email = ?", ownerEmail)
	return scanOwnerPreference(row)
}

type UpsertOwnerPreferencesParams struct {
	OwnerEmail            string
	OwnerPhone            sql.NullString
	EmailNotifications    bool
	WhatsappNotifications bool
	SMSNotifications      bool
}

func (s *Store) UpsertOwnerPreferences(ctx context.Context, arg UpsertOwnerPreferencesParams) (OwnerPreference, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO owner_preferences
		(id, owner_email, owner_phone, email_notifications, whatsapp_notifications,
		 sms_notifications, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_email) DO UPDATE SET
			owner_phone = excluded.owner_phone,
			email_notifications = excluded.email_notifications,
			whatsapp_notifications = excluded.whatsapp_notifications,
			sms_notifications = excluded.sms_notifications,
			updated_at = excluded.updated_at`,
		uuid.New().String(), arg.OwnerEmail, arg.OwnerPhone, arg.EmailNotifications,
		arg.WhatsappNotifications, arg.SMSNotifications, now, now)
	if err != nil {
		return OwnerPreference{}, err
	}
	return s.GetOwnerPreferences(ctx, arg.OwnerEmail)
}
