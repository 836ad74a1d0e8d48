package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

type Receipt struct {
	ID               uuid.UUID
	ReceiverName     string
	ContactNumber    string
	Branch           string
	Company          string
	CountBoxes       int64
	ReceivingMode    string
	ForwardToCentral bool
	CourierAWB       sql.NullString
	ReceiptDate      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type LabTest struct {
	ID              uuid.UUID
	ReceiptID       uuid.UUID
	LabDocNo        string
	LabPerson       string
	TestStatus      string
	LabReportStatus string
	Remarks         sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type LabTransfer struct {
	ID            uuid.UUID
	LabTestID     uuid.UUID
	FromUser      string
	ToUser        string
	Reason        string
	TransferredAt time.Time
}

type Report struct {
	ID                     uuid.UUID
	LabTestID              uuid.UUID
	RetestingRequested     bool
	FinalStatus            string
	ApprovedBy             sql.NullString
	CommStatus             string
	CommChannel            string
	CommunicatedToAccounts bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ReportDetail is a report flattened with its lab test and receipt, the shape
// the reports list and detail endpoints return.
type ReportDetail struct {
	Report
	ReceiptID       uuid.UUID
	LabDocNo        string
	LabPerson       string
	TestStatus      string
	LabReportStatus string
	LabRemarks      sql.NullString
	ReceiverName    string
	ContactNumber   string
	Branch          string
	Company         string
	CountBoxes      int64
	ReceivingMode   string
	ReceiptDate     string
}

type RetestRequest struct {
	ID            uuid.UUID
	ReportID      uuid.UUID
	OwnerEmail    string
	OwnerPhone    sql.NullString
	Remarks       string
	Status        string
	AdminResponse sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Invoice struct {
	ID        uuid.UUID
	ReportID  uuid.UUID
	InvoiceNo string
	Status    string
	Amount    string
	IssuedAt  time.Time
	PaidAt    sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovedReportRow feeds the invoice form dropdown: approved reports that
// have no invoice yet.
type ApprovedReportRow struct {
	ID        uuid.UUID
	LabTestID uuid.UUID
	LabDocNo  string
	CreatedAt time.Time
}

type OwnerPreference struct {
	ID                    uuid.UUID
	OwnerEmail            string
	OwnerPhone            sql.NullString
	EmailNotifications    bool
	WhatsappNotifications bool
	SMSNotifications      bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TrackingDetail is everything the owner timeline needs about one receipt:
// the receipt itself plus the latest row of each downstream stage, when one
// exists.
type TrackingDetail struct {
	Receipt Receipt
	LabTest *LabTest
	Report  *Report
	Invoice *Invoice
}

// ReceiptStats summarizes the receipts table for the dashboard.
type ReceiptStats struct {
	TotalReceipts      int64
	ByReceivingMode    map[string]int64
	ByBranch           map[string]int64
	WithAWB            int64
	ForwardedToCentral int64
}
