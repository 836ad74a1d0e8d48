package enum

// ── Pipeline state machines (CHECK constrained in DB) ──

const (
	TestStatusQueued      = "QUEUED"
	TestStatusInProgress  = "IN_PROGRESS"
	TestStatusCompleted   = "COMPLETED"
	TestStatusFailed      = "FAILED"
	TestStatusNeedsRetest = "NEEDS_RETEST"
	TestStatusOnHold      = "ON_HOLD"
)

const (
	LabReportStatusNotStarted = "NOT_STARTED"
	LabReportStatusDraft      = "DRAFT"
	LabReportStatusReady      = "READY"
	LabReportStatusSignedOff  = "SIGNED_OFF"
)

const (
	FinalStatusDraft            = "DRAFT"
	FinalStatusReadyForApproval = "READY_FOR_APPROVAL"
	FinalStatusApproved         = "APPROVED"
	FinalStatusRejected         = "REJECTED"
)

const (
	CommStatusPending    = "PENDING"
	CommStatusDispatched = "DISPATCHED"
	CommStatusDelivered  = "DELIVERED"
)

const (
	InvoiceStatusDraft     = "DRAFT"
	InvoiceStatusIssued    = "ISSUED"
	InvoiceStatusSent      = "SENT"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusCancelled = "CANCELLED"
)

const (
	RetestStatusPending   = "PENDING"
	RetestStatusApproved  = "APPROVED"
	RetestStatusRejected  = "REJECTED"
	RetestStatusCompleted = "COMPLETED"
)

// ── Configurable labels (no DB constraint) ──

const (
	ReceivingModePerson  = "PERSON"
	ReceivingModeCourier = "COURIER"
)

const (
	CommChannelCourier  = "COURIER"
	CommChannelInPerson = "IN_PERSON"
	CommChannelEmail    = "EMAIL"
)

const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// ScopeTracking is the limited scope carried by owner OTP tokens.
const ScopeTracking = "tracking"

// ValidTestStatus reports whether s is a known lab test status.
func ValidTestStatus(s string) bool {
	switch s {
	case TestStatusQueued, TestStatusInProgress, TestStatusCompleted,
		TestStatusFailed, TestStatusNeedsRetest, TestStatusOnHold:
		return true
	}
	return false
}

// ValidLabReportStatus reports whether s is a known lab report status.
func ValidLabReportStatus(s string) bool {
	switch s {
	case LabReportStatusNotStarted, LabReportStatusDraft,
		LabReportStatusReady, LabReportStatusSignedOff:
		return true
	}
	return false
}

// ValidFinalStatus reports whether s is a known report final status.
func ValidFinalStatus(s string) bool {
	switch s {
	case FinalStatusDraft, FinalStatusReadyForApproval,
		FinalStatusApproved, FinalStatusRejected:
		return true
	}
	return false
}

// ValidCommStatus reports whether s is a known communication status.
func ValidCommStatus(s string) bool {
	switch s {
	case CommStatusPending, CommStatusDispatched, CommStatusDelivered:
		return true
	}
	return false
}

// ValidCommChannel reports whether s is a known communication channel.
func ValidCommChannel(s string) bool {
	switch s {
	case CommChannelCourier, CommChannelInPerson, CommChannelEmail:
		return true
	}
	return false
}

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusSent,
		InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// ValidRetestStatus reports whether s is a known retest request status.
func ValidRetestStatus(s string) bool {
	switch s {
	case RetestStatusPending, RetestStatusApproved,
		RetestStatusRejected, RetestStatusCompleted:
		return true
	}
	return false
}

// ValidReceivingMode reports whether s is a known receiving mode.
func ValidReceivingMode(s string) bool {
	return s == ReceivingModePerson || s == ReceivingModeCourier
}
