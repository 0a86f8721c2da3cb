package notifications

const (
	TypeLeaveSubmitted   = "leave_submitted"
	TypeLeaveApproved    = "leave_approved"
	TypeLeaveRejected    = "leave_rejected"
	TypeLeaveCancelled   = "leave_cancelled"
	TypeCompOffApplied   = "comp_off_applied"
	TypeAccrualCompleted = "leave_accrual_completed"
)
