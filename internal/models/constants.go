package models

const (
	TaskConfirmationEmail = "confirmation_email"
	TaskLedgerAppend      = "ledger_append"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	// DefaultMaxStayDays is the longest stay accepted at the boundary.
	DefaultMaxStayDays = 31

	// DefaultSearchCacheTTL is in seconds.
	DefaultSearchCacheTTL = 30

	// WorkerQueueSize is the capacity of the local outbox channel.
	WorkerQueueSize = 1000

	// BookingSubmitLimit is how many booking submissions a user may make per BookingSubmitWindow seconds.
	BookingSubmitLimit  = 10
	BookingSubmitWindow = 60
)
