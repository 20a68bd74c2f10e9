package coinledger

const (
	operationCredit   = "credit"
	operationDebit    = "debit"
	operationTransfer = "transfer"
	operationCreate   = "create_request"
	operationApprove  = "approve_request"
	operationReject   = "reject_request"
	operationCancel   = "cancel_request"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Listing bounds for transaction and request history.
	defaultListLimit = 50
	maxListLimit     = 200

	// Application cap on a single admin-issued credit or debit. Enforced at
	// the admin boundary, not inside the engine primitives.
	maxAdminAdjustmentCoins = 10_000

	topSpenderLimit = 10
)
