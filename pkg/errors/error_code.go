package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Connection errors (100-199)
	ErrCodeConnectionFailed ErrorCode = 100
	ErrCodeSessionClosed    ErrorCode = 101
	ErrCodeRequestTimeout   ErrorCode = 102

	// Data errors (200-299)
	ErrCodeTickDataUnavailable   ErrorCode = 200
	ErrCodeSymbolInfoUnavailable ErrorCode = 201
	ErrCodeCrossRateUnavailable  ErrorCode = 202
	ErrCodeHistoryUnavailable    ErrorCode = 203
	ErrCodeAccountInfoFailed     ErrorCode = 204

	// Validation errors (300-399)
	ErrCodeRiskExceedsCeiling ErrorCode = 300
	ErrCodeDistanceTooClose   ErrorCode = 301
	ErrCodeStopsTooTight      ErrorCode = 302
	ErrCodeInvalidPlanEntry   ErrorCode = 303
	ErrCodeInvalidVolume      ErrorCode = 304
	ErrCodeInvalidParameter   ErrorCode = 305
	ErrCodeInvalidOrderSpec   ErrorCode = 306

	// Venue order errors (400-499)
	ErrCodeOrderRejected  ErrorCode = 400
	ErrCodeModifyRejected ErrorCode = 401
	ErrCodeCancelRejected ErrorCode = 402
	ErrCodeOrderGone      ErrorCode = 403

	// State errors (500-599)
	ErrCodeDuplicatePending  ErrorCode = 500
	ErrCodePositionConflict  ErrorCode = 501
	ErrCodeTicketNotFound    ErrorCode = 502
	ErrCodeHistoryDuplicate  ErrorCode = 503
	ErrCodeTierNotApplicable ErrorCode = 504

	// Config errors (600-699)
	ErrCodeInvalidConfig         ErrorCode = 600
	ErrCodePlanDocumentInvalid   ErrorCode = 601
	ErrCodeSchemaVersionMismatch ErrorCode = 602
	ErrCodeUnsupportedGateway    ErrorCode = 603

	// Audit errors (700-799)
	ErrCodeAuditWriteFailed ErrorCode = 700
	ErrCodeAuditQueryFailed ErrorCode = 701
)
