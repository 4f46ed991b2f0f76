package errors

// ErrorCode identifies a class of failure across the engine.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation / configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeUnknownIndicator     ErrorCode = 104
	ErrCodeUnknownCondition     ErrorCode = 105
	ErrCodeUnsupportedTimeFrame ErrorCode = 106

	// Data errors (200-299)
	ErrCodeMalformedBar       ErrorCode = 200
	ErrCodeOutOfOrderBar      ErrorCode = 201
	ErrCodeDataUnavailable    ErrorCode = 202
	ErrCodeQueryFailed        ErrorCode = 203
	ErrCodeStreamClosed       ErrorCode = 204
	ErrCodeFetchFailed        ErrorCode = 205
	ErrCodeResetNotSupported  ErrorCode = 206
	ErrCodeTimestampUnparsed  ErrorCode = 207
	ErrCodeProviderExhausted  ErrorCode = 208
	ErrCodeProviderConnection ErrorCode = 209

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301

	// Strategy errors (400-499)
	ErrCodeStrategyConfig  ErrorCode = 400
	ErrCodeStrategyRuntime ErrorCode = 401

	// Trading / portfolio errors (500-599)
	ErrCodePositionNotFound ErrorCode = 500
	ErrCodeInvalidFraction  ErrorCode = 501

	// Backtest errors (600-699)
	ErrCodeRunFailed     ErrorCode = 600
	ErrCodeStepExhaust   ErrorCode = 601
	ErrCodeNoProviders   ErrorCode = 602
	ErrCodeRuinCondition ErrorCode = 603
)
