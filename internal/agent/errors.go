package agent

// Error kinds recorded on a run. Input and parse errors at extraction or
// classification are fatal; the rest are recorded and the run continues.
const (
	KindInputError        = "input_error"
	KindParseError        = "parse_error"
	KindValidationError   = "validation_error"
	KindPersistenceError  = "persistence_error"
	KindNotificationError = "notification_error"
)
