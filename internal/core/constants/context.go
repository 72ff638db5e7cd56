package constants

const (
	ContextRequestIdKey = "request_id" // generated per request by the logging middleware
	ContextUserKey      = "user"       // catalog user resolved from the trusted header
)
