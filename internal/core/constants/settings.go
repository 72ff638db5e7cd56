package constants

// Verify policy sources, highest precedence first
const (
	EnvVerifyRequestsExtension = "CKAN_RIGHT_TIME_CONTEXT_VERIFY_REQUESTS"
	EnvVerifyRequestsGlobal    = "CKAN_VERIFY_REQUESTS"

	ConfigVerifyRequestsExtension = "ckan.right_time_context.verify_requests"
	ConfigVerifyRequestsGlobal    = "ckan.verify_requests"
	ConfigVerifyRequestsLegacy    = "ckan.ngsi.verify_requests"
)
