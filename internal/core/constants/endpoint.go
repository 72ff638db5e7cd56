package constants

const (
	DefaultHealthCheckEndpoint = "/internal/health"
	DefaultMetricsEndpoint     = "/internal/metrics"
	DefaultVersionEndpoint     = "/version"

	// DefaultProxyRoute mirrors the route the catalog registers for proxified resources
	DefaultProxyRoute = "/dataset/{id}/resource/{resource_id}/ngsiproxy"
	DefaultViewRoute  = "/dataset/{id}/resource/{resource_id}/view"

	PathParamDataset  = "id"
	PathParamResource = "resource_id"
	PathParamUser     = "user"
)
