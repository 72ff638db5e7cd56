package constants

const (
	HeaderAccept             = "Accept"
	HeaderAuthorization      = "Authorization"
	HeaderContentType        = "Content-Type"
	HeaderXAuthToken         = "X-Auth-Token"
	HeaderFiwareService      = "FIWARE-Service"
	HeaderFiwareServicePath  = "FIWARE-ServicePath"
	HeaderXRequestID         = "X-Request-ID"
	HeaderProxyRequestID     = "X-Ngsiproxy-Request-ID"
	HeaderDefaultCatalogUser = "X-Ckan-User"

	BearerPrefix = "Bearer "
)
