package constants

// Resource formats understood by the viewer and the proxy
const (
	FormatNGSI         = "fiware-ngsi"
	FormatNGSIRegistry = "fiware-ngsi-registry"
)

const (
	// DefaultRegistrationQueryPath is appended to the resource url for registry resources
	DefaultRegistrationQueryPath = "/v2/op/query"

	// PathQueryContext marks NGSI v1 queries that must be POSTed with a payload
	PathQueryContext = "/v1/queryContext"

	// DefaultChunkSize is the relay write size towards the browser
	DefaultChunkSize = 512
)

// Keys accepted in a registration expression
const (
	ExpressionGeorel   = "georel"
	ExpressionGeometry = "geometry"
	ExpressionCoords   = "coords"
)

// Flag value used by the catalog forms for checkboxes
const CheckboxOn = "on"
