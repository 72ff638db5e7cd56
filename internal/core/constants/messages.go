package constants

// Details returned to the browser. They are part of the contract with the
// viewer javascript so keep them stable.
const (
	MsgInvalidURL              = "Invalid URL."
	MsgMissingPayload          = "Please add a payload to complete the query."
	MsgInvalidPayload          = "Payload field doesn't contain valid JSON data."
	MsgInvalidExpression       = "The expression is not a valid one for NGSI Registration, only georel, geometry, and coords is supported"
	MsgMissingEntity           = "At least one NGSI entity must be provided"
	MsgTokenExpired            = "ERROR 401 token expired. Retrieving new token, reload please."
	MsgAuthenticationRequested = "Authentication requested by server, please check resource configuration."
	MsgHTTPError               = "Could not proxy ngsi_resource. We are working to resolve this issue as quickly as possible"
	MsgConnectionError         = "Could not proxy ngsi_resource because a connection error occurred."
	MsgTimeout                 = "Could not proxy ngsi_resource because the connection timed out."
	MsgResourceNotFound        = "Resource not found."
	MsgMissingToken            = "No access token available for the current user, please log in again."
	MsgInvalidCABundle         = "Could not load the configured CA bundle for verifying requests."
)
