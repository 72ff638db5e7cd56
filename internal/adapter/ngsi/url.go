package ngsi

import (
	"net/http"
	"net/url"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// ValidateURL accepts only absolute http(s) urls with a host. Anything else
// fails with 409 before we go anywhere near the network.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, domain.NewAppError(http.StatusConflict, constants.MsgInvalidURL, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, domain.NewAppError(http.StatusConflict, constants.MsgInvalidURL, nil)
	}

	return parsed, nil
}
