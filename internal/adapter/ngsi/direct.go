package ngsi

import (
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// outboundPlan is everything needed to issue the single broker request
type outboundPlan struct {
	body        []byte
	method      string
	target      string
	contentType string
	mode        string
}

const (
	ModeRegistration = "registration"
	ModeQueryContext = "query_context"
	ModeQuery        = "query"
)

// planDirectQuery forwards the resource url as is. NGSI v1 queryContext urls
// are POSTed with the stored payload, everything else is a plain GET.
func planDirectQuery(resource *domain.Resource, parsed *url.URL) (*outboundPlan, error) {
	if !strings.Contains(parsed.Path, constants.PathQueryContext) {
		return &outboundPlan{
			method: http.MethodGet,
			target: resource.URL,
			mode:   ModeQuery,
		}, nil
	}

	if strings.TrimSpace(resource.Payload) == "" {
		return nil, domain.NewAppError(http.StatusConflict, constants.MsgMissingPayload, nil)
	}
	if !json.Valid([]byte(resource.Payload)) {
		return nil, domain.NewAppError(http.StatusConflict, constants.MsgInvalidPayload, nil)
	}

	return &outboundPlan{
		method:      http.MethodPost,
		target:      resource.URL,
		body:        []byte(resource.Payload),
		contentType: constants.ContentTypeJSON,
		mode:        ModeQueryContext,
	}, nil
}

func planRegistrationQuery(resource *domain.Resource, parsed *url.URL, queryPath string) (*outboundPlan, error) {
	body, err := BuildRegistrationQuery(resource)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewAppError(http.StatusConflict, "", err)
	}

	return &outboundPlan{
		method:      http.MethodPost,
		target:      RegistrationTarget(parsed, queryPath),
		body:        encoded,
		contentType: constants.ContentTypeJSON,
		mode:        ModeRegistration,
	}, nil
}
