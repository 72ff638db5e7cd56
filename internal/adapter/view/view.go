package view

import (
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/ngsiproxy/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const brokerDocsURL = "https://forge.fiware.org/plugins/mediawiki/wiki/fiware/index.php/Publish/Subscribe_Broker_-_Orion_Context_Broker_-_User_and_Programmers_Guide"

var queryMarkers = []string{"/v2/entities", "/v1/querycontext", "/v1/contextentities/"}

type Config struct {
	SiteURL       string
	ProxyEnabled  bool
	OAuth2Enabled bool
}

// Viewer decides whether the NGSI view can render a resource and prepares
// the values the view page needs
type Viewer struct {
	siteHost string
	config   Config
}

func New(config Config) *Viewer {
	v := &Viewer{config: config}
	if parsed, err := url.Parse(config.SiteURL); err == nil {
		v.siteHost = strings.ToLower(parsed.Host)
	}
	return v
}

// CheckQuery reports whether rawURL looks like a context broker query
func CheckQuery(rawURL string) bool {
	lowered := strings.ToLower(rawURL)
	for _, marker := range queryMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// SameDomain reports whether the resource is served from the catalog's own
// host, in which case the browser can call it without the proxy
func (v *Viewer) SameDomain(resourceURL string) bool {
	if v.siteHost == "" {
		return false
	}
	parsed, err := url.Parse(resourceURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, v.siteHost)
}

func (v *Viewer) CanView(resource *domain.Resource, sameDomain bool) bool {
	if (resource.IsQuery() && CheckQuery(resource.URL)) || resource.IsRegistry() {
		return sameDomain || v.config.ProxyEnabled
	}
	return false
}

// ProxyURL is the catalog path the viewer calls instead of the broker
func ProxyURL(datasetID, resourceID string) string {
	return "/dataset/" + url.PathEscape(datasetID) + "/resource/" + url.PathEscape(resourceID) + "/ngsiproxy"
}

// Setup is the outcome of preparing a view. Enabled false comes with the
// html Detail rendered in the frame and a plain Flash message.
type Setup struct {
	Resource *domain.Resource
	URL      string
	Detail   string
	Flash    string
	Enabled  bool
}

func failure(html, flash string) Setup {
	return Setup{Detail: "</br></br>" + html + "</br></br></br>", Flash: flash}
}

// Setup decides what the view page gets for resource. user is the logged in
// catalog user, empty when anonymous.
func (v *Viewer) Setup(resource *domain.Resource, sameDomain bool, user string) Setup {
	shown := resource.Clone()
	shown.AuthType = shown.AuthType.Normalise()
	target := shown.URL

	var result Setup
	switch {
	case shown.IsQuery() && !CheckQuery(shown.URL):
		result = failure(
			"This is not a ContextBroker query, please check <a href='"+brokerDocsURL+"'>Orion Context Broker documentation</a>",
			"This is not a ContextBroker query, please check Orion Context Broker documentation.")

	case !sameDomain && !v.config.ProxyEnabled:
		result = failure("Enable resource_proxy", "Enable resource_proxy.")
		target = ""

	default:
		if !sameDomain {
			target = ProxyURL(shown.PackageID, shown.ID)
		}

		switch {
		case shown.AuthType.RequiresToken() && user == "":
			result = failure(
				"In order to see this resource properly, you need to be logged in.",
				"In order to see this resource properly, you need to be logged in.")
		case shown.AuthType.RequiresToken() && !v.config.OAuth2Enabled:
			result = failure(
				"In order to see this resource properly, enable oauth2 extension",
				"In order to see this resource properly, enable oauth2 extension.")
		default:
			shown.URL = target
			result = Setup{Enabled: true, Detail: "OK"}
		}
	}

	result.Resource = shown
	result.URL = target
	return result
}

// TemplateVariables renders the setup as the three json encoded values the
// view template consumes
func (s Setup) TemplateVariables() (map[string]string, error) {
	resourceJSON, err := json.Marshal(s.Resource)
	if err != nil {
		return nil, err
	}
	resourceURL, err := json.Marshal(s.URL)
	if err != nil {
		return nil, err
	}
	viewEnable, err := json.Marshal([]any{s.Enabled, s.Detail})
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"resource_json": string(resourceJSON),
		"resource_url":  string(resourceURL),
		"view_enable":   string(viewEnable),
	}, nil
}

type AuthMethod struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// AvailableAuthMethods lists the auth types offered in the resource form
func (v *Viewer) AvailableAuthMethods() []AuthMethod {
	methods := []AuthMethod{{Value: string(domain.AuthNone), Text: "None"}}
	if v.config.OAuth2Enabled {
		methods = append(methods,
			AuthMethod{Value: string(domain.AuthOAuth2), Text: "OAuth 2.0"},
			AuthMethod{Value: string(domain.AuthXAuthTokenFiware), Text: "OAuth 2.0 token using X-Auth-Token (deprecated)"},
		)
	}
	return methods
}
