package ngsi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

var supportedExpressionKeys = map[string]struct{}{
	constants.ExpressionGeorel:   {},
	constants.ExpressionGeometry: {},
	constants.ExpressionCoords:   {},
}

// RegistrationTarget keeps scheme and host of the resource url, drops one
// trailing slash from its path and appends queryPath. Query string and
// fragment are not carried over.
func RegistrationTarget(resourceURL *url.URL, queryPath string) string {
	path := strings.TrimSuffix(resourceURL.Path, "/")

	target := url.URL{
		Scheme: resourceURL.Scheme,
		User:   resourceURL.User,
		Host:   resourceURL.Host,
		Path:   path + queryPath,
	}
	return target.String()
}

// BuildRegistrationQuery turns the entity, attrs_str and expression fields of
// a registry resource into an NGSI v2 op/query body.
func BuildRegistrationQuery(resource *domain.Resource) (*domain.QueryBody, error) {
	if len(resource.Entity) == 0 {
		return nil, domain.NewAppError(http.StatusConflict, constants.MsgMissingEntity, nil)
	}

	body := &domain.QueryBody{
		Entities: make([]domain.QueryEntity, 0, len(resource.Entity)),
		Attrs:    SplitAttrs(resource.AttrsStr),
	}

	for _, entity := range resource.Entity {
		body.Entities = append(body.Entities, domain.QueryEntity{
			ID:      entity.ID,
			Type:    entity.Value,
			Pattern: entity.Pattern(),
		})
	}

	if resource.Expression != "" {
		expression, err := ParseExpression(resource.Expression)
		if err != nil {
			return nil, err
		}
		body.Expression = expression
	}

	return body, nil
}

// SplitAttrs splits the comma separated attribute list, empty input gives an
// empty (not nil) list so the body always carries "attrs": [].
func SplitAttrs(attrs string) []string {
	if attrs == "" {
		return []string{}
	}
	return strings.Split(attrs, ",")
}

// ParseExpression parses georel=...&geometry=...&coords=... into a map. A
// single bad segment rejects the whole expression with 422.
func ParseExpression(expression string) (map[string]string, error) {
	parsed := make(map[string]string, len(supportedExpressionKeys))

	for _, segment := range strings.Split(expression, "&") {
		key, value, found := strings.Cut(segment, "=")
		if !found {
			return nil, invalidExpression()
		}
		if _, ok := supportedExpressionKeys[key]; !ok {
			return nil, invalidExpression()
		}
		parsed[key] = value
	}

	return parsed, nil
}

func invalidExpression() error {
	return domain.NewAppError(http.StatusUnprocessableEntity, constants.MsgInvalidExpression, nil)
}
