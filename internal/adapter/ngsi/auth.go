package ngsi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/core/ports"
)

// applyHeaders sets Accept, the auth header for the resource's auth type and
// the tenant scoping headers.
func applyHeaders(ctx context.Context, header http.Header, resource *domain.Resource, user string, creds ports.CredentialProvider) error {
	header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	if err := applyAuth(ctx, header, resource.AuthType.Normalise(), user, creds); err != nil {
		return err
	}

	if resource.Tenant != "" {
		header.Set(constants.HeaderFiwareService, resource.Tenant)
	}
	if resource.ServicePath != "" {
		header.Set(constants.HeaderFiwareServicePath, resource.ServicePath)
	}
	return nil
}

func applyAuth(ctx context.Context, header http.Header, authType domain.AuthType, user string, creds ports.CredentialProvider) error {
	var name, prefix string
	switch authType {
	case domain.AuthOAuth2:
		name, prefix = constants.HeaderAuthorization, constants.BearerPrefix
	case domain.AuthXAuthTokenFiware:
		name = constants.HeaderXAuthToken
	default:
		return nil
	}

	token, err := accessToken(ctx, user, creds)
	if err != nil {
		return err
	}
	header.Set(name, prefix+token)
	return nil
}

func accessToken(ctx context.Context, user string, creds ports.CredentialProvider) (string, error) {
	if creds == nil {
		return "", domain.NewAppError(http.StatusConflict, constants.MsgMissingToken, errors.New("no credential provider configured"))
	}

	token, err := creds.AccessToken(ctx, user)
	if err != nil {
		return "", domain.NewAppError(http.StatusConflict, constants.MsgMissingToken, fmt.Errorf("user %q: %w", user, err))
	}
	return token, nil
}
