package httpinvoker

import (
	"fmt"
	"net/http"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// Authenticator decorates outbound requests with credentials.
type Authenticator interface {
	Apply(req *http.Request)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(req *http.Request)

// Apply implements Authenticator.
func (f AuthenticatorFunc) Apply(req *http.Request) { f(req) }

// NoAuth leaves requests untouched.
var NoAuth Authenticator = AuthenticatorFunc(func(*http.Request) {})

// BasicAuth sends an HTTP basic credential pair.
func BasicAuth(user, pass string) Authenticator {
	return AuthenticatorFunc(func(req *http.Request) { req.SetBasicAuth(user, pass) })
}

// BearerAuth sends "Authorization: Bearer <token>".
func BearerAuth(token string) Authenticator {
	return AuthenticatorFunc(func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) })
}

// NewAuthenticator selects the authenticator for api from its auth_type.
// Missing credentials are a configuration error wrapping usecase.ErrMissingCredentials.
func NewAuthenticator(api domain.APIConfig) (Authenticator, error) {
	switch api.AuthType {
	case "", domain.AuthTypeNone:
		return NoAuth, nil
	case domain.AuthTypeBasic:
		if api.AuthUser == "" || api.AuthPass == "" {
			return nil, fmt.Errorf("api %s: basic auth needs auth_user and auth_pass: %w", api.Name, usecase.ErrMissingCredentials)
		}
		return BasicAuth(api.AuthUser, api.AuthPass), nil
	case domain.AuthTypeBearer:
		if api.AuthKey == "" {
			return nil, fmt.Errorf("api %s: bearer auth needs auth_key: %w", api.Name, usecase.ErrMissingCredentials)
		}
		return BearerAuth(api.AuthKey), nil
	default:
		return nil, fmt.Errorf("api %s: unsupported auth_type %q", api.Name, api.AuthType)
	}
}
