package api

import (
	"encoding/base64"
	"strings"

	"github.com/vango-go/agents-lite/pkg/core"
)

// AuthType selects how requests are authorized.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthKey    AuthType = "key"
)

// Auth carries client credentials.
type Auth struct {
	Type      AuthType
	Token     string
	Username  string
	Password  string
	ClientKey string
	// ExternalID identifies the end user for client-key auth.
	ExternalID string
}

// BearerAuth authorizes with a bearer token.
func BearerAuth(token string) Auth { return Auth{Type: AuthBearer, Token: token} }

// BasicAuth authorizes with a username and password (API key).
func BasicAuth(username, password string) Auth {
	return Auth{Type: AuthBasic, Username: username, Password: password}
}

// ClientKeyAuth authorizes with a publishable client key.
func ClientKeyAuth(key, externalID string) Auth {
	return Auth{Type: AuthKey, ClientKey: key, ExternalID: externalID}
}

// Header returns the Authorization header value.
func (a Auth) Header() (string, error) {
	switch a.Type {
	case AuthBearer:
		if strings.TrimSpace(a.Token) == "" {
			return "", core.NewInvalidRequestError("bearer auth requires a token")
		}
		return "Bearer " + strings.TrimSpace(a.Token), nil
	case AuthBasic:
		if a.Username == "" && a.Password == "" {
			return "", core.NewInvalidRequestError("basic auth requires a username or password")
		}
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password)), nil
	case AuthKey:
		if strings.TrimSpace(a.ClientKey) == "" {
			return "", core.NewInvalidRequestError("client key auth requires a key")
		}
		value := "Client-Key " + strings.TrimSpace(a.ClientKey)
		if id := strings.TrimSpace(a.ExternalID); id != "" {
			value += "." + id
		}
		return value, nil
	default:
		return "", core.NewInvalidRequestError("unknown auth type " + string(a.Type))
	}
}
