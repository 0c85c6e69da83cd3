package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Tenant invariant: ClientID must be present whenever the subject is a client user.
type Claims struct {
	jwt.RegisteredClaims

	UserID             string    `json:"user_id"`
	ClientID           string    `json:"client_id,omitempty"`
	Role               string    `json:"role"`
	IsClientUser       bool      `json:"is_client_user"`
	DefaultAssistantID string    `json:"default_assistant_id,omitempty"`
	TokenType          TokenType `json:"token_type"`
}

// Principal is the authenticated caller as seen by scope resolution.
type Principal struct {
	UserID             string
	Role               string
	ClientID           string
	IsClientUser       bool
	DefaultAssistantID string
}

// TenantBound reports whether the caller may only see its own client's data.
func (p Principal) TenantBound() bool {
	return p.IsClientUser || p.ClientID != ""
}

func (c Claims) Principal() Principal {
	return Principal{
		UserID:             c.UserID,
		Role:               c.Role,
		ClientID:           c.ClientID,
		IsClientUser:       c.IsClientUser,
		DefaultAssistantID: c.DefaultAssistantID,
	}
}
