package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenPair struct {
	AccessToken  string
	RefreshToken string
}

// issuePair mints tokens the way the identity service does so Verify and the
// middleware can be exercised end to end.
func issuePair(m *Manager, now time.Time, p Principal) (tokenPair, error) {
	access, err := issueToken(m, now, TokenTypeAccess, p, 15*time.Minute)
	if err != nil {
		return tokenPair{}, err
	}
	// refresh tokens carry no role or assistant defaults
	refresh, err := issueToken(m, now, TokenTypeRefresh, Principal{
		UserID:       p.UserID,
		ClientID:     p.ClientID,
		IsClientUser: p.IsClientUser,
	}, 24*time.Hour)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func issueToken(m *Manager, now time.Time, tokenType TokenType, p Principal, ttl time.Duration) (string, error) {
	var aud jwt.ClaimStrings
	if m.audience != "" {
		aud = jwt.ClaimStrings{m.audience}
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:             p.UserID,
		ClientID:           p.ClientID,
		Role:               p.Role,
		IsClientUser:       p.IsClientUser,
		DefaultAssistantID: p.DefaultAssistantID,
		TokenType:          tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
