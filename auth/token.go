package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campus-connect/domain"
	"campus-connect/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// TokenManager issues and resolves signed session tokens. It is the sole
// identity resolver consumed by the relay: a connection enters the Active
// state only after Resolve succeeds.
type TokenManager struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: "campus-connect", duration: duration}
}

// Generate creates a signed JWT bound to the given identity.
func (t *TokenManager) Generate(identity domain.Identity) (string, error) {
	claims := &CustomClaims{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    t.issuer,
		},
	}

	// HS256: HMAC with SHA256, signed with the server secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Resolve validates the signature and expiration of a token string and
// returns the identity it carries. Any failure maps to ErrUnauthenticated so
// callers reject the connection or request without leaking parse details.
func (t *TokenManager) Resolve(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, errors.ErrUnauthenticated
	}
	return domain.Identity{Email: claims.Email, DisplayName: claims.DisplayName}, nil
}
