package auth

import (
	"errors"
	"fmt"
	"time"

	"bwitty-orders/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller. Subject holds the user id.
type Claims struct {
	Role  model.Role `json:"role"`
	Name  string     `json:"name,omitempty"`
	Email string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokens creates a token service for the shared secret.
func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for the actor valid for ttl.
func (t *Tokens) Issue(actor model.Actor, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Role:  actor.Role,
		Name:  actor.Name,
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the token and returns the actor it names.
func (t *Tokens) Parse(raw string) (model.Actor, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return model.Actor{}, ErrInvalidToken
	}

	role := claims.Role
	switch role {
	case model.RoleAdmin, model.RoleUser:
	case "":
		role = model.RoleUser
	default:
		// system is never granted through a token
		return model.Actor{}, fmt.Errorf("%w: role %q", ErrInvalidToken, role)
	}

	return model.Actor{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  role,
	}, nil
}
