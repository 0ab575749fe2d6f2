package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidRole        = errors.New("invalid role")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator resolves the acting principal of a request. With a secret it
// verifies HS256 bearer tokens; without one it trusts the identity headers set
// by the gateway in front of the service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Authenticate(r *http.Request) (Actor, error) {
	if len(a.secret) == 0 {
		return fromHeaders(r)
	}

	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return Actor{}, ErrMissingCredentials
	}
	return a.Parse(strings.TrimSpace(raw))
}

func (a *Authenticator) Parse(raw string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !ValidRole(claims.Role) || claims.Role == RoleSystem {
		return Actor{}, ErrInvalidRole
	}
	return Actor{UserID: claims.Subject, Role: claims.Role}, nil
}

// Sign issues a token for the actor. Token issuance belongs to the identity
// provider; this exists for tooling and tests.
func (a *Authenticator) Sign(actor Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = actor.UserID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: actor.Role, RegisteredClaims: claims})
	return token.SignedString(a.secret)
}

func fromHeaders(r *http.Request) (Actor, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Actor{}, ErrMissingCredentials
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) || role == RoleSystem {
		return Actor{}, ErrInvalidRole
	}
	return Actor{UserID: userID, Role: role}, nil
}
