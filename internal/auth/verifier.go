package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Role enumerates the platform roles carried in the token.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCounselor Role = "counselor"
	RoleAdmin     Role = "admin"
)

// Identity is the immutable result of a successful authentication. It is
// attached to a connection for its entire lifetime.
type Identity struct {
	UserID int64
	Role   Role
}

// Verifier validates bearer tokens issued by the identity service. Tokens are
// HS256 JWTs signed with a shared secret; there is no retry here, a failed
// credential means the caller must reconnect with a fresh one.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Authenticate validates the token and returns the caller's identity.
func (v *Verifier) Authenticate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userIDFloat, ok := (*claims)["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return Identity{}, fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}

	role, _ := (*claims)["role"].(string)
	switch Role(role) {
	case RolePatient, RoleCounselor, RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}

	return Identity{UserID: int64(userIDFloat), Role: Role(role)}, nil
}
