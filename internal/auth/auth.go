package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the connection-scoped role decoded from the bearer token.
type Role string

const (
	RoleLearner Role = "learner"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

var ErrInvalidToken = errors.New("invalid or missing token")

// CanObserve reports whether the role may subscribe to a session's room.
func (r Role) CanObserve() bool {
	return r == RoleMentor || r == RoleAdmin
}

// Identity is the immutable {userId, role} binding of one connection.
type Identity struct {
	UserID string
	Role   Role
}

// Verifier checks bearer tokens. The coordinator never inspects anything
// beyond the decoded identity claims.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the identity it carries.
// Runs once per connection, before any event is processed.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	userID, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := Role(roleStr)
	switch role {
	case RoleLearner, RoleMentor, RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, roleStr)
	}
	return Identity{UserID: userID, Role: role}, nil
}
