package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// ErrUnauthorized rejects a stream or settings request before any resources
// are allocated for it.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the verified caller, as produced by the platform's auth
// collaborator.
type Identity struct {
	Subject string
	Roles   []string
	// Scopes lists the event/show ids the caller may observe; "*" grants
	// all scopes.
	Scopes []string
}

func (id *Identity) hasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (id *Identity) hasScope(scopeID string) bool {
	for _, s := range id.Scopes {
		if s == "*" || s == scopeID {
			return true
		}
	}
	return false
}

// Auther is the boundary to the platform's identity collaborator: verify a
// token into an identity, then answer boolean capability questions. The core
// treats the results as gates and never re-checks per event.
type Auther interface {
	Inspect(ctx context.Context, token string) (*Identity, error)
	CanViewStream(id *Identity, scopeID string, filter event.Filter) bool
	CanManageSettings(id *Identity) bool
}

// Platform roles relevant to the live streams.
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleStaff     = "staff"
)

// jwtAuther verifies the platform's HMAC-signed tokens. Claims: sub, roles
// (list of role names), scopes (list of event ids or "*").
type jwtAuther struct {
	secret []byte
}

var _ Auther = (*jwtAuther)(nil)

func NewJWTAuther(secret string) Auther {
	return &jwtAuther{secret: []byte(secret)}
}

func (a *jwtAuther) Inspect(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	return &Identity{
		Subject: sub,
		Roles:   stringList(claims["roles"]),
		Scopes:  stringList(claims["scopes"]),
	}, nil
}

// CanViewStream gates a stream open. Admins see everything; organizers see
// every channel of their scopes; staff are limited to the check-ins channel
// of their scopes (the door-scanner app has no business watching revenue).
func (a *jwtAuther) CanViewStream(id *Identity, scopeID string, filter event.Filter) bool {
	if id == nil {
		return false
	}
	if id.hasRole(RoleAdmin) {
		return true
	}
	if !id.hasScope(scopeID) {
		return false
	}
	if id.hasRole(RoleOrganizer) {
		return true
	}
	if id.hasRole(RoleStaff) {
		return filter == event.FilterChannel(event.ChannelCheckIns)
	}
	return false
}

func (a *jwtAuther) CanManageSettings(id *Identity) bool {
	return id != nil && id.hasRole(RoleAdmin)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
