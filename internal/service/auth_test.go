package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestInspect(t *testing.T) {
	a := NewJWTAuther(testSecret)
	ctx := context.Background()

	token := signToken(t, jwt.MapClaims{
		"sub":    "user-1",
		"roles":  []any{"organizer"},
		"scopes": []any{"evt-1", "evt-2"},
	})

	id, err := a.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, []string{"organizer"}, id.Roles)
	assert.Equal(t, []string{"evt-1", "evt-2"}, id.Scopes)

	// Bearer prefix is tolerated.
	id, err = a.Inspect(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
}

func TestInspectRejections(t *testing.T) {
	a := NewJWTAuther(testSecret)
	ctx := context.Background()

	_, err := a.Inspect(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Inspect(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Wrong key.
	bad, err2 := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err2)
	_, err = a.Inspect(ctx, bad)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Missing sub.
	_, err = a.Inspect(ctx, signToken(t, jwt.MapClaims{"roles": []any{"admin"}}))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCanViewStream(t *testing.T) {
	a := NewJWTAuther(testSecret)

	admin := &Identity{Subject: "a", Roles: []string{RoleAdmin}}
	organizer := &Identity{Subject: "o", Roles: []string{RoleOrganizer}, Scopes: []string{"evt-1"}}
	staff := &Identity{Subject: "s", Roles: []string{RoleStaff}, Scopes: []string{"evt-1"}}
	wildcard := &Identity{Subject: "w", Roles: []string{RoleOrganizer}, Scopes: []string{"*"}}

	assert.True(t, a.CanViewStream(admin, "evt-9", event.FilterAll))

	assert.True(t, a.CanViewStream(organizer, "evt-1", event.FilterAll))
	assert.True(t, a.CanViewStream(organizer, "evt-1", event.FilterChannel(event.ChannelOrders)))
	assert.False(t, a.CanViewStream(organizer, "evt-2", event.FilterAll))

	assert.True(t, a.CanViewStream(staff, "evt-1", event.FilterChannel(event.ChannelCheckIns)))
	assert.False(t, a.CanViewStream(staff, "evt-1", event.FilterChannel(event.ChannelOrders)))
	assert.False(t, a.CanViewStream(staff, "evt-1", event.FilterAll))

	assert.True(t, a.CanViewStream(wildcard, "evt-42", event.FilterAll))
	assert.False(t, a.CanViewStream(nil, "evt-1", event.FilterAll))
}

func TestCanManageSettings(t *testing.T) {
	a := NewJWTAuther(testSecret)
	assert.True(t, a.CanManageSettings(&Identity{Roles: []string{RoleAdmin}}))
	assert.False(t, a.CanManageSettings(&Identity{Roles: []string{RoleOrganizer}}))
	assert.False(t, a.CanManageSettings(nil))
}
