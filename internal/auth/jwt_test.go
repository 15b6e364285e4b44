package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenService() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "bibliohub-test",
		Duration: time.Hour,
	}
}

func TestSignAndParseRoundTrip(t *testing.T) {
	ts := testTokenService()
	u := &User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: RoleAdmin, TokenVersion: 3}

	token, exp, err := ts.Sign(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.True(t, claims.IsAdmin())
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ts := testTokenService()
	token, _, err := ts.Sign(&User{ID: "u1", Role: RoleUser})
	require.NoError(t, err)

	other := ts
	other.Secret = []byte("different-secret")
	_, err = other.Parse(token)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	ts := testTokenService()
	ts.Duration = -time.Minute

	token, _, err := ts.Sign(&User{ID: "u1", Role: RoleUser})
	require.NoError(t, err)

	_, err = ts.Parse(token)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	ts := testTokenService()
	_, err := ts.Parse("not.a.token")
	require.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	assert.False(t, (&Claims{Role: RoleUser}).IsAdmin())
	assert.True(t, (&Claims{Role: RoleAdmin}).IsAdmin())
	var nilClaims *Claims
	assert.False(t, nilClaims.IsAdmin())
}
