package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		Secret: testSecret,
		TTL:    30 * time.Minute,
		Issuer: "alexander-auth",
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return iss
}

func TestIssuer_IssueAndValidate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	iss := newTestIssuer(t, clock)

	raw, expiresAt, err := iss.Issue("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(30*time.Minute), expiresAt)

	claims, err := iss.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "alexander-auth", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	other, _, err := iss.Issue("alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, raw, other, "token ids make every token unique")
}

func TestIssuer_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	iss := newTestIssuer(t, clock)

	raw, expiresAt, err := iss.Issue("alice@example.com")
	require.NoError(t, err)

	clock.t = expiresAt.Add(-time.Second)
	_, err = iss.Validate(raw)
	assert.NoError(t, err)

	clock.t = expiresAt
	_, err = iss.Validate(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Rejects(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	iss := newTestIssuer(t, clock)

	raw, _, err := iss.Issue("alice@example.com")
	require.NoError(t, err)

	otherIssuer, err := NewIssuer(Config{Secret: []byte("another-secret-another-secret-xx"), TTL: time.Minute, Issuer: "alexander-auth", Now: clock.Now})
	require.NoError(t, err)
	foreign, _, err := otherIssuer.Issue("alice@example.com")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		Issuer:    "alexander-auth",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		Issuer:    "alexander-auth",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice@example.com",
		Issuer:  "alexander-auth",
	}).SignedString(testSecret)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"other secret", foreign},
		{"alg none", noneToken},
		{"other algorithm", hs512},
		{"wrong issuer", wrongIssuer},
		{"missing expiry", noExpiry},
		{"tampered payload", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := iss.Validate(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer(Config{TTL: time.Minute})
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewIssuer(Config{Secret: testSecret})
	assert.Error(t, err)
}
